package model

// CheckStatus is the outcome of a launcher preflight check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError means the backend can't be started until it is fixed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult is the result of a single preflight check, ID is stable (e.g. "install_dir").
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}

// CountByStatus counts check results by status.
func CountByStatus(results []CheckResult) (ok, warnings, errors int) {
	for _, r := range results {
		switch r.Status {
		case CheckStatusOK:
			ok++
		case CheckStatusWarning:
			warnings++
		case CheckStatusError:
			errors++
		}
	}
	return ok, warnings, errors
}
