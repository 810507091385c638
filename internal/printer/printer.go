package printer

import "github.com/slok/comfylaunch/internal/model"

// Printer knows how to print launcher information in different formats.
type Printer interface {
	PrintHistory(records []model.TaskRecord) error
	PrintVersions(versions []model.Version) error
	PrintNodes(nodes []model.Node) error
	PrintSettings(s model.Settings) error
	PrintMessage(msg string) error
}

// MaskSecret hides all but the last 4 characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
