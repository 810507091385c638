package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/comfylaunch/internal/model"
)

// JSONPrinter prints launcher information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type historyItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

type versionItem struct {
	Ref     string     `json:"ref"`
	Kind    string     `json:"kind"`
	Commit  string     `json:"commit"`
	Date    *time.Time `json:"date,omitempty"`
	Subject string     `json:"subject,omitempty"`
	Current bool       `json:"current"`
}

type nodeItem struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Remote   string `json:"remote,omitempty"`
	Commit   string `json:"commit,omitempty"`
	Upstream string `json:"upstream,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintHistory prints task history records in JSON format.
func (j *JSONPrinter) PrintHistory(records []model.TaskRecord) error {
	items := make([]historyItem, len(records))
	for i, r := range records {
		items[i] = historyItem{
			ID:         r.ID,
			Name:       r.Name,
			Status:     string(r.Status),
			Error:      r.Error,
			Summary:    r.Summary,
			StartedAt:  r.StartedAt.UTC(),
			FinishedAt: r.FinishedAt.UTC(),
			DurationMS: r.Duration().Milliseconds(),
		}
	}
	return j.encode(items)
}

// PrintVersions prints backend versions in JSON format.
func (j *JSONPrinter) PrintVersions(versions []model.Version) error {
	items := make([]versionItem, len(versions))
	for i, v := range versions {
		items[i] = versionItem{
			Ref:     v.Ref,
			Kind:    string(v.Kind),
			Commit:  v.Commit,
			Subject: v.Subject,
			Current: v.Current,
		}
		if !v.Date.IsZero() {
			d := v.Date.UTC()
			items[i].Date = &d
		}
	}
	return j.encode(items)
}

// PrintNodes prints custom nodes in JSON format.
func (j *JSONPrinter) PrintNodes(nodes []model.Node) error {
	items := make([]nodeItem, len(nodes))
	for i, n := range nodes {
		items[i] = nodeItem{
			Name:     n.Name,
			Path:     n.Path,
			Remote:   n.Remote,
			Commit:   n.Commit,
			Upstream: n.Upstream,
			Enabled:  !n.Disabled,
		}
	}
	return j.encode(items)
}

// PrintSettings prints the settings in their persisted JSON shape, secrets masked.
func (j *JSONPrinter) PrintSettings(s model.Settings) error {
	s.DiagnosisAPIKey = MaskSecret(s.DiagnosisAPIKey)
	return j.encode(s)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
