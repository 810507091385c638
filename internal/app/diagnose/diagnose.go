package diagnose

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/comfylaunch/internal/diagnosis"
	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
)

// Diagnoser sends a prompt to a remote model.
type Diagnoser interface {
	Diagnose(ctx context.Context, r diagnosis.Request) (string, error)
}

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

const promptHeader = `You are helping a user of ComfyUI, a node based image generation tool.
The following lines are the latest output of the ComfyUI backend process.
Explain the most likely cause of any error or warning in them and how to fix it.
Be concise and give concrete steps.

Backend output:
`

// ServiceConfig is the configuration for the diagnose service.
type ServiceConfig struct {
	Diagnoser Diagnoser
	Settings  SettingsProvider
	// DefaultLines is used when the settings have no log line count.
	DefaultLines int
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Diagnoser == nil {
		return fmt.Errorf("diagnoser is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings are required")
	}
	if c.DefaultLines <= 0 {
		c.DefaultLines = 200
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Diagnose"})
	return nil
}

// Service asks a remote model about the captured backend output.
type Service struct {
	diagnoser    Diagnoser
	settings     SettingsProvider
	defaultLines int
	logger       log.Logger
}

// NewService creates a new diagnose service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		diagnoser:    cfg.Diagnoser,
		settings:     cfg.Settings,
		defaultLines: cfg.DefaultLines,
		logger:       cfg.Logger,
	}, nil
}

// Run diagnoses the last captured lines. The returned string is always ready to
// be shown, on failure it explains the error.
func (s *Service) Run(ctx context.Context, lines []string) (string, error) {
	st := s.settings.Get()

	n := st.DiagnosisLogLines
	if n <= 0 {
		n = s.defaultLines
	}
	lines = tail(lines, n)
	if len(lines) == 0 {
		err := fmt.Errorf("there is no backend output to diagnose: %w", model.ErrNotValid)
		return fmt.Sprintf("Nothing to diagnose: %v", err), err
	}

	s.logger.Infof("Diagnosing %d output lines", len(lines))
	text, err := s.diagnoser.Diagnose(ctx, diagnosis.Request{
		Endpoint: st.DiagnosisEndpoint,
		APIKey:   st.DiagnosisAPIKey,
		Model:    st.DiagnosisModel,
		Prompt:   Prompt(lines),
	})
	if err != nil {
		s.logger.Warningf("Diagnosis failed: %v", err)
		return diagnosis.Message(err), err
	}

	return text, nil
}

// Prompt builds the diagnosis prompt for the output lines.
func Prompt(lines []string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func tail(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
