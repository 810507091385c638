package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process"
)

// Supervisor is the backend process supervisor.
type Supervisor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

// ServiceConfig is the configuration for the backend service.
type ServiceConfig struct {
	Supervisor Supervisor
	Settings   SettingsProvider
	// LookPath resolves the python executable, exec.LookPath by default.
	LookPath func(file string) (string, error)
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Supervisor == nil {
		return fmt.Errorf("supervisor is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings are required")
	}
	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Backend"})
	return nil
}

// Service starts and stops the backend after validating the settings.
type Service struct {
	supervisor Supervisor
	settings   SettingsProvider
	lookPath   func(file string) (string, error)
	logger     log.Logger
}

// NewService creates a new backend service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		supervisor: cfg.Supervisor,
		settings:   cfg.Settings,
		lookPath:   cfg.LookPath,
		logger:     cfg.Logger,
	}, nil
}

// Validate checks the settings can be used to start the backend. Errors wrap
// model.ErrNotValid.
func (s *Service) Validate(st model.Settings) error {
	var errs []error

	if err := st.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch fi, err := os.Stat(st.InstallDir); {
	case st.InstallDir == "":
		errs = append(errs, fmt.Errorf("install dir is not configured: %w", model.ErrNotValid))
	case err != nil:
		errs = append(errs, fmt.Errorf("install dir %q not found: %w", st.InstallDir, model.ErrNotValid))
	case !fi.IsDir():
		errs = append(errs, fmt.Errorf("install dir %q is not a directory: %w", st.InstallDir, model.ErrNotValid))
	default:
		if _, err := os.Stat(filepath.Join(st.InstallDir, process.EntryPoint)); err != nil {
			errs = append(errs, fmt.Errorf("install dir %q has no %s: %w", st.InstallDir, process.EntryPoint, model.ErrNotValid))
		}
	}

	if st.PythonPath == "" {
		errs = append(errs, fmt.Errorf("python executable is not configured: %w", model.ErrNotValid))
	} else if _, err := s.lookPath(st.PythonPath); err != nil {
		errs = append(errs, fmt.Errorf("python executable %q not found: %w", st.PythonPath, model.ErrNotValid))
	}

	return errors.Join(errs...)
}

// Start validates the settings and starts the backend.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Validate(s.settings.Get()); err != nil {
		s.logger.Warningf("Invalid settings: %v", err)
		return err
	}

	return s.supervisor.Start(ctx)
}

// Stop stops the backend.
func (s *Service) Stop(ctx context.Context) error {
	return s.supervisor.Stop(ctx)
}
