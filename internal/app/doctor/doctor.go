package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/comfylaunch/internal/app/nodes"
	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process"
)

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

// GitChecker returns an error when the git binary is not usable.
type GitChecker interface {
	Available() error
}

// ServiceConfig is the configuration for the doctor service.
type ServiceConfig struct {
	Settings SettingsProvider
	Git      GitChecker
	Prober   process.Prober
	// LookPath resolves executables, defaults to the backend validation lookup.
	LookPath func(file string) (string, error)
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Settings == nil {
		return fmt.Errorf("settings are required")
	}
	if c.Git == nil {
		return fmt.Errorf("git checker is required")
	}
	if c.Prober == nil {
		return fmt.Errorf("prober is required")
	}
	if c.LookPath == nil {
		return fmt.Errorf("look path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Doctor"})
	return nil
}

// Service runs the launcher preflight checks.
type Service struct {
	settings SettingsProvider
	git      GitChecker
	prober   process.Prober
	lookPath func(string) (string, error)
	logger   log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		settings: cfg.Settings,
		git:      cfg.Git,
		prober:   cfg.Prober,
		lookPath: cfg.LookPath,
		logger:   cfg.Logger,
	}, nil
}

// Run executes every check, it never stops on a failed one.
func (s *Service) Run(ctx context.Context) []model.CheckResult {
	st := s.settings.Get()

	return []model.CheckResult{
		s.checkSettings(st),
		s.checkInstallDir(st),
		s.checkPython(st),
		s.checkGit(st),
		s.checkCustomNodes(st),
		s.checkPort(ctx, st),
		s.checkDiagnosis(st),
	}
}

func (s *Service) checkSettings(st model.Settings) model.CheckResult {
	if err := st.Validate(); err != nil {
		return model.CheckResult{ID: "settings_valid", Status: model.CheckStatusError, Message: err.Error()}
	}
	return model.CheckResult{ID: "settings_valid", Status: model.CheckStatusOK, Message: "settings are valid"}
}

func (s *Service) checkInstallDir(st model.Settings) model.CheckResult {
	const id = "install_dir"
	if st.InstallDir == "" {
		return model.CheckResult{ID: id, Status: model.CheckStatusError, Message: "install dir is not configured"}
	}
	if _, err := os.Stat(filepath.Join(st.InstallDir, process.EntryPoint)); err != nil {
		return model.CheckResult{ID: id, Status: model.CheckStatusError, Message: fmt.Sprintf("%s not found in %s", process.EntryPoint, st.InstallDir)}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: st.InstallDir}
}

func (s *Service) checkPython(st model.Settings) model.CheckResult {
	const id = "python"
	p, err := s.lookPath(st.PythonPath)
	if err != nil {
		return model.CheckResult{ID: id, Status: model.CheckStatusError, Message: fmt.Sprintf("python executable %q not found", st.PythonPath)}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: p}
}

func (s *Service) checkGit(st model.Settings) model.CheckResult {
	const id = "git"
	if err := s.git.Available(); err != nil {
		return model.CheckResult{ID: id, Status: model.CheckStatusWarning, Message: "git not found, version and node management are disabled"}
	}
	if _, err := os.Stat(filepath.Join(st.InstallDir, ".git")); st.InstallDir == "" || err != nil {
		return model.CheckResult{ID: id, Status: model.CheckStatusWarning, Message: "install dir is not a git repository, version management is disabled"}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: "git available and install dir is a repository"}
}

func (s *Service) checkCustomNodes(st model.Settings) model.CheckResult {
	const id = "custom_nodes"
	dir := filepath.Join(st.InstallDir, nodes.Dir)
	if fi, err := os.Stat(dir); st.InstallDir == "" || err != nil || !fi.IsDir() {
		return model.CheckResult{ID: id, Status: model.CheckStatusWarning, Message: fmt.Sprintf("%s directory not found", nodes.Dir)}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: dir}
}

func (s *Service) checkPort(ctx context.Context, st model.Settings) model.CheckResult {
	const id = "port"
	if s.prober.Probe(ctx, st.Port) {
		return model.CheckResult{ID: id, Status: model.CheckStatusWarning, Message: fmt.Sprintf("a backend is already answering on port %d", st.Port)}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: fmt.Sprintf("port %d is free", st.Port)}
}

func (s *Service) checkDiagnosis(st model.Settings) model.CheckResult {
	const id = "diagnosis"
	if st.DiagnosisAPIKey == "" {
		return model.CheckResult{ID: id, Status: model.CheckStatusWarning, Message: "no API key configured, diagnosis is disabled"}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: fmt.Sprintf("model %s", st.DiagnosisModel)}
}
