package versions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/pip"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/vcs"
)

const originRemote = "origin"

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

// ServiceConfig is the configuration for the versions service.
type ServiceConfig struct {
	Git      vcs.Git
	Pip      pip.Installer
	Settings SettingsProvider
	// Commits is the number of recent commits listed besides the tags.
	Commits int
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Git == nil {
		return fmt.Errorf("git is required")
	}
	if c.Pip == nil {
		return fmt.Errorf("pip is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings are required")
	}
	if c.Commits <= 0 {
		c.Commits = 30
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Versions"})
	return nil
}

// Service lists and switches the backend versions of the install dir git repository.
type Service struct {
	git      vcs.Git
	pip      pip.Installer
	settings SettingsProvider
	commits  int
	logger   log.Logger
}

// NewService creates a new versions service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		git:      cfg.Git,
		pip:      cfg.Pip,
		settings: cfg.Settings,
		commits:  cfg.Commits,
		logger:   cfg.Logger,
	}, nil
}

// Refresh fetches the remote and returns the sorted versions. A failed fetch is recorded
// in the summary and the local versions are still returned.
func (s *Service) Refresh(ctx context.Context, stop *state.StopSignal, sum *model.Summary) ([]model.Version, error) {
	dir, err := s.installDir()
	if err != nil {
		return nil, err
	}

	if err := s.git.Fetch(ctx, dir); err != nil {
		s.logger.Warningf("Could not fetch, listing local versions: %v", err)
		sum.Fail("fetch", err)
	} else {
		sum.OK("fetch", "")
	}

	if err := stop.Checkpoint(); err != nil {
		return nil, err
	}

	vs, err := s.git.Versions(ctx, dir, s.commits)
	if err != nil {
		return nil, fmt.Errorf("could not list versions: %w", err)
	}
	sum.OK("list versions", fmt.Sprintf("%d found", len(vs)))

	return vs, nil
}

// Current returns a description of the checked out version.
func (s *Service) Current(ctx context.Context) (string, error) {
	dir, err := s.installDir()
	if err != nil {
		return "", err
	}
	return s.git.Describe(ctx, dir)
}

// Activate checks out a version and brings its submodules and python requirements along.
// Only the checkout is mandatory, the rest is recorded in the summary.
func (s *Service) Activate(ctx context.Context, stop *state.StopSignal, sum *model.Summary, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("version is required: %w", model.ErrNotValid)
	}

	dir, err := s.installDir()
	if err != nil {
		return err
	}

	commit, err := s.git.RevParse(ctx, dir, ref)
	if err != nil {
		return fmt.Errorf("unknown version %q: %w", ref, model.ErrNotFound)
	}

	status, err := s.git.Status(ctx, dir)
	switch {
	case err != nil:
		sum.Fail("status", err)
	case status != "":
		s.logger.Warningf("Install dir has local changes, checkout may fail")
		sum.Skip("clean tree check", "local changes present")
	}

	if err := stop.Checkpoint(); err != nil {
		return err
	}

	if err := s.git.Checkout(ctx, dir, ref); err != nil {
		sum.Fail("checkout", err)
		return fmt.Errorf("could not checkout %q: %w", ref, err)
	}
	sum.OK("checkout", fmt.Sprintf("%s (%.8s)", ref, commit))
	s.logger.Infof("Checked out %s", ref)

	if err := stop.Checkpoint(); err != nil {
		return err
	}

	if err := s.git.SubmoduleUpdate(ctx, dir); err != nil {
		s.logger.Warningf("Submodule update failed: %v", err)
		sum.Fail("submodule update", err)
	} else {
		sum.OK("submodule update", "")
	}

	if err := stop.Checkpoint(); err != nil {
		return err
	}

	err = s.pip.InstallRequirements(ctx, s.settings.Get().PythonPath, dir)
	switch {
	case errors.Is(err, model.ErrNotFound):
		sum.Skip("requirements", "no requirements file")
	case err != nil:
		s.logger.Warningf("Requirements install failed: %v", err)
		sum.Fail("requirements", err)
	default:
		sum.OK("requirements", "")
	}

	return nil
}

// SetRemote points the origin remote of the install dir to a new repository URL, used to
// switch to a fork or a mirror. Versions of the new remote show up on the next refresh.
func (s *Service) SetRemote(ctx context.Context, sum *model.Summary, url string) error {
	url = strings.TrimSpace(url)
	if url == "" || strings.ContainsAny(url, " \t\n") {
		return fmt.Errorf("invalid remote url %q: %w", url, model.ErrNotValid)
	}

	dir, err := s.installDir()
	if err != nil {
		return err
	}

	current, err := s.git.RemoteGetURL(ctx, dir, originRemote)
	if err != nil {
		s.logger.Warningf("Could not read current remote: %v", err)
	}
	if current == url {
		sum.Skip("set remote", "already "+url)
		return nil
	}

	if err := s.git.RemoteSetURL(ctx, dir, originRemote, url); err != nil {
		sum.Fail("set remote", err)
		return fmt.Errorf("could not set remote: %w", err)
	}
	sum.OK("set remote", url)
	s.logger.Infof("Remote %s changed from %q to %q", originRemote, current, url)

	return nil
}

func (s *Service) installDir() (string, error) {
	dir := s.settings.Get().InstallDir
	if dir == "" {
		return "", fmt.Errorf("install dir is not configured: %w", model.ErrNotValid)
	}
	return dir, nil
}
