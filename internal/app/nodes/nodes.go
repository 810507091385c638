package nodes

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/pip"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/vcs"
)

// Dir is the custom nodes directory, relative to the install dir.
const Dir = "custom_nodes"

const disabledSuffix = ".disabled"

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

// ServiceConfig is the configuration for the custom nodes service.
type ServiceConfig struct {
	Git      vcs.Git
	Pip      pip.Installer
	Settings SettingsProvider
	Logger   log.Logger
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
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Nodes"})
	return nil
}

// Service manages the custom nodes of the backend, each one a git clone inside the custom
// nodes directory.
type Service struct {
	git      vcs.Git
	pip      pip.Installer
	settings SettingsProvider
	logger   log.Logger
}

// NewService creates a new custom nodes service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		git:      cfg.Git,
		pip:      cfg.Pip,
		settings: cfg.Settings,
		logger:   cfg.Logger,
	}, nil
}

// List returns the installed nodes sorted by name. Directories that are not git clones
// are listed without remote information.
func (s *Service) List(ctx context.Context) ([]model.Node, error) {
	root, err := s.root()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read custom nodes: %w", err)
	}

	var nodes []model.Node
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "__") || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		n := model.Node{
			Name:     strings.TrimSuffix(e.Name(), disabledSuffix),
			Path:     filepath.Join(root, e.Name()),
			Disabled: strings.HasSuffix(e.Name(), disabledSuffix),
		}
		if _, err := os.Stat(filepath.Join(n.Path, ".git")); err == nil {
			n.Remote, _ = s.git.RemoteGetURL(ctx, n.Path, "origin")
			n.Commit, _ = s.git.RevParse(ctx, n.Path, "HEAD")
			n.Upstream, err = s.git.UpstreamBranch(ctx, n.Path)
			if err != nil {
				s.logger.Debugf("Could not get %s upstream: %v", n.Name, err)
			}
		}
		nodes = append(nodes, n)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// Install clones a node repository and installs its requirements.
func (s *Service) Install(ctx context.Context, stop *state.StopSignal, sum *model.Summary, repoURL string) (*model.Node, error) {
	name, err := NameFromURL(repoURL)
	if err != nil {
		return nil, err
	}

	dir, err := s.nodeDir(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("node %q: %w", name, model.ErrAlreadyExists)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("could not create custom nodes dir: %w", err)
	}

	if err := s.git.Clone(ctx, repoURL, dir); err != nil {
		sum.Fail("clone "+name, err)
		return nil, fmt.Errorf("could not clone %s: %w", repoURL, err)
	}
	sum.OK("clone "+name, repoURL)
	s.logger.Infof("Installed node %s", name)

	if err := stop.Checkpoint(); err != nil {
		return nil, err
	}
	s.installRequirements(ctx, sum, name, dir)

	return &model.Node{Name: name, Path: dir, Remote: repoURL}, nil
}

// Update pulls a node from its upstream and installs its requirements.
func (s *Service) Update(ctx context.Context, stop *state.StopSignal, sum *model.Summary, name string) error {
	dir, err := s.existingNodeDir(name)
	if err != nil {
		return err
	}

	upstream, err := s.git.UpstreamBranch(ctx, dir)
	if err != nil {
		return fmt.Errorf("could not get %s upstream: %w", name, err)
	}
	if upstream == "" {
		sum.Skip("pull "+name, "no upstream tracking branch")
		return fmt.Errorf("node %q has no upstream tracking branch: %w", name, model.ErrNotValid)
	}

	if err := s.pull(ctx, sum, name, dir); err != nil {
		return err
	}

	if err := stop.Checkpoint(); err != nil {
		return err
	}
	s.installRequirements(ctx, sum, name, dir)

	return nil
}

// UpdateAll pulls every node with an upstream tracking branch. Nodes without one (detached
// or local branches) are skipped and listed in the summary. Single node failures are
// recorded and do not stop the rest, a stop request does.
func (s *Service) UpdateAll(ctx context.Context, stop *state.StopSignal, sum *model.Summary) error {
	nodes, err := s.List(ctx)
	if err != nil {
		return err
	}

	updated := 0
	for _, n := range nodes {
		if err := stop.Checkpoint(); err != nil {
			s.logger.Warningf("Update all stopped after %d nodes", updated)
			return err
		}

		switch {
		case n.Disabled:
			sum.Skip("pull "+n.Name, "disabled")
			continue
		case n.Upstream == "":
			sum.Skip("pull "+n.Name, "no upstream tracking branch")
			continue
		}

		if err := s.pull(ctx, sum, n.Name, n.Path); err != nil {
			continue
		}
		updated++
		s.installRequirements(ctx, sum, n.Name, n.Path)
	}

	s.logger.Infof("Updated %d of %d nodes", updated, len(nodes))
	return nil
}

// Uninstall removes a node directory.
func (s *Service) Uninstall(ctx context.Context, name string) error {
	dir, err := s.existingNodeDir(name)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("could not remove %s: %w", dir, err)
	}
	s.logger.Infof("Uninstalled node %s", name)

	return nil
}

func (s *Service) pull(ctx context.Context, sum *model.Summary, name, dir string) error {
	if err := s.git.Pull(ctx, dir); err != nil {
		s.logger.Warningf("Could not pull %s: %v", name, err)
		sum.Fail("pull "+name, err)
		return fmt.Errorf("could not pull %s: %w", name, err)
	}
	sum.OK("pull "+name, "")
	return nil
}

func (s *Service) installRequirements(ctx context.Context, sum *model.Summary, name, dir string) {
	err := s.pip.InstallRequirements(ctx, s.settings.Get().PythonPath, dir)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		s.logger.Warningf("Could not install %s requirements: %v", name, err)
		sum.Fail("requirements "+name, err)
	default:
		sum.OK("requirements "+name, "")
	}
}

func (s *Service) root() (string, error) {
	install := s.settings.Get().InstallDir
	if install == "" {
		return "", fmt.Errorf("install dir is not configured: %w", model.ErrNotValid)
	}
	return filepath.Join(install, Dir), nil
}

// nodeDir returns the directory of a node making sure it can't escape the custom nodes dir.
func (s *Service) nodeDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid node name %q: %w", name, model.ErrNotValid)
	}

	root, err := s.root()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(root, name)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel != name {
		return "", fmt.Errorf("node %q is outside the custom nodes dir: %w", name, model.ErrNotValid)
	}
	return dir, nil
}

// existingNodeDir resolves an installed node, enabled or disabled.
func (s *Service) existingNodeDir(name string) (string, error) {
	for _, n := range []string{name, name + disabledSuffix} {
		dir, err := s.nodeDir(n)
		if err != nil {
			return "", err
		}
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("node %q: %w", name, model.ErrNotFound)
}

// NameFromURL returns the node directory name of a repository URL.
func NameFromURL(repoURL string) (string, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return "", fmt.Errorf("repository url is required: %w", model.ErrNotValid)
	}

	p := repoURL
	if u, err := url.Parse(repoURL); err == nil && u.Scheme != "" {
		p = u.Path
	} else if _, after, ok := strings.Cut(repoURL, ":"); ok {
		// scp like syntax: git@github.com:owner/repo.git
		p = after
	}

	name := strings.TrimSuffix(path.Base(strings.TrimSuffix(p, "/")), ".git")
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("could not get a node name from %q: %w", repoURL, model.ErrNotValid)
	}
	return name, nil
}
