// Package pip installs python requirements with the backend interpreter.
package pip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
)

// RequirementsFile is the requirements file name looked up in a directory.
const RequirementsFile = "requirements.txt"

// Installer installs requirements files.
type Installer interface {
	InstallRequirements(ctx context.Context, python, dir string) error
}

// InstallError is returned when pip exits with an error.
type InstallError struct {
	Dir    string
	Output string
	Err    error
}

func (e *InstallError) Error() string {
	out := strings.TrimSpace(e.Output)
	if i := strings.LastIndex(out, "\n"); i >= 0 {
		out = out[i+1:]
	}
	if out == "" {
		return fmt.Sprintf("pip install in %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("pip install in %s: %v: %s", e.Dir, e.Err, out)
}

func (e *InstallError) Unwrap() error { return e.Err }

// RunnerConfig is the configuration of the pip runner.
type RunnerConfig struct {
	Timeout time.Duration
	Logger  log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pip.Runner"})
	return nil
}

// Runner runs `python -m pip`.
type Runner struct {
	timeout time.Duration
	logger  log.Logger
}

// NewRunner returns a new pip runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{timeout: cfg.Timeout, logger: cfg.Logger}, nil
}

// InstallRequirements installs the requirements file of dir. It returns model.ErrNotFound
// when dir has no requirements file.
func (r *Runner) InstallRequirements(ctx context.Context, python, dir string) error {
	req := filepath.Join(dir, RequirementsFile)
	if _, err := os.Stat(req); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", req, model.ErrNotFound)
		}
		return fmt.Errorf("could not stat requirements: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, python, "-m", "pip", "install", "--disable-pip-version-check", "-r", RequirementsFile)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.logger.Infof("Installing requirements of %s", dir)
	if err := cmd.Run(); err != nil {
		return &InstallError{Dir: dir, Output: out.String(), Err: err}
	}

	return nil
}
