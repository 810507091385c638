// Package vcs runs the git executable on the backend install and its custom nodes.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/slok/comfylaunch/internal/log"
)

// Per operation timeouts.
const (
	QueryTimeout     = 30 * time.Second
	CheckoutTimeout  = 2 * time.Minute
	FetchTimeout     = 5 * time.Minute
	CloneTimeout     = 5 * time.Minute
	PullTimeout      = 5 * time.Minute
	SubmoduleTimeout = 5 * time.Minute
)

// Result is the captured output of a git invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandError is returned when git exits with a non zero code or times out.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Executor executes a command capturing its output.
type Executor interface {
	Execute(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecutorFunc is a helper to use functions as Executor.
type ExecutorFunc func(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, int, error)

func (f ExecutorFunc) Execute(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, int, error) {
	return f(ctx, dir, name, args...)
}

type osExecutor struct{}

func (osExecutor) Execute(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Never block on credential prompts.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	return stdout.Bytes(), stderr.Bytes(), code, err
}

// RunnerConfig is the configuration of the git runner.
type RunnerConfig struct {
	// Binary is the git executable, "git" by default.
	Binary   string
	Executor Executor
	Logger   log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Binary == "" {
		c.Binary = "git"
	}
	if c.Executor == nil {
		c.Executor = osExecutor{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "vcs.Runner"})
	return nil
}

// Runner runs git commands. Output is captured in memory, never streamed.
type Runner struct {
	binary   string
	executor Executor
	logger   log.Logger
}

// NewRunner returns a new git runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		binary:   cfg.Binary,
		executor: cfg.Executor,
		logger:   cfg.Logger,
	}, nil
}

// Available returns an error if the git binary can't be found.
func (r *Runner) Available() error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return fmt.Errorf("git not available: %w", err)
	}
	return nil
}

// Run runs git in dir with the timeout.
func (r *Runner) Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, code, err := r.executor.Execute(ctx, dir, r.binary, args...)
	res := Result{
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timeout after %s: %w", timeout, ctx.Err())
		}
		cerr := &CommandError{Args: args, ExitCode: code, Stderr: res.Stderr, Err: err}
		r.logger.Debugf("git command failed in %q: %v", dir, cerr)
		return res, cerr
	}

	r.logger.Debugf("git %s in %q took %s", strings.Join(args, " "), dir, res.Duration)
	return res, nil
}

func (r *Runner) output(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	res, err := r.Run(ctx, dir, timeout, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Status returns the porcelain status, empty when the tree is clean.
func (r *Runner) Status(ctx context.Context, dir string) (string, error) {
	return r.output(ctx, dir, QueryTimeout, "status", "--porcelain")
}

// Fetch fetches every remote including tags.
func (r *Runner) Fetch(ctx context.Context, dir string) error {
	_, err := r.Run(ctx, dir, FetchTimeout, "fetch", "--all", "--tags", "--prune", "--force")
	return err
}

// Checkout checks out a ref.
func (r *Runner) Checkout(ctx context.Context, dir, ref string) error {
	_, err := r.Run(ctx, dir, CheckoutTimeout, "checkout", ref)
	return err
}

// RemoteGetURL returns the URL of a remote.
func (r *Runner) RemoteGetURL(ctx context.Context, dir, remote string) (string, error) {
	return r.output(ctx, dir, QueryTimeout, "remote", "get-url", remote)
}

// RemoteSetURL sets the URL of a remote.
func (r *Runner) RemoteSetURL(ctx context.Context, dir, remote, url string) error {
	_, err := r.Run(ctx, dir, QueryTimeout, "remote", "set-url", remote, url)
	return err
}

// SubmoduleUpdate initializes and updates the submodules recursively.
func (r *Runner) SubmoduleUpdate(ctx context.Context, dir string) error {
	_, err := r.Run(ctx, dir, SubmoduleTimeout, "submodule", "update", "--init", "--recursive")
	return err
}

// Describe returns the closest tag description of HEAD, or its abbreviated hash.
func (r *Runner) Describe(ctx context.Context, dir string) (string, error) {
	return r.output(ctx, dir, QueryTimeout, "describe", "--tags", "--always")
}

// RevParse resolves a ref to a commit hash.
func (r *Runner) RevParse(ctx context.Context, dir, ref string) (string, error) {
	return r.output(ctx, dir, QueryTimeout, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
}

// UpstreamBranch returns the upstream tracking branch of the current branch, empty when
// there is none (detached HEAD or untracked branch).
func (r *Runner) UpstreamBranch(ctx context.Context, dir string) (string, error) {
	out, err := r.output(ctx, dir, QueryTimeout, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) && cerr.ExitCode == 128 {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// Clone clones url into dest.
func (r *Runner) Clone(ctx context.Context, url, dest string) error {
	_, err := r.Run(ctx, "", CloneTimeout, "clone", "--recursive", url, dest)
	return err
}

// Pull fast forwards the current branch from its upstream.
func (r *Runner) Pull(ctx context.Context, dir string) error {
	_, err := r.Run(ctx, dir, PullTimeout, "pull", "--ff-only")
	return err
}
