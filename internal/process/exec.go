package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/slok/comfylaunch/internal/log"
)

// ExecSpawnerConfig is the configuration of the OS process spawner.
type ExecSpawnerConfig struct {
	Logger log.Logger
}

func (c *ExecSpawnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.ExecSpawner"})
	return nil
}

// ExecSpawner spawns OS processes in their own process group, so terminating the backend
// also terminates its children.
type ExecSpawner struct {
	logger log.Logger
}

// NewExecSpawner returns a new OS process spawner.
func NewExecSpawner(cfg ExecSpawnerConfig) (*ExecSpawner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExecSpawner{logger: cfg.Logger}, nil
}

// Spawn starts the command. The process outlives the context, it is only used to abort
// the spawn itself.
func (e *ExecSpawner) Spawn(ctx context.Context, c Command) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Own pipes instead of exec ones, so waiting the process never races with the readers.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("could not create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("could not create stderr pipe: %w", err)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	setProcessGroup(cmd)

	err = cmd.Start()
	// The child has its own copy of the write ends.
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, fmt.Errorf("could not start process: %w", err)
	}

	p := &execProcess{
		cmd:    cmd,
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
		logger: e.logger,
	}
	p.exitCode.Store(-1)
	go p.wait()

	e.logger.Debugf("Spawned %q in %q with pid %d", c.Path, c.Dir, cmd.Process.Pid)
	return p, nil
}

type execProcess struct {
	cmd      *exec.Cmd
	stdout   *os.File
	stderr   *os.File
	done     chan struct{}
	exitCode atomic.Int64
	logger   log.Logger
}

func (p *execProcess) wait() {
	defer close(p.done)

	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.logger.Warningf("Waiting process %d: %v", p.PID(), err)
	}
	p.exitCode.Store(int64(p.cmd.ProcessState.ExitCode()))
}

func (p *execProcess) PID() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) ExitCode() int     { return int(p.exitCode.Load()) }

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

func (p *execProcess) Terminate() error {
	if !p.Alive() {
		return nil
	}
	return terminate(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	if !p.Alive() {
		return nil
	}
	return kill(p.cmd.Process)
}

func (p *execProcess) Close() error {
	return errors.Join(p.stdout.Close(), p.stderr.Close())
}
