// Package fake has scripted processes to test the supervisor without spawning anything.
package fake

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/process"
)

// ProcessConfig scripts a fake process.
type ProcessConfig struct {
	// Stdout and Stderr lines are written right after the spawn.
	Stdout []string
	Stderr []string
	// ExitAfter makes the process exit on its own, zero means it runs until stopped.
	ExitAfter time.Duration
	ExitCode  int
	// IgnoreTerminate makes graceful termination a no-op, only a kill stops it.
	IgnoreTerminate bool
}

// Process is a scripted process.Process.
type Process struct {
	pid  int
	cfg  ProcessConfig
	done chan struct{}
	once sync.Once
	code atomic.Int64

	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter
	stdoutMu         sync.Mutex
	stderrMu         sync.Mutex

	terminateCalls atomic.Int32
	killCalls      atomic.Int32
}

// NewProcess returns a running fake process.
func NewProcess(pid int, cfg ProcessConfig) *Process {
	p := &Process{
		pid:  pid,
		cfg:  cfg,
		done: make(chan struct{}),
	}
	p.code.Store(-1)
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, l := range cfg.Stdout {
			if p.Emit(false, l) != nil {
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for _, l := range cfg.Stderr {
			if p.Emit(true, l) != nil {
				return
			}
		}
	}()

	// Like an OS pipe, the streams end once the process is gone and everything was written.
	go func() {
		wg.Wait()
		<-p.done
		p.stdoutW.Close()
		p.stderrW.Close()
	}()

	if cfg.ExitAfter > 0 {
		go func() {
			t := time.NewTimer(cfg.ExitAfter)
			defer t.Stop()
			select {
			case <-t.C:
				p.Exit(cfg.ExitCode)
			case <-p.done:
			}
		}()
	}

	return p
}

// Emit writes a line on stdout or stderr. It blocks until the line is read.
func (p *Process) Emit(stderr bool, line string) error {
	w, mu := p.stdoutW, &p.stdoutMu
	if stderr {
		w, mu = p.stderrW, &p.stderrMu
	}

	mu.Lock()
	defer mu.Unlock()
	_, err := io.WriteString(w, line+"\n")
	return err
}

// Exit makes the process exit with the code, only the first call has effect.
func (p *Process) Exit(code int) {
	p.once.Do(func() {
		p.code.Store(int64(code))
		close(p.done)
	})
}

func (p *Process) PID() int          { return p.pid }
func (p *Process) Stdout() io.Reader { return p.stdoutR }
func (p *Process) Stderr() io.Reader { return p.stderrR }
func (p *Process) ExitCode() int     { return int(p.code.Load()) }

func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) Terminate() error {
	p.terminateCalls.Add(1)
	if !p.cfg.IgnoreTerminate {
		p.Exit(0)
	}
	return nil
}

func (p *Process) Kill() error {
	p.killCalls.Add(1)
	p.Exit(-1)
	return nil
}

func (p *Process) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

func (p *Process) Close() error {
	p.stdoutR.Close()
	p.stderrR.Close()
	return nil
}

// TerminateCalls returns how many times Terminate was called.
func (p *Process) TerminateCalls() int { return int(p.terminateCalls.Load()) }

// KillCalls returns how many times Kill was called.
func (p *Process) KillCalls() int { return int(p.killCalls.Load()) }

// SpawnerConfig is the configuration of the fake spawner.
type SpawnerConfig struct {
	// Processes are used in order, the last one is reused when exhausted.
	Processes []ProcessConfig
	// SpawnErr makes every spawn fail.
	SpawnErr error
	Logger   log.Logger
}

func (c *SpawnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.FakeSpawner"})
	return nil
}

// Spawner is a fake process.Spawner.
type Spawner struct {
	cfg    SpawnerConfig
	logger log.Logger

	mu        sync.Mutex
	commands  []process.Command
	processes []*Process
}

// NewSpawner returns a new fake spawner.
func NewSpawner(cfg SpawnerConfig) (*Spawner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Spawner{cfg: cfg, logger: cfg.Logger}, nil
}

// Spawn records the command and returns the next scripted process.
func (s *Spawner) Spawn(ctx context.Context, cmd process.Command) (process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, cmd)
	if s.cfg.SpawnErr != nil {
		return nil, s.cfg.SpawnErr
	}

	pcfg := ProcessConfig{}
	if n := len(s.cfg.Processes); n > 0 {
		pcfg = s.cfg.Processes[min(len(s.processes), n-1)]
	}

	p := NewProcess(1000+len(s.processes), pcfg)
	s.processes = append(s.processes, p)
	s.logger.Infof("Spawned fake process %d: %s", p.pid, cmd)

	return p, nil
}

// Commands returns the spawned commands.
func (s *Spawner) Commands() []process.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]process.Command(nil), s.commands...)
}

// Processes returns the spawned processes.
func (s *Spawner) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.processes...)
}

// Last returns the last spawned process, nil if none.
func (s *Spawner) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.processes) == 0 {
		return nil
	}
	return s.processes[len(s.processes)-1]
}
