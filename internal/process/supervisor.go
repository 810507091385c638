package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process/readiness"
	"github.com/slok/comfylaunch/internal/state"
)

// SupervisorConfig is the configuration of the process supervisor.
type SupervisorConfig struct {
	State    *state.State
	Spawner  Spawner
	Prober   Prober
	Settings SettingsProvider
	// Markers are the readiness markers, the embedded default set is used if missing.
	Markers    *readiness.Set
	Dispatcher Dispatcher
	// Env is appended to the backend environment.
	Env []string
	// StartGrace is the time waited after spawning before confirming the process is alive.
	StartGrace time.Duration
	// StopTimeout is the graceful termination wait.
	StopTimeout time.Duration
	// KillTimeout is the wait after a forced kill.
	KillTimeout time.Duration
	// DrainTimeout is the wait for the output readers once the process has exited.
	DrainTimeout  time.Duration
	WatchInterval time.Duration
	// OutputBuffer is the routed lines channel capacity.
	OutputBuffer int
	// TailLines is the number of output lines kept to explain failures.
	TailLines int
	Logger    log.Logger
}

func (c *SupervisorConfig) defaults() error {
	if c.State == nil {
		return fmt.Errorf("state is required")
	}
	if c.Spawner == nil {
		return fmt.Errorf("spawner is required")
	}
	if c.Prober == nil {
		return fmt.Errorf("prober is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings provider is required")
	}
	if c.Markers == nil {
		m := readiness.Default()
		c.Markers = &m
	}
	if err := c.Markers.Validate(); err != nil {
		return fmt.Errorf("invalid readiness markers: %w", err)
	}
	if c.Dispatcher == nil {
		c.Dispatcher = noopDispatcher{}
	}
	if c.StartGrace <= 0 {
		c.StartGrace = 1500 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = 3 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 2 * time.Second
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = time.Second
	}
	if c.OutputBuffer <= 0 {
		c.OutputBuffer = 1024
	}
	if c.TailLines <= 0 {
		c.TailLines = 50
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.Supervisor"})
	return nil
}

// Supervisor owns the lifecycle of the backend process. At most one process is owned at
// a time.
//
// Start, Stop and Check are serialized, the phase in the shared state is only written
// here.
type Supervisor struct {
	state        *state.State
	spawner      Spawner
	prober       Prober
	settings     SettingsProvider
	markers      readiness.Set
	dispatcher   Dispatcher
	env          []string
	startGrace   time.Duration
	stopTimeout  time.Duration
	killTimeout  time.Duration
	drainTimeout time.Duration
	watchEvery   time.Duration
	tailLines    int
	logger       log.Logger

	lines         chan model.Line
	browserOpened atomic.Bool

	mu           sync.Mutex
	session      *session
	externalPort int
}

// NewSupervisor returns a new process supervisor.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Supervisor{
		state:        cfg.State,
		spawner:      cfg.Spawner,
		prober:       cfg.Prober,
		settings:     cfg.Settings,
		markers:      *cfg.Markers,
		dispatcher:   cfg.Dispatcher,
		env:          cfg.Env,
		startGrace:   cfg.StartGrace,
		stopTimeout:  cfg.StopTimeout,
		killTimeout:  cfg.KillTimeout,
		drainTimeout: cfg.DrainTimeout,
		watchEvery:   cfg.WatchInterval,
		tailLines:    cfg.TailLines,
		logger:       cfg.Logger,
		lines:        make(chan model.Line, cfg.OutputBuffer),
	}, nil
}

// session is a single owned process run.
type session struct {
	proc    Process
	url     string
	matcher readiness.Matcher

	// A marker may match during the grace window, it is only announced once the start
	// succeeded.
	marker   atomic.Pointer[string]
	running  atomic.Bool
	notified atomic.Bool

	quit     chan struct{}
	quitOnce sync.Once
	readers  chan struct{}

	tailMu  sync.Mutex
	tail    []string
	tailMax int
}

func (s *session) quitReaders() { s.quitOnce.Do(func() { close(s.quit) }) }

func (s *session) quitting() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *session) remember(line string) {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	s.tail = append(s.tail, line)
	if len(s.tail) > s.tailMax {
		s.tail = s.tail[len(s.tail)-s.tailMax:]
	}
}

func (s *session) lastLines() []string {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	return append([]string(nil), s.tail...)
}

// Lines returns the routed output lines of every session, in emission order per stream.
func (s *Supervisor) Lines() <-chan model.Line { return s.lines }

// Phase returns the current process phase.
func (s *Supervisor) Phase() model.ProcessPhase { return s.state.ProcessPhase() }

// MarkBrowserOpened returns true only the first time it is called in a session.
func (s *Supervisor) MarkBrowserOpened() bool {
	return s.browserOpened.CompareAndSwap(false, true)
}

// Start starts the backend, or adopts an already running one answering on the port.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCanStart(); err != nil {
		s.logger.Warningf("Backend not started: %v", err)
		return err
	}

	cfg := s.settings.Get()
	url := cfg.BrowserURL()

	if s.prober.Probe(ctx, cfg.Port) {
		s.logger.Infof("Backend already running on port %d, not spawning a new one", cfg.Port)
		s.externalPort = cfg.Port
		s.setPhase(model.ProcessPhaseExternallyDetected)
		s.dispatcher.Send(ReadyMsg{URL: url, External: true})
		return nil
	}

	cmd := BuildCommand(cfg, s.env)
	s.setPhase(model.ProcessPhaseStarting)
	proc, err := s.spawner.Spawn(ctx, cmd)
	if err != nil {
		s.setPhase(model.ProcessPhaseStopped)
		s.logger.Errorf("Could not spawn backend: %v", err)
		return fmt.Errorf("could not spawn %q: %w: %w", cmd.Path, model.ErrStartup, err)
	}
	s.logger.Infof("Backend spawned with pid %d: %s", proc.PID(), cmd)

	sess := &session{
		proc:    proc,
		url:     url,
		matcher: s.markers.Compile(cfg.ListenAddr, cfg.Port),
		quit:    make(chan struct{}),
		readers: make(chan struct{}),
		tailMax: s.tailLines,
	}
	s.session = sess
	s.startReaders(sess)

	// Wait returns early if the process exits within the grace period.
	if proc.Wait(s.startGrace) {
		return s.failStartup(ctx, sess, cfg.Port)
	}

	s.state.Stop().Clear()
	s.setPhase(model.ProcessPhaseRunning)
	s.logger.Infof("Backend running")
	sess.running.Store(true)
	s.notifyReady(sess)
	return nil
}

// notifyReady sends the ready message once per session, only after a marker matched and
// the process survived the grace window.
func (s *Supervisor) notifyReady(sess *session) {
	name := sess.marker.Load()
	if name == nil || !sess.running.Load() || !sess.notified.CompareAndSwap(false, true) {
		return
	}
	s.logger.Infof("Backend ready, marker %q matched", *name)
	s.dispatcher.Send(ReadyMsg{URL: sess.url, Marker: *name})
}

func (s *Supervisor) checkCanStart() error {
	switch phase := s.state.ProcessPhase(); {
	case phase == model.ProcessPhaseExternallyDetected:
		return fmt.Errorf("backend already running outside the launcher: %w", model.ErrBusy)
	case phase != model.ProcessPhaseStopped:
		return fmt.Errorf("backend is %s: %w", phase, model.ErrBusy)
	case s.state.TaskRunning():
		return fmt.Errorf("a task is running: %w", model.ErrBusy)
	case s.state.ModalOpen():
		return fmt.Errorf("a dialog is open: %w", model.ErrBusy)
	}
	return nil
}

func (s *Supervisor) failStartup(ctx context.Context, sess *session, port int) error {
	s.release(sess)
	s.session = nil

	err := &StartupError{
		ExitCode:  sess.proc.ExitCode(),
		Port:      port,
		Output:    sess.lastLines(),
		PortInUse: s.prober.Probe(ctx, port),
	}
	s.setPhase(model.ProcessPhaseStopped)
	s.logger.Errorf("Backend startup failed: %v", err)

	return err
}

// Stop stops the owned backend: graceful termination first, kill if it does not exit in
// time. Externally detected backends are not ours to stop.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil {
		if s.state.ProcessPhase() == model.ProcessPhaseExternallyDetected {
			s.logger.Warningf("Backend was not started by the launcher, ignoring stop")
			return fmt.Errorf("backend running outside the launcher can't be stopped: %w", model.ErrNotValid)
		}
		s.logger.Warningf("No backend running, ignoring stop")
		return fmt.Errorf("no backend running: %w", model.ErrNotValid)
	}

	s.setPhase(model.ProcessPhaseStopping)
	defer func() {
		s.release(sess)
		s.session = nil
		s.state.Stop().Clear()
		s.browserOpened.Store(false)
		s.setPhase(model.ProcessPhaseStopped)
	}()

	s.state.Stop().Set()
	sess.quitReaders()

	pid := sess.proc.PID()
	s.logger.Infof("Stopping backend with pid %d", pid)
	if err := sess.proc.Terminate(); err != nil {
		s.logger.Warningf("Could not terminate backend: %v", err)
	}
	if sess.proc.Wait(s.stopTimeout) {
		s.logger.Infof("Backend stopped")
		return nil
	}

	s.logger.Warningf("Backend did not exit after %s, killing it", s.stopTimeout)
	if err := sess.proc.Kill(); err != nil {
		s.logger.Warningf("Could not kill backend: %v", err)
	}
	if !sess.proc.Wait(s.killTimeout) {
		s.logger.Errorf("Backend with pid %d still alive after kill", pid)
		return fmt.Errorf("backend with pid %d still alive after kill", pid)
	}

	s.logger.Infof("Backend killed")
	return nil
}

// Shutdown stops the backend if the launcher owns one.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if !s.state.ProcessPhase().Owned() {
		return nil
	}
	return s.Stop(ctx)
}

// Check detects an owned backend that exited outside of Stop, and an external backend
// that stopped answering. It returns true when the phase changed. Checks overlapping a
// running Start or Stop are skipped.
func (s *Supervisor) Check(ctx context.Context) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	switch s.state.ProcessPhase() {
	case model.ProcessPhaseRunning:
		sess := s.session
		if sess == nil || sess.proc.Alive() {
			return false
		}

		code := sess.proc.ExitCode()
		s.release(sess)
		s.session = nil
		s.state.Stop().Clear()
		s.browserOpened.Store(false)
		s.setPhase(model.ProcessPhaseStopped)
		s.logger.Errorf("Backend exited unexpectedly with code %d", code)
		s.dispatcher.Send(CrashedMsg{ExitCode: code, Output: sess.lastLines()})
		return true

	case model.ProcessPhaseExternallyDetected:
		if s.prober.Probe(ctx, s.externalPort) {
			return false
		}
		s.logger.Infof("External backend on port %d is gone", s.externalPort)
		s.forgetExternal()
		return true
	}

	return false
}

// ForgetExternal leaves the externally detected phase. It returns false if the phase was
// another one.
func (s *Supervisor) ForgetExternal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.ProcessPhase() != model.ProcessPhaseExternallyDetected {
		return false
	}
	s.forgetExternal()
	return true
}

func (s *Supervisor) forgetExternal() {
	s.externalPort = 0
	s.browserOpened.Store(false)
	s.setPhase(model.ProcessPhaseStopped)
}

// Watch runs Check periodically until the context is done.
func (s *Supervisor) Watch(ctx context.Context) error {
	t := time.NewTicker(s.watchEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Check(ctx)
		}
	}
}

func (s *Supervisor) setPhase(p model.ProcessPhase) {
	s.state.SetProcessPhase(p)
	s.logger.Debugf("Backend phase: %s", p)
	s.dispatcher.Send(StateChangedMsg{Phase: p})
}

func (s *Supervisor) startReaders(sess *session) {
	var g errgroup.Group
	g.Go(func() error { return s.read(sess, model.StreamStdout, sess.proc.Stdout()) })
	g.Go(func() error { return s.read(sess, model.StreamStderr, sess.proc.Stderr()) })

	go func() {
		defer close(sess.readers)
		if err := g.Wait(); err != nil {
			s.logger.Debugf("Output reader ended with error: %v", err)
		}
	}()
}

// read forwards the lines of a stream until it closes or the session stops.
func (s *Supervisor) read(sess *session, stream model.Stream, r io.Reader) error {
	level := model.LineLevelInfo
	if stream == model.StreamStderr {
		level = model.LineLevelError
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if sess.quitting() {
			return nil
		}

		text := sc.Text()
		sess.remember(text)
		if name, ok := sess.matcher.Match(text); ok && sess.marker.CompareAndSwap(nil, &name) {
			s.notifyReady(sess)
		}

		select {
		case s.lines <- model.Line{Stream: stream, Level: level, Text: text}:
		case <-sess.quit:
			return nil
		}
	}

	err := sc.Err()
	if err != nil && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%s: %w", stream, err)
	}
	return nil
}

// release waits for the readers to drain the output of an exited process and releases the
// process streams.
func (s *Supervisor) release(sess *session) {
	select {
	case <-sess.readers:
	case <-time.After(s.drainTimeout):
		s.logger.Warningf("Output readers still running after %s, closing streams", s.drainTimeout)
	}

	sess.quitReaders()
	if err := sess.proc.Close(); err != nil {
		s.logger.Debugf("Could not close process streams: %v", err)
	}
	<-sess.readers
}
