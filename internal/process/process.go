// Package process supervises the single backend process owned by the launcher.
package process

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/slok/comfylaunch/internal/model"
)

// Command is what is needed to spawn the backend.
type Command struct {
	Path string
	Args []string
	// Dir is the working directory, the backend install dir.
	Dir string
	// Env is appended to the launcher environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Process is a spawned OS process.
type Process interface {
	PID() int
	Stdout() io.Reader
	Stderr() io.Reader
	Alive() bool
	// Terminate asks the process to exit gracefully.
	Terminate() error
	// Kill forces the process exit.
	Kill() error
	// Wait waits up to timeout for the process to exit, it returns true if it exited.
	Wait(timeout time.Duration) bool
	// ExitCode is -1 while the process is alive or when a signal ended it.
	ExitCode() int
	// Close releases the output streams. Pending reads return.
	Close() error
}

// Spawner knows how to start processes.
type Spawner interface {
	Spawn(ctx context.Context, cmd Command) (Process, error)
}

// Prober tells if a backend is already answering on a local port.
type Prober interface {
	Probe(ctx context.Context, port int) bool
}

// ProberFunc is a helper to use functions as Prober.
type ProberFunc func(ctx context.Context, port int) bool

func (f ProberFunc) Probe(ctx context.Context, port int) bool { return f(ctx, port) }

// Dispatcher delivers supervisor events to the UI goroutine.
type Dispatcher interface {
	Send(msg any)
}

type noopDispatcher struct{}

func (noopDispatcher) Send(any) {}

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

// SettingsProviderFunc is a helper to use functions as SettingsProvider.
type SettingsProviderFunc func() model.Settings

func (f SettingsProviderFunc) Get() model.Settings { return f() }

// StartupError is returned when the backend exits during the startup grace period.
type StartupError struct {
	ExitCode int
	Port     int
	// PortInUse is true when something answered on the port after the exit.
	PortInUse bool
	// Output is the last captured output lines.
	Output []string
}

func (e *StartupError) Error() string {
	if e.PortInUse {
		return fmt.Sprintf("backend exited during startup with code %d: port %d is already in use", e.ExitCode, e.Port)
	}
	if len(e.Output) > 0 {
		return fmt.Sprintf("backend exited during startup with code %d: %s", e.ExitCode, e.Output[len(e.Output)-1])
	}
	return fmt.Sprintf("backend exited during startup with code %d", e.ExitCode)
}

func (e *StartupError) Unwrap() error { return model.ErrStartup }
