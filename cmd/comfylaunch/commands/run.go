package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/comfylaunch/internal/conventions"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/tui"
	"github.com/slok/comfylaunch/internal/worker"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	openBrowser bool
}

// NewRunCommand returns the headless run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Start the backend headless and stream its output until interrupted.")
	c.Cmd.Flag("open-browser", "Open the backend UI once it is ready (defaults to the auto_open_browser setting).").BoolVar(&c.openBrowser)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}

	events := make(chan any, 8)
	dispatcher := worker.DispatcherFunc(func(msg any) {
		switch msg.(type) {
		case process.ReadyMsg, process.CrashedMsg:
			select {
			case events <- msg:
			default:
			}
		}
	})

	sup, backendSvc, err := svcs.newSupervisor(state.New(), dispatcher)
	if err != nil {
		return err
	}

	backendLog, err := openBackendLog(c.rootCmd.DataDir)
	if err != nil {
		return err
	}
	defer backendLog.Close()

	if err := backendSvc.Start(ctx); err != nil {
		return fmt.Errorf("could not start backend: %w", err)
	}
	defer func() {
		if err := sup.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Errorf("Could not stop the backend: %v", err)
		}
	}()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = sup.Watch(watchCtx) }()

	openBrowser := c.openBrowser || svcs.settings.Get().AutoOpenBrowser
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Stopping backend")
			return nil

		case l := <-sup.Lines():
			out := c.rootCmd.Stdout
			if l.Stream == model.StreamStderr {
				out = c.rootCmd.Stderr
			}
			fmt.Fprintln(io.MultiWriter(out, backendLog), l.Text)

		case ev := <-events:
			switch ev := ev.(type) {
			case process.ReadyMsg:
				logger.Infof("Backend ready at %s", ev.URL)
				if openBrowser && sup.MarkBrowserOpened() {
					if err := tui.OpenURL(ev.URL); err != nil {
						logger.Warningf("Could not open browser: %v", err)
					}
				}
			case process.CrashedMsg:
				return fmt.Errorf("backend exited unexpectedly with code %d", ev.ExitCode)
			}
		}
	}
}

func openBackendLog(dataDir string) (*os.File, error) {
	path := conventions.BackendLogPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create logs dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open backend log: %w", err)
	}
	return f, nil
}
