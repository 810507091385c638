package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/run"

	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/tui"
	"github.com/slok/comfylaunch/internal/worker"
)

// UICommandName is the name of the interactive command.
const UICommandName = "ui"

type UICommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	mouse bool
}

// NewUICommand returns the terminal UI command, the default one.
func NewUICommand(rootCmd *RootCommand, app *kingpin.Application) *UICommand {
	c := &UICommand{rootCmd: rootCmd}

	c.Cmd = app.Command(UICommandName, "Open the interactive launcher.").Default()
	c.Cmd.Flag("mouse", "Enable mouse scrolling of the output pane.").Default("true").BoolVar(&c.mouse)

	return c
}

func (c UICommand) Name() string { return c.Cmd.FullCommand() }

func (c UICommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svcs.settings.Flush(); err != nil {
			logger.Errorf("Could not save settings: %v", err)
		}
	}()

	repo, err := c.rootCmd.historyRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	st := state.New()
	dispatcher := tui.NewDispatcher()

	sup, backendSvc, err := svcs.newSupervisor(st, dispatcher)
	if err != nil {
		return err
	}
	defer func() {
		if err := sup.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Errorf("Could not stop the backend: %v", err)
		}
	}()

	w, err := worker.New(worker.Config{
		State:      st,
		Dispatcher: dispatcher,
		History:    repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create worker: %w", err)
	}

	backendLog, err := openBackendLog(c.rootCmd.DataDir)
	if err != nil {
		return err
	}
	defer backendLog.Close()

	m, err := tui.New(tui.Config{
		State:        st,
		Backend:      backendSvc,
		Output:       sup,
		Queue:        w,
		Settings:     svcs.settings,
		Capabilities: svcs.caps,
		Dispatcher:   dispatcher,
		LogSink:      backendLog,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create terminal UI: %w", err)
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if c.mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)
	dispatcher.Attach(p)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	// Task worker.
	g.Add(
		func() error {
			return w.Run(ctx)
		},
		func(_ error) {
			w.Shutdown()
			cancel()
		},
	)

	// Backend crash and external backend watcher.
	g.Add(
		func() error {
			return sup.Watch(ctx)
		},
		func(_ error) {
			cancel()
		},
	)

	// Terminal UI.
	g.Add(
		func() error {
			_, err := p.Run()
			return err
		},
		func(_ error) {
			p.Quit()
		},
	)

	return g.Run()
}
