package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/comfylaunch/cmd/comfylaunch/commands"
	"github.com/slok/comfylaunch/internal/conventions"
	"github.com/slok/comfylaunch/internal/log"
	loglogrus "github.com/slok/comfylaunch/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("comfylaunch", "Launcher and manager for a local ComfyUI backend.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	uiCmd := commands.NewUICommand(rootCmd, app)
	runCmd := commands.NewRunCommand(rootCmd, app)
	doctorCmd := commands.NewDoctorCommand(rootCmd, app)
	diagnoseCmd := commands.NewDiagnoseCommand(rootCmd, app)
	historyCmd := commands.NewHistoryCommand(rootCmd, app)

	versionsCmd := commands.NewVersionsCommand(app)
	versionsListCmd := commands.NewVersionsListCommand(rootCmd, versionsCmd)
	versionsActivateCmd := commands.NewVersionsActivateCommand(rootCmd, versionsCmd)
	versionsCurrentCmd := commands.NewVersionsCurrentCommand(rootCmd, versionsCmd)
	versionsSetRemoteCmd := commands.NewVersionsSetRemoteCommand(rootCmd, versionsCmd)

	nodesCmd := commands.NewNodesCommand(app)
	nodesListCmd := commands.NewNodesListCommand(rootCmd, nodesCmd)
	nodesInstallCmd := commands.NewNodesInstallCommand(rootCmd, nodesCmd)
	nodesUpdateCmd := commands.NewNodesUpdateCommand(rootCmd, nodesCmd)
	nodesUninstallCmd := commands.NewNodesUninstallCommand(rootCmd, nodesCmd)

	settingsCmd := commands.NewSettingsCommand(app)
	settingsShowCmd := commands.NewSettingsShowCommand(rootCmd, settingsCmd)
	settingsSetCmd := commands.NewSettingsSetCommand(rootCmd, settingsCmd)

	cmds := map[string]commands.Command{
		uiCmd.Name():                uiCmd,
		runCmd.Name():               runCmd,
		doctorCmd.Name():            doctorCmd,
		diagnoseCmd.Name():          diagnoseCmd,
		historyCmd.Name():           historyCmd,
		versionsListCmd.Name():      versionsListCmd,
		versionsActivateCmd.Name():  versionsActivateCmd,
		versionsCurrentCmd.Name():   versionsCurrentCmd,
		versionsSetRemoteCmd.Name(): versionsSetRemoteCmd,
		nodesListCmd.Name():         nodesListCmd,
		nodesInstallCmd.Name():      nodesInstallCmd,
		nodesUpdateCmd.Name():       nodesUpdateCmd,
		nodesUninstallCmd.Name():    nodesUninstallCmd,
		settingsShowCmd.Name():      settingsShowCmd,
		settingsSetCmd.Name():       settingsSetCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"history":          true,
		"versions list":    true,
		"versions current": true,
		"nodes list":       true,
		"settings show":    true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// The terminal UI owns the screen, its logs go to a file.
	logOut := stderr
	if cmdName == commands.UICommandName && !rootCmd.NoLog {
		f, err := openLauncherLog(rootCmd.DataDir)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}

	// Set logger.
	rootCmd.Logger = getLogger(*rootCmd, logOut)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

func openLauncherLog(dataDir string) (*os.File, error) {
	path := conventions.LauncherLogPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create logs dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open launcher log: %w", err)
	}
	return f, nil
}

// getLogger returns the application logger.
func getLogger(config commands.RootCommand, out io.Writer) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	logrusLog := logrus.New()
	logrusLog.Out = out // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor && out == config.Stderr,
			DisableColors: config.NoColor || out != config.Stderr,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
