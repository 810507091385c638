package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/settings"
)

// NewSettingsCommand returns the parent command of the settings subcommands.
func NewSettingsCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("settings", "Show and change the launcher settings.")
}

type SettingsShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewSettingsShowCommand returns the settings show command.
func NewSettingsShowCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *SettingsShowCommand {
	c := &SettingsShowCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("show", "Show the current settings.").Default()
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c SettingsShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c SettingsShowCommand) Run(ctx context.Context) error {
	store, err := c.rootCmd.loadSettings()
	if err != nil {
		return err
	}

	if err := c.rootCmd.printer(c.format).PrintSettings(store.Get()); err != nil {
		return fmt.Errorf("could not print settings: %w", err)
	}
	return nil
}

type SettingsSetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	assignments []string
}

// NewSettingsSetCommand returns the settings set command.
func NewSettingsSetCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *SettingsSetCommand {
	c := &SettingsSetCommand{rootCmd: rootCmd}

	help := fmt.Sprintf("Set settings with KEY=VALUE, keys: %s. Use %sNAME=VALUE for backend environment variables.",
		strings.Join(settings.Keys(), ", "), settings.EnvPrefix)
	c.Cmd = parent.Command("set", help)
	c.Cmd.Arg("assignments", "KEY=VALUE assignments.").Required().StringsVar(&c.assignments)

	return c
}

func (c SettingsSetCommand) Name() string { return c.Cmd.FullCommand() }

func (c SettingsSetCommand) Run(ctx context.Context) error {
	store, err := c.rootCmd.loadSettings()
	if err != nil {
		return err
	}

	res, err := settings.Apply(store.Get(), c.assignments)
	if err != nil {
		return err
	}

	store.Update(func(s *model.Settings) { *s = res })
	if err := store.Flush(); err != nil {
		return fmt.Errorf("could not save settings: %w", err)
	}

	return c.rootCmd.printer("table").PrintMessage("Settings saved")
}
