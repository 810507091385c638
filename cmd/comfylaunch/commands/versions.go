package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/comfylaunch/internal/capability"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/worker"
)

// NewVersionsCommand returns the parent command of the version subcommands.
func NewVersionsCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("versions", "Manage the backend version.")
}

type VersionsListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewVersionsListCommand returns the versions list command.
func NewVersionsListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *VersionsListCommand {
	c := &VersionsListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "Fetch and list the available tags and recent commits.")
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c VersionsListCommand) Name() string { return c.Cmd.FullCommand() }

func (c VersionsListCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Versions); err != nil {
		return err
	}

	var versions []model.Version
	rec, err := c.rootCmd.runTask(ctx, "refresh versions", func(ctx context.Context, e worker.Exec) error {
		vs, err := svcs.versions.Refresh(ctx, e.Stop, e.Summary)
		versions = vs
		return err
	})
	if err != nil {
		return fmt.Errorf("could not list versions: %w", err)
	}
	if len(rec.Summary) > 0 && c.format != "json" {
		c.rootCmd.Logger.Debugf("Refresh summary:\n%s", rec.Summary)
	}

	if err := c.rootCmd.printer(c.format).PrintVersions(versions); err != nil {
		return fmt.Errorf("could not print versions: %w", err)
	}
	return nil
}

type VersionsActivateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	ref string
}

// NewVersionsActivateCommand returns the versions activate command.
func NewVersionsActivateCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *VersionsActivateCommand {
	c := &VersionsActivateCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("activate", "Check out a version and reinstall its requirements.")
	c.Cmd.Arg("ref", "Tag or commit to activate.").Required().StringVar(&c.ref)

	return c
}

func (c VersionsActivateCommand) Name() string { return c.Cmd.FullCommand() }

func (c VersionsActivateCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Versions); err != nil {
		return err
	}

	rec, err := c.rootCmd.runTask(ctx, "activate "+c.ref, func(ctx context.Context, e worker.Exec) error {
		return svcs.versions.Activate(ctx, e.Stop, e.Summary, c.ref)
	})
	c.rootCmd.printTaskSummary(rec)
	if err != nil {
		return fmt.Errorf("could not activate %q: %w", c.ref, err)
	}
	return nil
}

type VersionsCurrentCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewVersionsCurrentCommand returns the versions current command.
func NewVersionsCurrentCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *VersionsCurrentCommand {
	c := &VersionsCurrentCommand{rootCmd: rootCmd}
	c.Cmd = parent.Command("current", "Show the checked out version.")
	return c
}

func (c VersionsCurrentCommand) Name() string { return c.Cmd.FullCommand() }

func (c VersionsCurrentCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Versions); err != nil {
		return err
	}

	current, err := svcs.versions.Current(ctx)
	if err != nil {
		return fmt.Errorf("could not get current version: %w", err)
	}
	return c.rootCmd.printer("table").PrintMessage(current)
}

type VersionsSetRemoteCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	url string
}

// NewVersionsSetRemoteCommand returns the versions set-remote command.
func NewVersionsSetRemoteCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *VersionsSetRemoteCommand {
	c := &VersionsSetRemoteCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("set-remote", "Point the backend origin remote to another repository (a fork or a mirror).")
	c.Cmd.Arg("url", "Repository URL.").Required().StringVar(&c.url)

	return c
}

func (c VersionsSetRemoteCommand) Name() string { return c.Cmd.FullCommand() }

func (c VersionsSetRemoteCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Versions); err != nil {
		return err
	}

	rec, err := c.rootCmd.runTask(ctx, "set remote", func(ctx context.Context, e worker.Exec) error {
		return svcs.versions.SetRemote(ctx, e.Summary, c.url)
	})
	c.rootCmd.printTaskSummary(rec)
	if err != nil {
		return fmt.Errorf("could not set remote: %w", err)
	}
	return nil
}
