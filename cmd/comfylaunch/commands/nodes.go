package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/comfylaunch/internal/capability"
	"github.com/slok/comfylaunch/internal/worker"
)

// NewNodesCommand returns the parent command of the custom node subcommands.
func NewNodesCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("nodes", "Manage custom nodes.")
}

type NodesListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewNodesListCommand returns the nodes list command.
func NewNodesListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NodesListCommand {
	c := &NodesListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List the installed custom nodes.")
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c NodesListCommand) Name() string { return c.Cmd.FullCommand() }

func (c NodesListCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Nodes); err != nil {
		return err
	}

	nodes, err := svcs.nodes.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list nodes: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintNodes(nodes); err != nil {
		return fmt.Errorf("could not print nodes: %w", err)
	}
	return nil
}

type NodesInstallCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	url string
}

// NewNodesInstallCommand returns the nodes install command.
func NewNodesInstallCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NodesInstallCommand {
	c := &NodesInstallCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("install", "Clone a custom node and install its requirements.")
	c.Cmd.Arg("url", "Git repository URL of the node.").Required().StringVar(&c.url)

	return c
}

func (c NodesInstallCommand) Name() string { return c.Cmd.FullCommand() }

func (c NodesInstallCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Nodes); err != nil {
		return err
	}

	rec, err := c.rootCmd.runTask(ctx, "install node", func(ctx context.Context, e worker.Exec) error {
		_, err := svcs.nodes.Install(ctx, e.Stop, e.Summary, c.url)
		return err
	})
	c.rootCmd.printTaskSummary(rec)
	if err != nil {
		return fmt.Errorf("could not install %q: %w", c.url, err)
	}
	return nil
}

type NodesUpdateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
	all  bool
}

// NewNodesUpdateCommand returns the nodes update command.
func NewNodesUpdateCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NodesUpdateCommand {
	c := &NodesUpdateCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("update", "Pull the latest changes of a node, or of all of them.")
	c.Cmd.Arg("name", "Node name.").StringVar(&c.name)
	c.Cmd.Flag("all", "Update every node that tracks an upstream branch.").BoolVar(&c.all)

	return c
}

func (c NodesUpdateCommand) Name() string { return c.Cmd.FullCommand() }

func (c NodesUpdateCommand) Run(ctx context.Context) error {
	if c.all == (c.name != "") {
		return fmt.Errorf("a node name or --all is required, not both")
	}

	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Nodes); err != nil {
		return err
	}

	name := "update node " + c.name
	fn := func(ctx context.Context, e worker.Exec) error {
		return svcs.nodes.Update(ctx, e.Stop, e.Summary, c.name)
	}
	if c.all {
		name = "update all nodes"
		fn = func(ctx context.Context, e worker.Exec) error {
			return svcs.nodes.UpdateAll(ctx, e.Stop, e.Summary)
		}
	}

	rec, err := c.rootCmd.runTask(ctx, name, fn)
	c.rootCmd.printTaskSummary(rec)
	if err != nil {
		return fmt.Errorf("could not update: %w", err)
	}
	return nil
}

type NodesUninstallCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
}

// NewNodesUninstallCommand returns the nodes uninstall command.
func NewNodesUninstallCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NodesUninstallCommand {
	c := &NodesUninstallCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("uninstall", "Remove a custom node directory.")
	c.Cmd.Arg("name", "Node name.").Required().StringVar(&c.name)

	return c
}

func (c NodesUninstallCommand) Name() string { return c.Cmd.FullCommand() }

func (c NodesUninstallCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Nodes); err != nil {
		return err
	}

	_, err = c.rootCmd.runTask(ctx, "uninstall node "+c.name, func(ctx context.Context, e worker.Exec) error {
		if err := svcs.nodes.Uninstall(ctx, c.name); err != nil {
			return err
		}
		e.Summary.OK(c.name, "removed")
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not uninstall %q: %w", c.name, err)
	}

	return c.rootCmd.printer("table").PrintMessage(fmt.Sprintf("Node %s uninstalled", c.name))
}
