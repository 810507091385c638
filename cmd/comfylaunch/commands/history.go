package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit  int
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the latest finished tasks.")
	c.Cmd.Flag("limit", "Maximum number of tasks to show, 0 shows all.").Short('n').Default("20").IntVar(&c.limit)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.historyRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.ListTasks(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintHistory(records); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}
	return nil
}
