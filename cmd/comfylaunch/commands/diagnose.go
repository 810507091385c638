package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/comfylaunch/internal/capability"
	"github.com/slok/comfylaunch/internal/conventions"
	"github.com/slok/comfylaunch/internal/worker"
)

type DiagnoseCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	logFile string
}

// NewDiagnoseCommand returns the diagnose command.
func NewDiagnoseCommand(rootCmd *RootCommand, app *kingpin.Application) *DiagnoseCommand {
	c := &DiagnoseCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("diagnose", "Ask the diagnosis service about the backend output.")
	c.Cmd.Arg("logfile", "Backend output file, defaults to the last recorded backend log.").StringVar(&c.logFile)

	return c
}

func (c DiagnoseCommand) Name() string { return c.Cmd.FullCommand() }

func (c DiagnoseCommand) Run(ctx context.Context) error {
	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}
	if err := svcs.require(capability.Diagnosis); err != nil {
		return err
	}

	path := c.logFile
	if path == "" {
		path = conventions.BackendLogPath(c.rootCmd.DataDir)
	}
	lines, err := readLines(path)
	if err != nil {
		return fmt.Errorf("could not read backend output: %w", err)
	}

	var text string
	_, err = c.rootCmd.runTask(ctx, "diagnose", func(ctx context.Context, e worker.Exec) error {
		var err error
		text, err = svcs.diagnose.Run(ctx, lines)
		if err != nil {
			e.Summary.Fail("diagnose", err)
			return err
		}
		e.Summary.OK("diagnose", fmt.Sprintf("%d lines", len(lines)))
		return nil
	})
	if text != "" {
		fmt.Fprintln(c.rootCmd.Stdout, text)
	}
	if err != nil {
		return fmt.Errorf("diagnosis failed: %w", err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
