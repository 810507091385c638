package commands

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/comfylaunch/internal/app/doctor"
	"github.com/slok/comfylaunch/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("doctor", "Run preflight checks for the backend installation.")
	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	out := c.rootCmd.Stdout

	svcs, err := c.rootCmd.newServices(ctx)
	if err != nil {
		return err
	}

	svc, err := doctor.NewService(doctor.ServiceConfig{
		Settings: svcs.settings,
		Git:      svcs.git,
		Prober:   svcs.prober,
		LookPath: exec.LookPath,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create doctor service: %w", err)
	}

	results := svc.Run(ctx)

	fmt.Fprintln(out, "Checking launcher setup...")
	for _, r := range results {
		fmt.Fprintf(out, "  %s %-16s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	_, warnings, errs := model.CountByStatus(results)
	fmt.Fprintln(out)
	if errs == 0 && warnings == 0 {
		fmt.Fprintln(out, "All checks passed!")
		return nil
	}

	var summary []string
	if errs > 0 {
		summary = append(summary, fmt.Sprintf("%d error(s)", errs))
	}
	if warnings > 0 {
		summary = append(summary, fmt.Sprintf("%d warning(s)", warnings))
	}
	fmt.Fprintln(out, strings.Join(summary, ", "))

	if errs > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", errs)
	}
	return nil
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}
