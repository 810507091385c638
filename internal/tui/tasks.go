package tui

import (
	"context"

	"github.com/slok/comfylaunch/internal/worker"
)

// Task bodies run on the worker goroutine, they only talk to the model through the
// dispatcher.

func refreshTask(v Versions, d worker.Dispatcher) worker.Func {
	return func(ctx context.Context, e worker.Exec) error {
		vs, err := v.Refresh(ctx, e.Stop, e.Summary)
		if err != nil {
			return err
		}
		d.Send(versionsLoadedMsg{versions: vs})
		return nil
	}
}

func activateTask(v Versions, d worker.Dispatcher, ref string) worker.Func {
	return func(ctx context.Context, e worker.Exec) error {
		if err := v.Activate(ctx, e.Stop, e.Summary, ref); err != nil {
			return err
		}
		d.Send(versionActivatedMsg{ref: ref})
		return nil
	}
}

func updateNodesTask(n Nodes) worker.Func {
	return func(ctx context.Context, e worker.Exec) error {
		return n.UpdateAll(ctx, e.Stop, e.Summary)
	}
}

func diagnoseTask(dg Diagnoser, d worker.Dispatcher, lines []string) worker.Func {
	return func(ctx context.Context, e worker.Exec) error {
		text, err := dg.Run(ctx, lines)
		d.Send(diagnosisMsg{text: text, err: err})
		return err
	}
}
