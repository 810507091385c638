package worker

import "github.com/slok/comfylaunch/internal/model"

// StateChangedMsg asks the UI to recompute its state.
type StateChangedMsg struct{}

// TaskStartedMsg is sent when a task body starts executing.
type TaskStartedMsg struct {
	ID   string
	Name string
}

// TaskFinishedMsg is sent once per consumed task, including dropped ones.
type TaskFinishedMsg struct {
	Record model.TaskRecord
	// Err is the task error, nil on success. Wraps model.ErrCancelled on cancellations.
	Err error
}

// Failed returns true when the task ended with an error that is not a cancellation.
func (m TaskFinishedMsg) Failed() bool { return m.Record.Status == model.TaskStatusFailed }
