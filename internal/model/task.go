package model

import (
	"time"
)

// TaskStatus represents the final state of an executed task.
type TaskStatus string

const (
	TaskStatusDone      TaskStatus = "done"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
	// TaskStatusDropped is a task that was cancelled while still queued, it never ran.
	TaskStatusDropped TaskStatus = "dropped"
)

// Cancelled returns true for both cancellation flavours.
func (s TaskStatus) Cancelled() bool {
	return s == TaskStatusCancelled || s == TaskStatusDropped
}

// TaskRecord is the history entry of a task consumed by the worker.
type TaskRecord struct {
	ID         string
	Name       string
	Status     TaskStatus
	Error      string
	Summary    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the task took.
func (t TaskRecord) Duration() time.Duration {
	if t.FinishedAt.Before(t.StartedAt) {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}
