package storage

import (
	"context"

	"github.com/slok/comfylaunch/internal/model"
)

// TaskHistoryRepository is the interface for the persistence of executed tasks.
type TaskHistoryRepository interface {
	// RecordTask stores the outcome of a task consumed by the worker.
	RecordTask(ctx context.Context, r model.TaskRecord) error
	// ListTasks returns the latest recorded tasks, newest first. limit <= 0 means no limit.
	ListTasks(ctx context.Context, limit int) ([]model.TaskRecord, error)
	// GetTask returns a single task record.
	GetTask(ctx context.Context, id string) (*model.TaskRecord, error)
}
