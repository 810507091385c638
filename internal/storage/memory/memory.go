package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskHistoryRepository.
type Repository struct {
	tasks  map[string]model.TaskRecord
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[string]model.TaskRecord),
		logger: cfg.Logger,
	}, nil
}

// RecordTask stores a task outcome.
func (r *Repository) RecordTask(ctx context.Context, t model.TaskRecord) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
	}
	r.tasks[t.ID] = t

	r.logger.Debugf("Recorded task %s (%s): %s", t.ID, t.Name, t.Status)
	return nil
}

// ListTasks returns the latest tasks, newest first.
func (r *Repository) ListTasks(ctx context.Context, limit int) ([]model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.TaskRecord, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StartedAt.Equal(tasks[j].StartedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].StartedAt.After(tasks[j].StartedAt)
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	return tasks, nil
}

// GetTask returns a single task record.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	return &t, nil
}
