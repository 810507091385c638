package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/storage"
	"github.com/slok/comfylaunch/internal/storage/memory"
)

var _ storage.TaskHistoryRepository = &memory.Repository{}

func TestRepository(t *testing.T) {
	t0 := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  error
	}{
		"Recording and listing tasks should return newest first.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.RecordTask(ctx, model.TaskRecord{ID: "01A", Name: "a", StartedAt: t0}))
				require.NoError(t, repo.RecordTask(ctx, model.TaskRecord{ID: "01B", Name: "b", StartedAt: t0.Add(time.Second)}))

				got, err := repo.ListTasks(ctx, 0)
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, "01B", got[0].ID)
				assert.Equal(t, "01A", got[1].ID)

				got, err = repo.ListTasks(ctx, 1)
				require.NoError(t, err)
				assert.Len(t, got, 1)
				return nil
			},
		},

		"Recording a task twice should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.RecordTask(ctx, model.TaskRecord{ID: "01A"}))
				return repo.RecordTask(ctx, model.TaskRecord{ID: "01A"})
			},
			expErr: model.ErrAlreadyExists,
		},

		"Recording a task without ID should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.RecordTask(ctx, model.TaskRecord{Name: "a"})
			},
			expErr: model.ErrNotValid,
		},

		"Getting a missing task should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetTask(ctx, "01A")
				return err
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
