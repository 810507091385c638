// Package storagemock has testify mocks for the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/comfylaunch/internal/model"
)

// MockTaskHistoryRepository is a mock of storage.TaskHistoryRepository.
type MockTaskHistoryRepository struct {
	mock.Mock
}

func (m *MockTaskHistoryRepository) RecordTask(ctx context.Context, r model.TaskRecord) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockTaskHistoryRepository) ListTasks(ctx context.Context, limit int) ([]model.TaskRecord, error) {
	args := m.Called(ctx, limit)
	var r0 []model.TaskRecord
	if v := args.Get(0); v != nil {
		r0 = v.([]model.TaskRecord)
	}
	return r0, args.Error(1)
}

func (m *MockTaskHistoryRepository) GetTask(ctx context.Context, id string) (*model.TaskRecord, error) {
	args := m.Called(ctx, id)
	var r0 *model.TaskRecord
	if v := args.Get(0); v != nil {
		r0 = v.(*model.TaskRecord)
	}
	return r0, args.Error(1)
}
