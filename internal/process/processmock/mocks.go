// Package processmock has testify mocks for the process interfaces.
package processmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/comfylaunch/internal/process"
)

// MockProber is a mock of process.Prober.
type MockProber struct {
	mock.Mock
}

func (m *MockProber) Probe(ctx context.Context, port int) bool {
	args := m.Called(ctx, port)
	return args.Bool(0)
}

// MockSpawner is a mock of process.Spawner.
type MockSpawner struct {
	mock.Mock
}

func (m *MockSpawner) Spawn(ctx context.Context, cmd process.Command) (process.Process, error) {
	args := m.Called(ctx, cmd)
	var r0 process.Process
	if v := args.Get(0); v != nil {
		r0 = v.(process.Process)
	}
	return r0, args.Error(1)
}
