// Package pipmock has testify mocks for the pip interfaces.
package pipmock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockInstaller is a mock of pip.Installer.
type MockInstaller struct {
	mock.Mock
}

func (m *MockInstaller) InstallRequirements(ctx context.Context, python, dir string) error {
	args := m.Called(ctx, python, dir)
	return args.Error(0)
}
