// Package vcsmock has testify mocks for the vcs interfaces.
package vcsmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/comfylaunch/internal/model"
)

// MockGit is a mock of vcs.Git.
type MockGit struct {
	mock.Mock
}

func (m *MockGit) Status(ctx context.Context, dir string) (string, error) {
	args := m.Called(ctx, dir)
	return args.String(0), args.Error(1)
}

func (m *MockGit) Fetch(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

func (m *MockGit) Checkout(ctx context.Context, dir, ref string) error {
	args := m.Called(ctx, dir, ref)
	return args.Error(0)
}

func (m *MockGit) RemoteGetURL(ctx context.Context, dir, remote string) (string, error) {
	args := m.Called(ctx, dir, remote)
	return args.String(0), args.Error(1)
}

func (m *MockGit) RemoteSetURL(ctx context.Context, dir, remote, url string) error {
	args := m.Called(ctx, dir, remote, url)
	return args.Error(0)
}

func (m *MockGit) SubmoduleUpdate(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

func (m *MockGit) Describe(ctx context.Context, dir string) (string, error) {
	args := m.Called(ctx, dir)
	return args.String(0), args.Error(1)
}

func (m *MockGit) RevParse(ctx context.Context, dir, ref string) (string, error) {
	args := m.Called(ctx, dir, ref)
	return args.String(0), args.Error(1)
}

func (m *MockGit) UpstreamBranch(ctx context.Context, dir string) (string, error) {
	args := m.Called(ctx, dir)
	return args.String(0), args.Error(1)
}

func (m *MockGit) Clone(ctx context.Context, url, dest string) error {
	args := m.Called(ctx, url, dest)
	return args.Error(0)
}

func (m *MockGit) Pull(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}

func (m *MockGit) Versions(ctx context.Context, dir string, commits int) ([]model.Version, error) {
	args := m.Called(ctx, dir, commits)
	var r0 []model.Version
	if v := args.Get(0); v != nil {
		r0 = v.([]model.Version)
	}
	return r0, args.Error(1)
}
