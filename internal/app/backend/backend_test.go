package backend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/app/backend"
	"github.com/slok/comfylaunch/internal/model"
)

type mockSupervisor struct {
	mock.Mock
}

func (m *mockSupervisor) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockSupervisor) Stop(ctx context.Context) error  { return m.Called(ctx).Error(0) }

type staticSettings model.Settings

func (s staticSettings) Get() model.Settings { return model.Settings(s) }

func foundPython(string) (string, error) { return "/usr/bin/python3", nil }

func TestServiceStart(t *testing.T) {
	validInstall := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(validInstall, "main.py"), nil, 0o644))
	emptyInstall := t.TempDir()
	aFile := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(aFile, nil, 0o644))

	tests := map[string]struct {
		settings func(s *model.Settings)
		lookPath func(string) (string, error)
		startErr error
		expStart bool
		expErr   error
	}{
		"valid settings should start the backend": {
			settings: func(s *model.Settings) { s.InstallDir = validInstall },
			lookPath: foundPython,
			expStart: true,
		},
		"supervisor errors should be returned": {
			settings: func(s *model.Settings) { s.InstallDir = validInstall },
			lookPath: foundPython,
			startErr: model.ErrBusy,
			expStart: true,
			expErr:   model.ErrBusy,
		},
		"missing install dir should not start": {
			settings: func(s *model.Settings) {},
			lookPath: foundPython,
			expErr:   model.ErrNotValid,
		},
		"install dir without entry point should not start": {
			settings: func(s *model.Settings) { s.InstallDir = emptyInstall },
			lookPath: foundPython,
			expErr:   model.ErrNotValid,
		},
		"install dir that is a file should not start": {
			settings: func(s *model.Settings) { s.InstallDir = aFile },
			lookPath: foundPython,
			expErr:   model.ErrNotValid,
		},
		"missing python should not start": {
			settings: func(s *model.Settings) { s.InstallDir = validInstall },
			lookPath: func(string) (string, error) { return "", errors.New("executable file not found in $PATH") },
			expErr:   model.ErrNotValid,
		},
		"invalid port should not start": {
			settings: func(s *model.Settings) {
				s.InstallDir = validInstall
				s.Port = 70000
			},
			lookPath: foundPython,
			expErr:   model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			s := model.DefaultSettings()
			test.settings(&s)

			ms := &mockSupervisor{}
			if test.expStart {
				ms.On("Start", mock.Anything).Once().Return(test.startErr)
			}

			svc, err := backend.NewService(backend.ServiceConfig{
				Supervisor: ms,
				Settings:   staticSettings(s),
				LookPath:   test.lookPath,
			})
			require.NoError(err)

			err = svc.Start(context.Background())

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			ms.AssertExpectations(t)
		})
	}
}

func TestServiceValidateReportsEveryProblem(t *testing.T) {
	svc, err := backend.NewService(backend.ServiceConfig{
		Supervisor: &mockSupervisor{},
		Settings:   staticSettings(model.DefaultSettings()),
		LookPath:   func(string) (string, error) { return "", errors.New("not found") },
	})
	require.NoError(t, err)

	s := model.DefaultSettings()
	s.Port = 0
	err = svc.Validate(s)

	assert.ErrorIs(t, err, model.ErrNotValid)
	assert.Contains(t, err.Error(), "port 0 out of range")
	assert.Contains(t, err.Error(), "install dir is not configured")
	assert.Contains(t, err.Error(), `python executable "python" not found`)
}
