//go:build unix

package pip_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/pip"
)

// fakePython writes a shell script that behaves like `python -m pip` for the test.
func fakePython(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRunnerInstallRequirements(t *testing.T) {
	tests := map[string]struct {
		requirements bool
		script       string
		expErr       error
		expMsg       string
	}{
		"A missing requirements file should be not found.": {
			requirements: false,
			script:       "exit 0\n",
			expErr:       model.ErrNotFound,
		},

		"A successful install should not fail.": {
			requirements: true,
			script:       "echo \"$@\" > args.txt\n",
		},

		"A failed install should return the last output line.": {
			requirements: true,
			script:       "echo 'Collecting torch'\necho 'ERROR: No matching distribution found for torch==9.9' >&2\nexit 1\n",
			expMsg:       "ERROR: No matching distribution found for torch==9.9",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir := t.TempDir()
			if test.requirements {
				require.NoError(os.WriteFile(filepath.Join(dir, pip.RequirementsFile), []byte("numpy\n"), 0o644))
			}

			r, err := pip.NewRunner(pip.RunnerConfig{})
			require.NoError(err)

			err = r.InstallRequirements(context.Background(), fakePython(t, test.script), dir)

			switch {
			case test.expErr != nil:
				assert.ErrorIs(err, test.expErr)
			case test.expMsg != "":
				var ierr *pip.InstallError
				require.True(errors.As(err, &ierr))
				assert.Contains(err.Error(), test.expMsg)
			default:
				require.NoError(err)
				args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
				require.NoError(err)
				assert.Equal("-m pip install --disable-pip-version-check -r requirements.txt\n", string(args))
			}
		})
	}
}
