package comfylaunch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "comfylaunch"
	}

	// go test changes the CWD to the test package directory, relative paths are ambiguous.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("COMFYLAUNCH_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("comfylaunch binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "COMFYLAUNCH_INTEGRATION"
		envBinary     = "COMFYLAUNCH_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// run executes the binary with an isolated data dir.
func run(t *testing.T, cfg Config, dataDir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	env := []string{"COMFYLAUNCH_DATA_DIR=" + dataDir}
	out, errOut, err := testutils.RunComfylaunchArgs(ctx, env, cfg.Binary, args, true)
	return string(out), string(errOut), err
}

// newInstallDir creates a fake backend checkout that is a git repository with a tag.
func newInstallDir(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('ok')\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "custom_nodes"), 0o755))

	gitCmds := [][]string{
		{"init", "-q"},
		{"-c", "user.email=test@example.com", "-c", "user.name=test", "add", "."},
		{"-c", "user.email=test@example.com", "-c", "user.name=test", "commit", "-q", "-m", "initial"},
		{"tag", "v0.0.1"},
	}
	for _, args := range gitCmds {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	return dir
}
