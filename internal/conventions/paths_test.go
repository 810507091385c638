package conventions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/comfylaunch/internal/conventions"
)

func TestPaths(t *testing.T) {
	const dataDir = "/home/user/.comfylaunch"

	assert.Equal(t, "/home/user/.comfylaunch/settings.json", conventions.SettingsPath(dataDir))
	assert.Equal(t, "/home/user/.comfylaunch/history.db", conventions.HistoryDBPath(dataDir))
	assert.Equal(t, "/home/user/.comfylaunch/readiness.yaml", conventions.ReadinessPath(dataDir))
	assert.Equal(t, "/home/user/.comfylaunch/logs/backend.log", conventions.BackendLogPath(dataDir))
	assert.Equal(t, "/home/user/.comfylaunch/logs/launcher.log", conventions.LauncherLogPath(dataDir))
}
