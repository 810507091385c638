package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default comfylaunch data directory name (relative to home).
	DefaultDataDir = ".comfylaunch"

	// SettingsFile is the persisted settings filename.
	SettingsFile = "settings.json"
	// HistoryDBFile is the task history database filename.
	HistoryDBFile = "history.db"
	// ReadinessFile is the optional readiness markers override filename.
	ReadinessFile = "readiness.yaml"
	// LogsDir is the subdirectory where backend output is captured.
	LogsDir = "logs"
	// BackendLogFile is the filename of the captured backend output.
	BackendLogFile = "backend.log"
	// LauncherLogFile is where the launcher logs while the terminal UI owns the screen.
	LauncherLogFile = "launcher.log"
)

// SettingsPath returns the settings file path.
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, SettingsFile)
}

// HistoryDBPath returns the task history database path.
func HistoryDBPath(dataDir string) string {
	return filepath.Join(dataDir, HistoryDBFile)
}

// ReadinessPath returns the readiness markers override path.
func ReadinessPath(dataDir string) string {
	return filepath.Join(dataDir, ReadinessFile)
}

// BackendLogPath returns the path of the captured backend output.
func BackendLogPath(dataDir string) string {
	return filepath.Join(dataDir, LogsDir, BackendLogFile)
}

// LauncherLogPath returns the launcher log path.
func LauncherLogPath(dataDir string) string {
	return filepath.Join(dataDir, LogsDir, LauncherLogFile)
}
