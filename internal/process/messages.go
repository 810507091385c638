package process

import "github.com/slok/comfylaunch/internal/model"

// StateChangedMsg is sent on every process phase transition.
type StateChangedMsg struct {
	Phase model.ProcessPhase
}

// ReadyMsg is sent once per session when the backend is ready to accept connections.
type ReadyMsg struct {
	URL string
	// External is true when the backend was already running and not spawned by us.
	External bool
	// Marker is the readiness marker that matched, empty for external backends.
	Marker string
}

// CrashedMsg is sent when an owned backend exited outside of an explicit stop.
type CrashedMsg struct {
	ExitCode int
	Output   []string
}

// LineMsg wraps a routed output line.
type LineMsg struct {
	Line model.Line
}
