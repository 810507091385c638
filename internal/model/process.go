package model

// ProcessPhase is the lifecycle phase of the managed backend process.
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//	Stopped -> ExternallyDetected -> Stopped
type ProcessPhase int32

const (
	ProcessPhaseStopped ProcessPhase = iota
	ProcessPhaseStarting
	ProcessPhaseRunning
	ProcessPhaseStopping
	ProcessPhaseExternallyDetected
)

func (p ProcessPhase) String() string {
	switch p {
	case ProcessPhaseStopped:
		return "stopped"
	case ProcessPhaseStarting:
		return "starting"
	case ProcessPhaseRunning:
		return "running"
	case ProcessPhaseStopping:
		return "stopping"
	case ProcessPhaseExternallyDetected:
		return "externally-detected"
	}
	return "unknown"
}

// Owned returns true when the phase implies a process handle owned by the launcher.
func (p ProcessPhase) Owned() bool {
	return p == ProcessPhaseStarting || p == ProcessPhaseRunning || p == ProcessPhaseStopping
}

// Stream identifies the output stream a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// LineLevel is the severity a routed line is shown with.
type LineLevel string

const (
	LineLevelInfo  LineLevel = "info"
	LineLevelError LineLevel = "error"
)

// Line is a single line of managed process output.
type Line struct {
	Stream Stream
	Level  LineLevel
	Text   string
}
