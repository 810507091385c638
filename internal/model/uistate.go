package model

// UIMode is the single high level state the launcher is in. Exactly one holds at a time.
type UIMode string

const (
	UIModeIdle               UIMode = "idle"
	UIModeTaskRunning        UIMode = "task-running"
	UIModeProcessRunning     UIMode = "process-running"
	UIModeExternallyDetected UIMode = "externally-detected"
)

// UISnapshot is the derived state the UI controls are reconciled from.
// It is never stored, it is computed fresh on every reconciliation.
type UISnapshot struct {
	TaskRunning        bool
	ProcessRunning     bool
	ExternallyDetected bool
	// Transitioning is true while the process is starting or stopping.
	Transitioning bool
	// ModalOpen is orthogonal to the rest.
	ModalOpen bool
}
