// Package uistate derives which launcher controls are usable from the shared state.
//
// Reconcile is a pure function of the snapshot, it keeps no state, so it is safe to call
// after every event and never drifts.
package uistate

import "github.com/slok/comfylaunch/internal/model"

// ControlID identifies an interactive control.
type ControlID string

const (
	ControlStart           ControlID = "start"
	ControlStop            ControlID = "stop"
	ControlRefreshVersions ControlID = "refresh-versions"
	ControlActivateVersion ControlID = "activate-version"
	ControlUpdateAllNodes  ControlID = "update-all-nodes"
	ControlDiagnose        ControlID = "diagnose"
	ControlCancelTask      ControlID = "cancel-task"
	ControlOpenBrowser     ControlID = "open-browser"
)

// AllControls returns every control in display order.
func AllControls() []ControlID {
	return []ControlID{
		ControlStart,
		ControlStop,
		ControlRefreshVersions,
		ControlActivateVersion,
		ControlUpdateAllNodes,
		ControlDiagnose,
		ControlCancelTask,
		ControlOpenBrowser,
	}
}

// Controls has the enabled state of every control.
type Controls map[ControlID]bool

// Enabled returns true if the control is enabled.
func (c Controls) Enabled(id ControlID) bool { return c[id] }

// Mode returns the single high level mode of the snapshot. A transitioning process is
// reported as busy like a running task.
func Mode(s model.UISnapshot) model.UIMode {
	switch {
	case s.TaskRunning || s.Transitioning:
		return model.UIModeTaskRunning
	case s.ExternallyDetected:
		return model.UIModeExternallyDetected
	case s.ProcessRunning:
		return model.UIModeProcessRunning
	default:
		return model.UIModeIdle
	}
}

// Reconcile returns the enabled state of every control for the snapshot.
func Reconcile(s model.UISnapshot) Controls {
	c := make(Controls, len(AllControls()))
	for _, id := range AllControls() {
		c[id] = false
	}

	switch Mode(s) {
	case model.UIModeTaskRunning:
		c[ControlCancelTask] = s.TaskRunning

	case model.UIModeExternallyDetected:
		// Not ours: it can't be stopped and its files must not change under it.
		c[ControlRefreshVersions] = true
		c[ControlDiagnose] = true
		c[ControlOpenBrowser] = true

	case model.UIModeProcessRunning:
		c[ControlStop] = true
		c[ControlRefreshVersions] = true
		c[ControlDiagnose] = true
		c[ControlOpenBrowser] = true

	case model.UIModeIdle:
		for _, id := range AllControls() {
			c[id] = true
		}
		c[ControlStop] = false
		c[ControlCancelTask] = false
		c[ControlOpenBrowser] = false
	}

	// An open dialog gates everything except cancelling the running task.
	if s.ModalOpen {
		for id := range c {
			if id != ControlCancelTask {
				c[id] = false
			}
		}
	}

	return c
}
