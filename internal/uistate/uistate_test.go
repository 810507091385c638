package uistate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/uistate"
)

func enabled(c uistate.Controls) []uistate.ControlID {
	var ids []uistate.ControlID
	for _, id := range uistate.AllControls() {
		if c.Enabled(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestReconcile(t *testing.T) {
	tests := map[string]struct {
		snapshot   model.UISnapshot
		expMode    model.UIMode
		expEnabled []uistate.ControlID
	}{
		"Idle should enable everything except stop, cancel and open browser.": {
			snapshot: model.UISnapshot{},
			expMode:  model.UIModeIdle,
			expEnabled: []uistate.ControlID{
				uistate.ControlStart,
				uistate.ControlRefreshVersions,
				uistate.ControlActivateVersion,
				uistate.ControlUpdateAllNodes,
				uistate.ControlDiagnose,
			},
		},

		"A running task should only allow cancelling it.": {
			snapshot:   model.UISnapshot{TaskRunning: true},
			expMode:    model.UIModeTaskRunning,
			expEnabled: []uistate.ControlID{uistate.ControlCancelTask},
		},

		"A running task should win over a running process.": {
			snapshot:   model.UISnapshot{TaskRunning: true, ProcessRunning: true},
			expMode:    model.UIModeTaskRunning,
			expEnabled: []uistate.ControlID{uistate.ControlCancelTask},
		},

		"A transitioning process should disable everything, there is no task to cancel.": {
			snapshot:   model.UISnapshot{ProcessRunning: true, Transitioning: true},
			expMode:    model.UIModeTaskRunning,
			expEnabled: nil,
		},

		"An externally detected backend should not be stoppable.": {
			snapshot: model.UISnapshot{ExternallyDetected: true},
			expMode:  model.UIModeExternallyDetected,
			expEnabled: []uistate.ControlID{
				uistate.ControlRefreshVersions,
				uistate.ControlDiagnose,
				uistate.ControlOpenBrowser,
			},
		},

		"Externally detected should win over process running.": {
			snapshot: model.UISnapshot{ExternallyDetected: true, ProcessRunning: true},
			expMode:  model.UIModeExternallyDetected,
			expEnabled: []uistate.ControlID{
				uistate.ControlRefreshVersions,
				uistate.ControlDiagnose,
				uistate.ControlOpenBrowser,
			},
		},

		"A running process should be stoppable and keep version and node changes disabled.": {
			snapshot: model.UISnapshot{ProcessRunning: true},
			expMode:  model.UIModeProcessRunning,
			expEnabled: []uistate.ControlID{
				uistate.ControlStop,
				uistate.ControlRefreshVersions,
				uistate.ControlDiagnose,
				uistate.ControlOpenBrowser,
			},
		},

		"An open dialog while idle should disable everything.": {
			snapshot:   model.UISnapshot{ModalOpen: true},
			expMode:    model.UIModeIdle,
			expEnabled: nil,
		},

		"An open dialog while a task runs should still allow cancelling it.": {
			snapshot:   model.UISnapshot{ModalOpen: true, TaskRunning: true, ProcessRunning: true},
			expMode:    model.UIModeTaskRunning,
			expEnabled: []uistate.ControlID{uistate.ControlCancelTask},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(test.expMode, uistate.Mode(test.snapshot))
			assert.Equal(test.expEnabled, enabled(uistate.Reconcile(test.snapshot)))
		})
	}
}

func TestReconcileAllSnapshots(t *testing.T) {
	assert := assert.New(t)

	for i := 0; i < 32; i++ {
		s := model.UISnapshot{
			TaskRunning:        i&1 != 0,
			ProcessRunning:     i&2 != 0,
			ExternallyDetected: i&4 != 0,
			Transitioning:      i&8 != 0,
			ModalOpen:          i&16 != 0,
		}

		c := uistate.Reconcile(s)

		// Every control is always present and the result is stable across calls.
		assert.Len(c, len(uistate.AllControls()))
		assert.Equal(c, uistate.Reconcile(s))

		// Start is only possible from idle without a dialog.
		assert.Equal(uistate.Mode(s) == model.UIModeIdle && !s.ModalOpen, c.Enabled(uistate.ControlStart), "%+v", s)

		// Cancel only makes sense with a running task.
		if c.Enabled(uistate.ControlCancelTask) {
			assert.True(s.TaskRunning, "%+v", s)
		}

		if s.ModalOpen {
			for _, id := range uistate.AllControls() {
				if id != uistate.ControlCancelTask {
					assert.False(c.Enabled(id), "%s %+v", id, s)
				}
			}
		}
	}
}
