// Package state holds the launcher state shared between the UI, the task worker and the
// process supervisor.
//
// Each flag has a single writer: the worker owns the task running flag, the supervisor owns
// the process phase and the UI owns the modal flag. Everybody else only reads. The stop
// signal is the only flag with several writers (UI cancel, supervisor stop, worker cleanup).
package state

import (
	"fmt"
	"sync/atomic"

	"github.com/slok/comfylaunch/internal/model"
)

// StopSignal is the cooperative stop signal. Long running loops poll it at their
// checkpoints, setting it never preempts anything.
type StopSignal struct {
	set atomic.Bool
}

// Set asks the in-flight work to stop soon.
func (s *StopSignal) Set() { s.set.Store(true) }

// Clear resets the signal.
func (s *StopSignal) Clear() { s.set.Store(false) }

// IsSet returns true when a stop has been requested. A nil signal is never set, so code
// running outside the worker can pass nil.
func (s *StopSignal) IsSet() bool { return s != nil && s.set.Load() }

// Checkpoint returns model.ErrCancelled when a stop has been requested.
func (s *StopSignal) Checkpoint() error {
	if s.IsSet() {
		return fmt.Errorf("stop requested: %w", model.ErrCancelled)
	}
	return nil
}

// State is the launcher shared state.
type State struct {
	taskRunning atomic.Bool
	modalOpen   atomic.Bool
	phase       atomic.Int32
	stop        StopSignal
}

// New returns a new idle state.
func New() *State {
	return &State{}
}

// Stop returns the single stop signal of the state.
func (s *State) Stop() *StopSignal { return &s.stop }

// SetTaskRunning is only called by the task worker.
func (s *State) SetTaskRunning(running bool) { s.taskRunning.Store(running) }

// TaskRunning returns true while the worker is executing a task.
func (s *State) TaskRunning() bool { return s.taskRunning.Load() }

// SetModalOpen is only called by the UI.
func (s *State) SetModalOpen(open bool) { s.modalOpen.Store(open) }

// ModalOpen returns true while a modal dialog is shown.
func (s *State) ModalOpen() bool { return s.modalOpen.Load() }

// SetProcessPhase is only called by the process supervisor.
func (s *State) SetProcessPhase(p model.ProcessPhase) { s.phase.Store(int32(p)) }

// ProcessPhase returns the managed process phase.
func (s *State) ProcessPhase() model.ProcessPhase { return model.ProcessPhase(s.phase.Load()) }

// Snapshot derives the UI snapshot from the current flags.
func (s *State) Snapshot() model.UISnapshot {
	phase := s.ProcessPhase()
	return model.UISnapshot{
		TaskRunning:        s.TaskRunning(),
		ProcessRunning:     phase.Owned(),
		ExternallyDetected: phase == model.ProcessPhaseExternallyDetected,
		Transitioning:      phase == model.ProcessPhaseStarting || phase == model.ProcessPhaseStopping,
		ModalOpen:          s.ModalOpen(),
	}
}
