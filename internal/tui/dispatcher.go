package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Dispatcher forwards worker and supervisor events to the running program. Events sent
// before a program is attached are dropped, the model reconciles on start.
type Dispatcher struct {
	program atomic.Pointer[tea.Program]
}

// NewDispatcher returns a detached dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Attach sets the program that receives the events.
func (d *Dispatcher) Attach(p *tea.Program) {
	d.program.Store(p)
}

// Send delivers msg to the attached program. It blocks until the program event loop
// accepts it or the program has finished.
func (d *Dispatcher) Send(msg any) {
	if p := d.program.Load(); p != nil {
		p.Send(msg)
	}
}
