package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	start    key.Binding
	stop     key.Binding
	refresh  key.Binding
	activate key.Binding
	update   key.Binding
	diagnose key.Binding
	cancel   key.Binding
	open     key.Binding
	quit     key.Binding
	up       key.Binding
	down     key.Binding
	confirm  key.Binding
	dismiss  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh versions"),
		),
		activate: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "activate version"),
		),
		update: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "update nodes"),
		),
		diagnose: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "diagnose"),
		),
		cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel task"),
		),
		open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open browser"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous version"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next version"),
		),
		confirm: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "confirm"),
		),
		dismiss: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "dismiss"),
		),
	}
}
