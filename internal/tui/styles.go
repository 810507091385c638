package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title, status, statusMode  lipgloss.Style
	control, controlOff        lipgloss.Style
	panel, panelTitle          lipgloss.Style
	listItem, listSel, current lipgloss.Style
	logError                   lipgloss.Style
	modal, modalHint           lipgloss.Style
}

func newStyles() styles {
	base := lipgloss.NewStyle()

	return styles{
		title:      base.Copy().Bold(true).Padding(0, 1),
		status:     base.Padding(0, 1),
		statusMode: base.Copy().Bold(true).Padding(0, 1).Reverse(true),
		control:    base.Padding(0, 1),
		controlOff: base.Copy().Padding(0, 1).Faint(true).Strikethrough(true),
		panel:      base.Border(lipgloss.NormalBorder()),
		panelTitle: base.Copy().Bold(true).Padding(0, 1),
		listItem:   base.Padding(0, 1),
		listSel:    base.Copy().Padding(0, 1).Bold(true).Reverse(true),
		current:    base.Copy().Padding(0, 1).Underline(true),
		logError:   base.Copy().Foreground(lipgloss.Color("9")),
		modal:      base.Border(lipgloss.RoundedBorder()).Padding(1, 2),
		modalHint:  base.Copy().Faint(true),
	}
}
