package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/slok/comfylaunch/internal/capability"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/uistate"
)

const versionsWidth = 28

type controlView struct {
	id         uistate.ControlID
	key        string
	label      string
	capability string
}

var controlBar = []controlView{
	{id: uistate.ControlStart, key: "s", label: "start"},
	{id: uistate.ControlStop, key: "x", label: "stop"},
	{id: uistate.ControlRefreshVersions, key: "r", label: "refresh", capability: capability.Versions},
	{id: uistate.ControlActivateVersion, key: "a", label: "activate", capability: capability.Versions},
	{id: uistate.ControlUpdateAllNodes, key: "u", label: "update nodes", capability: capability.Nodes},
	{id: uistate.ControlDiagnose, key: "d", label: "diagnose", capability: capability.Diagnosis},
	{id: uistate.ControlCancelTask, key: "c", label: "cancel"},
	{id: uistate.ControlOpenBrowser, key: "o", label: "open"},
}

func (m *Model) View() string {
	if m.modal != nil && m.width > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.modalView())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.panel.Copy().Width(versionsWidth).Height(m.logs.Height).Render(m.versionsView()),
		m.styles.panel.Render(m.logs.View()),
	)

	sections := []string{m.headerView(), m.controlsView(), body, m.styles.status.Render(m.status)}
	if m.modal != nil {
		sections = append(sections, m.modalView())
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) headerView() string {
	parts := []string{m.styles.title.Render("comfylaunch"), m.styles.statusMode.Render(string(m.mode))}
	if m.mode == model.UIModeTaskRunning {
		label := m.currentTask
		if label == "" {
			label = m.state.ProcessPhase().String()
		}
		parts = append(parts, m.spinner.View()+" "+label)
	}
	if m.url != "" {
		parts = append(parts, m.styles.status.Render(m.url))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (m *Model) controlsView() string {
	var parts []string
	for _, c := range controlBar {
		if c.capability != "" && !m.caps.Has(c.capability) {
			continue
		}
		text := fmt.Sprintf("[%s] %s", c.key, c.label)
		if m.controls.Enabled(c.id) {
			parts = append(parts, m.styles.control.Render(text))
		} else {
			parts = append(parts, m.styles.controlOff.Render(text))
		}
	}
	parts = append(parts, m.styles.control.Render("[q] quit"))
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) versionsView() string {
	if !m.caps.Has(capability.Versions) {
		return m.styles.panelTitle.Render("Versions") + "\n" + m.styles.listItem.Render("unavailable")
	}

	var b strings.Builder
	b.WriteString(m.styles.panelTitle.Render("Versions"))
	b.WriteString("\n")
	if len(m.versions) == 0 {
		b.WriteString(m.styles.listItem.Render("press r to load"))
		return b.String()
	}

	// Keep the cursor visible.
	h := m.logs.Height - 1
	if h < 1 {
		h = 1
	}
	start := 0
	if m.cursor >= h {
		start = m.cursor - h + 1
	}
	end := min(start+h, len(m.versions))
	for i := start; i < end; i++ {
		v := m.versions[i]
		label := v.Ref
		if v.Current {
			label += " *"
		}
		switch {
		case i == m.cursor:
			b.WriteString(m.styles.listSel.Render(label))
		case v.Current:
			b.WriteString(m.styles.current.Render(label))
		default:
			b.WriteString(m.styles.listItem.Render(label))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m *Model) renderLines() string {
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if l.Level == model.LineLevelError {
			b.WriteString(m.styles.logError.Render(l.Text))
			continue
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

func (m *Model) modalView() string {
	hint := "y confirm · n cancel"
	if m.modal.onConfirm == nil {
		hint = "enter close"
	}
	if m.controls.Enabled(uistate.ControlCancelTask) {
		hint += " · c cancel task"
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.panelTitle.Render(m.modal.title),
		"",
		m.modal.text,
		"",
		m.styles.modalHint.Render(hint),
	)
	return m.styles.modal.Render(content)
}
