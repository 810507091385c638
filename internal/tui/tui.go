// Package tui is the interactive terminal UI of the launcher.
//
// The model never mutates the shared state except the modal flag, every control is
// derived from uistate.Reconcile after each message.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/slok/comfylaunch/internal/capability"
	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/uistate"
	"github.com/slok/comfylaunch/internal/worker"
)

// Backend starts and stops the managed backend.
type Backend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Output is the routed backend output.
type Output interface {
	Lines() <-chan model.Line
	MarkBrowserOpened() bool
}

// Queue is the serial task queue.
type Queue interface {
	Enqueue(t worker.Task) (string, error)
	Cancel() bool
}

// SettingsProvider returns the current launcher settings.
type SettingsProvider interface {
	Get() model.Settings
}

// Versions is the handle of the versions capability.
type Versions interface {
	Refresh(ctx context.Context, stop *state.StopSignal, sum *model.Summary) ([]model.Version, error)
	Activate(ctx context.Context, stop *state.StopSignal, sum *model.Summary, ref string) error
}

// Nodes is the handle of the nodes capability.
type Nodes interface {
	UpdateAll(ctx context.Context, stop *state.StopSignal, sum *model.Summary) error
}

// Diagnoser is the handle of the diagnosis capability.
type Diagnoser interface {
	Run(ctx context.Context, lines []string) (string, error)
}

// Config is the terminal UI configuration.
type Config struct {
	State        *state.State
	Backend      Backend
	Output       Output
	Queue        Queue
	Settings     SettingsProvider
	Capabilities *capability.Registry
	// Dispatcher is used by the task bodies to report results to the UI.
	Dispatcher worker.Dispatcher
	// OpenURL opens the backend UI in a browser.
	OpenURL func(url string) error
	// LogSink receives a copy of every backend output line.
	LogSink     io.Writer
	MaxLogLines int
	Logger      log.Logger
}

func (c *Config) defaults() error {
	if c.State == nil {
		return fmt.Errorf("state is required")
	}
	if c.Backend == nil {
		return fmt.Errorf("backend is required")
	}
	if c.Output == nil {
		return fmt.Errorf("output is required")
	}
	if c.Queue == nil {
		return fmt.Errorf("queue is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings are required")
	}
	if c.Capabilities == nil {
		c.Capabilities = capability.NewRegistry()
	}
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if c.OpenURL == nil {
		c.OpenURL = OpenURL
	}
	if c.LogSink == nil {
		c.LogSink = io.Discard
	}
	if c.MaxLogLines <= 0 {
		c.MaxLogLines = 5000
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tui.Model"})
	return nil
}

type modal struct {
	title     string
	text      string
	onConfirm func() tea.Cmd
}

// Model is the bubbletea model of the launcher.
type Model struct {
	state      *state.State
	backend    Backend
	output     Output
	queue      Queue
	settings   SettingsProvider
	caps       *capability.Registry
	dispatcher worker.Dispatcher
	openURL    func(string) error
	logSink    io.Writer
	maxLines   int
	logger     log.Logger

	keys    keyMap
	styles  styles
	spinner spinner.Model
	logs    viewport.Model

	controls    uistate.Controls
	mode        model.UIMode
	lines       []model.Line
	versions    []model.Version
	cursor      int
	url         string
	status      string
	currentTask string
	backendBusy bool
	modal       *modal
	width       int
	height      int
}

// New returns the terminal UI model.
func New(cfg Config) (*Model, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Model{
		state:      cfg.State,
		backend:    cfg.Backend,
		output:     cfg.Output,
		queue:      cfg.Queue,
		settings:   cfg.Settings,
		caps:       cfg.Capabilities,
		dispatcher: cfg.Dispatcher,
		openURL:    cfg.OpenURL,
		logSink:    cfg.LogSink,
		maxLines:   cfg.MaxLogLines,
		logger:     cfg.Logger,
		keys:       newKeyMap(),
		styles:     newStyles(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		logs:       viewport.New(80, 20),
		status:     "Ready",
	}
	m.reconcile()

	return m, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForLine(m.output.Lines()))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.reconcile()
	return m, cmd
}

// Controls returns the currently reconciled controls.
func (m *Model) Controls() uistate.Controls { return m.controls }

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return cmd

	case lineMsg:
		m.appendLine(msg.line)
		return waitForLine(m.output.Lines())

	case process.StateChangedMsg:
		m.status = fmt.Sprintf("Backend %s", msg.Phase)
		if msg.Phase == model.ProcessPhaseStopped {
			m.url = ""
		}
	case process.ReadyMsg:
		m.url = msg.URL
		if msg.External {
			m.status = fmt.Sprintf("Backend already running at %s", msg.URL)
		} else {
			m.status = fmt.Sprintf("Backend ready at %s", msg.URL)
		}
		if m.settings.Get().AutoOpenBrowser && m.output.MarkBrowserOpened() {
			return m.openBrowser(msg.URL)
		}
	case process.CrashedMsg:
		m.url = ""
		text := fmt.Sprintf("The backend exited unexpectedly with code %d.", msg.ExitCode)
		if n := len(msg.Output); n > 0 {
			text += "\n\n" + msg.Output[n-1]
		}
		m.showMessage("Backend crashed", text)
	case backendResultMsg:
		m.backendBusy = false
		if msg.err != nil {
			m.showMessage(fmt.Sprintf("Could not %s the backend", msg.op), msg.err.Error())
		}

	case worker.StateChangedMsg:
	case worker.TaskStartedMsg:
		m.currentTask = msg.Name
		m.status = fmt.Sprintf("Running %s", msg.Name)
	case worker.TaskFinishedMsg:
		m.currentTask = ""
		m.status = taskStatus(msg)
		for _, l := range strings.Split(msg.Record.Summary, "\n") {
			if l != "" {
				m.appendLine(model.Line{Stream: model.StreamStdout, Level: model.LineLevelInfo, Text: "[" + msg.Record.Name + "] " + l})
			}
		}
		// Diagnosis results come with their own dialog.
		if msg.Failed() && msg.Record.Name != "diagnose" {
			m.showMessage(msg.Record.Name+" failed", msg.Record.Error)
		}
	case versionsLoadedMsg:
		m.setVersions(msg.versions)
	case versionActivatedMsg:
		for i := range m.versions {
			m.versions[i].Current = m.versions[i].Ref == msg.ref
		}
	case diagnosisMsg:
		m.showMessage("Diagnosis", msg.text)
	case browserOpenedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Could not open %s: %v", msg.url, msg.err)
		}
	}

	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.modal != nil {
		switch {
		case key.Matches(msg, m.keys.cancel) && m.controls.Enabled(uistate.ControlCancelTask):
			m.cancelTask()
		case key.Matches(msg, m.keys.confirm):
			md := m.closeModal()
			if md.onConfirm != nil {
				return md.onConfirm()
			}
		case key.Matches(msg, m.keys.dismiss):
			m.closeModal()
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.start):
		if m.enabled(uistate.ControlStart) && !m.backendBusy {
			m.status = "Starting backend"
			return m.backendCmd("start", m.backend.Start)
		}
	case key.Matches(msg, m.keys.stop):
		if m.enabled(uistate.ControlStop) && !m.backendBusy {
			m.status = "Stopping backend"
			return m.backendCmd("stop", m.backend.Stop)
		}
	case key.Matches(msg, m.keys.refresh):
		if v, ok := capability.Get[Versions](m.caps, capability.Versions); ok && m.enabled(uistate.ControlRefreshVersions) {
			m.enqueue("refresh versions", refreshTask(v, m.dispatcher))
		}
	case key.Matches(msg, m.keys.activate):
		v, ok := capability.Get[Versions](m.caps, capability.Versions)
		if !ok || !m.enabled(uistate.ControlActivateVersion) || len(m.versions) == 0 {
			return nil
		}
		ref := m.versions[m.cursor].Ref
		m.confirm("Activate version", fmt.Sprintf("Check out %s and reinstall its requirements?", ref), func() tea.Cmd {
			m.enqueue("activate "+ref, activateTask(v, m.dispatcher, ref))
			return nil
		})
	case key.Matches(msg, m.keys.update):
		if n, ok := capability.Get[Nodes](m.caps, capability.Nodes); ok && m.enabled(uistate.ControlUpdateAllNodes) {
			m.enqueue("update all nodes", updateNodesTask(n))
		}
	case key.Matches(msg, m.keys.diagnose):
		if d, ok := capability.Get[Diagnoser](m.caps, capability.Diagnosis); ok && m.enabled(uistate.ControlDiagnose) {
			m.enqueue("diagnose", diagnoseTask(d, m.dispatcher, m.lineTexts()))
		}
	case key.Matches(msg, m.keys.cancel):
		if m.enabled(uistate.ControlCancelTask) {
			m.cancelTask()
		}
	case key.Matches(msg, m.keys.open):
		if m.enabled(uistate.ControlOpenBrowser) && m.url != "" {
			return m.openBrowser(m.url)
		}
	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.cursor < len(m.versions)-1 {
			m.cursor++
		}
	default:
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return cmd
	}

	return nil
}

func (m *Model) quit() tea.Cmd {
	if !m.state.ProcessPhase().Owned() {
		return tea.Quit
	}

	backend := m.backend
	m.confirm("Quit", "The backend is running. Stop it and quit?", func() tea.Cmd {
		m.status = "Stopping backend"
		return func() tea.Msg {
			_ = backend.Stop(context.Background())
			return tea.Quit()
		}
	})
	return nil
}

func (m *Model) reconcile() {
	snap := m.state.Snapshot()
	m.controls = uistate.Reconcile(snap)
	m.mode = uistate.Mode(snap)
}

func (m *Model) enabled(id uistate.ControlID) bool {
	return m.controls.Enabled(id)
}

func (m *Model) backendCmd(op string, fn func(context.Context) error) tea.Cmd {
	m.backendBusy = true
	return func() tea.Msg {
		return backendResultMsg{op: op, err: fn(context.Background())}
	}
}

func (m *Model) openBrowser(url string) tea.Cmd {
	open := m.openURL
	return func() tea.Msg {
		return browserOpenedMsg{url: url, err: open(url)}
	}
}

func (m *Model) enqueue(name string, fn worker.Func) {
	if _, err := m.queue.Enqueue(worker.Task{Name: name, Run: fn}); err != nil {
		m.status = fmt.Sprintf("Could not queue %s: %v", name, err)
		return
	}
	m.status = fmt.Sprintf("Queued %s", name)
}

func (m *Model) cancelTask() {
	if m.queue.Cancel() {
		m.status = "Cancelling task"
	}
}

func (m *Model) confirm(title, text string, onConfirm func() tea.Cmd) {
	m.modal = &modal{title: title, text: text, onConfirm: onConfirm}
	m.state.SetModalOpen(true)
}

func (m *Model) showMessage(title, text string) {
	m.modal = &modal{title: title, text: text}
	m.state.SetModalOpen(true)
}

func (m *Model) closeModal() *modal {
	md := m.modal
	m.modal = nil
	m.state.SetModalOpen(false)
	return md
}

func (m *Model) setVersions(vs []model.Version) {
	m.versions = vs
	m.cursor = 0
	for i, v := range vs {
		if v.Current {
			m.cursor = i
			break
		}
	}
}

func (m *Model) appendLine(l model.Line) {
	if _, err := io.WriteString(m.logSink, l.Text+"\n"); err != nil {
		m.logger.Debugf("Could not write output line to sink: %v", err)
	}

	m.lines = append(m.lines, l)
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}

	follow := m.logs.AtBottom()
	m.logs.SetContent(m.renderLines())
	if follow {
		m.logs.GotoBottom()
	}
}

func (m *Model) lineTexts() []string {
	res := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		res = append(res, l.Text)
	}
	return res
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	w := width - versionsWidth - 4
	if w < 20 {
		w = 20
	}
	h := height - 7
	if h < 3 {
		h = 3
	}
	m.logs.Width = w
	m.logs.Height = h
	m.logs.SetContent(m.renderLines())
}

func waitForLine(lines <-chan model.Line) tea.Cmd {
	return func() tea.Msg {
		l, ok := <-lines
		if !ok {
			return nil
		}
		return lineMsg{line: l}
	}
}

func taskStatus(msg worker.TaskFinishedMsg) string {
	r := msg.Record
	switch r.Status {
	case model.TaskStatusDone:
		return fmt.Sprintf("%s finished in %s", r.Name, r.Duration().Round(time.Millisecond))
	case model.TaskStatusCancelled:
		return fmt.Sprintf("%s cancelled", r.Name)
	case model.TaskStatusDropped:
		return fmt.Sprintf("%s dropped before running", r.Name)
	}
	return fmt.Sprintf("%s failed: %s", r.Name, r.Error)
}
