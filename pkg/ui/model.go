// Package ui is the terminal front end: a chat pane on the left and, once
// the first analysis arrives, a side panel with the impact graph and the
// rendered test plan.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/impactview/internal/datasource"
	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/chat"
	"github.com/vanderheijden86/impactview/pkg/clock"
	"github.com/vanderheijden86/impactview/pkg/config"
	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/export"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/panel"
	"github.com/vanderheijden86/impactview/pkg/session"
	"github.com/vanderheijden86/impactview/pkg/watcher"
)

type focus int

const (
	focusInput focus = iota
	focusGraph
	focusPlan
	focusExport
)

func (f focus) String() string {
	switch f {
	case focusInput:
		return "input"
	case focusGraph:
		return "graph"
	case focusPlan:
		return "plan"
	case focusExport:
		return "export"
	default:
		return "unknown"
	}
}

// Chat pane widths, in cells.
const (
	DefaultChatWidth = 50
	MinChatWidth     = 34
	MaxChatWidth     = 100
	// AutoShrinkWidth is the width the chat pane shrinks to after a
	// message is sent, so the side panel gets the room.
	AutoShrinkWidth = 42

	chatResizeStep = 4
	inputHeight    = 3
	panStep        = 4
)

// EndpointSetter is the part of the gateway that a config reload updates.
type EndpointSetter interface {
	SetEndpoints(analyzeURL, chatURL string)
}

// Options wires a Model to the rest of the application.
type Options struct {
	// Chat is nil for a read-only viewer; the chat pane is then hidden.
	Chat      *chat.Component
	Cell      *bus.Cell[model.PanelData]
	Panel     *panel.Panel
	Exporter  *export.Exporter
	Session   *session.Provider
	Endpoints EndpointSetter
	Watcher   *watcher.Watcher
	Clock     clock.Clock
	Config    config.Config
	// ConfigPath and ResponsePath are reloaded when Watcher reports them.
	ConfigPath   string
	ResponsePath string
	// Title replaces the repository name in the header when set.
	Title string
}

// Model is the main Bubble Tea model for impactview.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts  Options
	cfg   config.Config
	theme Theme
	clk   clock.Clock

	chat    *chat.Component
	panel   *panel.Panel
	graph   *graphPane
	updates <-chan bus.Update[model.PanelData]

	configPath   string
	responsePath string

	input      textarea.Model
	transcript viewport.Model
	plan       viewport.Model
	spinner    spinner.Model
	spinning   bool

	exportForm   *huh.Form
	exportChoice *export.Choice
	exporting    bool
	prevFocus    focus

	focus     focus
	width     int
	height    int
	chatWidth int

	// What the graph and plan panes currently show.
	shownSeq uint64
	shownSel int
	planSeq  uint64

	// Screen origin of the graph drawing area, for mouse hover.
	graphX, graphY int

	statusMsg     string
	statusIsError bool
	quitting      bool
}

// NewModel creates the model. The model is ready immediately with a
// default size; the first WindowSizeMsg corrects it.
func NewModel(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	theme := DefaultTheme(lipgloss.DefaultRenderer())

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	p := opts.Panel
	if p == nil {
		p = panel.New(panel.NewMarkdownConverter(opts.Config.UI.Style))
	}
	if opts.Exporter == nil {
		opts.Exporter = export.New(
			export.WithDir(opts.Config.Export.Dir),
			export.WithSettleDelay(opts.Config.Export.SettleDelay.D()),
			export.WithSanitize(opts.Config.Graph.SanitizeIDs),
		)
	}

	ta := textarea.New()
	ta.Placeholder = "Describe a change to analyze…"
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"), key.WithHelp("alt+enter", "newline"))
	ta.SetHeight(inputHeight)

	m := Model{
		ctx:          ctx,
		cancel:       cancel,
		opts:         opts,
		cfg:          opts.Config,
		theme:        theme,
		clk:          clk,
		chat:         opts.Chat,
		panel:        p,
		graph:        newGraphPane(theme, clk, opts.Config.Graph.FitPadding, opts.Config.Graph.SanitizeIDs),
		configPath:   absPath(opts.ConfigPath),
		responsePath: absPath(opts.ResponsePath),
		input:        ta,
		transcript:   viewport.New(DefaultChatWidth, 10),
		plan:         viewport.New(40, 10),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.PrimaryBold)),
		width:        120,
		height:       40,
		chatWidth:    DefaultChatWidth,
		shownSel:     -1,
	}
	if opts.Cell != nil {
		m.updates = opts.Cell.Subscribe(ctx)
	}
	if m.chat != nil {
		m.input.Focus()
	} else {
		m.focus = focusGraph
	}
	m.resize()
	m.refreshTranscript()
	m.refreshPlan()
	return m
}

func absPath(p string) string {
	if p == "" || p == "-" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{WaitForFitCmd(m.graph.Fitted())}
	if m.updates != nil {
		cmds = append(cmds, WaitForPanelCmd(m.updates))
	}
	if m.opts.Watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.opts.Watcher))
	}
	if m.chat != nil {
		cmds = append(cmds, textarea.Blink)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The export form needs every message type, not just keys, for its
	// internal navigation to work.
	if m.focus == focusExport && m.exportForm != nil {
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "ctrl+c":
				return m.quit()
			case "esc":
				m.closeExport()
				return m, m.setStatus("Export cancelled", false)
			}
		}
		form, cmd := m.exportForm.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.exportForm = f
		}
		cmds = append(cmds, cmd)
		switch m.exportForm.State {
		case huh.StateCompleted:
			cmds = append(cmds, m.startExport())
		case huh.StateAborted:
			m.closeExport()
			cmds = append(cmds, m.setStatus("Export cancelled", false))
		}
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m, tea.Batch(cmds...)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		cmds = append(cmds, m.resize())
		m.refreshTranscript()

	case PanelUpdateMsg:
		md := m.panel.Apply(msg.Update)
		m.syncGraph()
		m.refreshPlan()
		cmds = append(cmds, m.resize())
		cmds = append(cmds, ConvertCmd(m.panel, msg.Update.Seq, md), WaitForPanelCmd(m.updates))

	case panelClosedMsg:
		debug.Log("ui: panel subscription closed")

	case RenderedMsg:
		if m.panel.Deliver(msg.Rendered) {
			if msg.Rendered.Err != nil {
				cmds = append(cmds, m.setStatus(fmt.Sprintf("Test plan rendering failed: %v", msg.Rendered.Err), true))
			}
			m.refreshPlan()
		}

	case ChatDoneMsg:
		m.refreshTranscript()
		if msg.Err != nil {
			debug.Log("ui: chat request failed: %v", msg.Err)
			cmds = append(cmds, m.setStatus(describeChatError(msg.Err), true))
		}

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
			m.refreshTranscript()
		} else {
			m.spinning = false
		}

	case fitAppliedMsg:
		if m.graph.hoverIdx >= 0 {
			m.graph.hoverNode(m.graph.hoverIdx)
		}
		cmds = append(cmds, WaitForFitCmd(m.graph.Fitted()))

	case ExportDoneMsg:
		m.exporting = false
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Export failed: %v", msg.Err), true))
		} else {
			summary := strings.SplitN(export.Summary(msg.Result), "\n", 2)[0]
			if len(msg.Result.Paths) > 0 {
				summary += " → " + msg.Result.Paths[0]
			}
			cmds = append(cmds, m.setStatus(summary, false))
		}

	case FileChangedMsg:
		cmds = append(cmds, m.handleFileChange(msg.Path))
		if m.opts.Watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.opts.Watcher))
		}

	case StatusMsg:
		cmds = append(cmds, m.setStatus(msg.Text, msg.IsError))

	case statusClearMsg:
		if m.statusMsg == msg.text {
			m.statusMsg, m.statusIsError = "", false
		}

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))

	case tea.KeyMsg:
		if m.focus != focusExport {
			var cmd tea.Cmd
			m, cmd = m.handleKey(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		mm, cmd := m.quit()
		return mm.(Model), cmd
	case "tab":
		m.cycleFocus(1)
		return m, nil
	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil
	case "ctrl+e":
		return m.openExport()
	case "ctrl+y":
		return m, CopyCmd(m.panel.Snapshot().Data.TestPlan, "test plan")
	case "ctrl+l":
		if m.chat != nil {
			m.chat.Reset()
			return m, m.setStatus("Panel cleared", false)
		}
		return m, nil
	case "ctrl+n":
		return m, m.newSession()
	}

	switch m.focus {
	case focusInput:
		return m.handleInputKeys(msg)
	case focusGraph:
		return m.handleGraphKeys(msg)
	case focusPlan:
		return m.handlePlanKeys(msg)
	}
	return m, nil
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.submit(false)
	case "ctrl+t":
		return m.submit(true)
	case "esc":
		if m.panelOpen() {
			m.setFocus(focusGraph)
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handlePaneKeys handles keys shared by the graph and plan panes. ok is
// false when the key was not consumed.
func (m Model) handlePaneKeys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		mm, cmd := m.quit()
		return mm.(Model), cmd, true
	case "i", "/":
		if m.chat != nil {
			m.setFocus(focusInput)
		}
		return m, nil, true
	case "]", "n":
		return m, m.cycleGraph(1), true
	case "[", "p":
		return m, m.cycleGraph(-1), true
	case "<":
		m.chatWidth = clamp(m.chatWidth-chatResizeStep, MinChatWidth, MaxChatWidth)
		return m, m.resize(), true
	case ">":
		m.chatWidth = clamp(m.chatWidth+chatResizeStep, MinChatWidth, MaxChatWidth)
		return m, m.resize(), true
	case "Y":
		if m.opts.Session == nil {
			return m, nil, true
		}
		return m, CopyCmd(m.opts.Session.ID(), "session id"), true
	}
	return m, nil, false
}

func (m Model) handleGraphKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	if mm, cmd, ok := m.handlePaneKeys(msg); ok {
		return mm, cmd
	}
	switch msg.String() {
	case "left", "h":
		m.graph.Pan(panStep, 0)
	case "right", "l":
		m.graph.Pan(-panStep, 0)
	case "up", "k":
		m.graph.Pan(0, 1)
	case "down", "j":
		m.graph.Pan(0, -1)
	case "enter", ".":
		m.graph.HoverNext(1)
	case ",":
		m.graph.HoverNext(-1)
	case "esc":
		m.graph.Leave()
	case "f":
		m.graph.Fit()
	case "y":
		if id, ok := m.graph.Hovered(); ok {
			return m, CopyCmd(id, "module id")
		}
		return m, CopyCmd(m.panel.Snapshot().Data.TestPlan, "test plan")
	}
	return m, nil
}

func (m Model) handlePlanKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	if mm, cmd, ok := m.handlePaneKeys(msg); ok {
		return mm, cmd
	}
	switch msg.String() {
	case "y":
		return m, CopyCmd(m.panel.Snapshot().Data.TestPlan, "test plan")
	case "g", "home":
		m.plan.GotoTop()
		return m, nil
	case "G", "end":
		m.plan.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.plan, cmd = m.plan.Update(msg)
	return m, cmd
}

func (m Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action == tea.MouseActionMotion && m.panelOpen() {
		x, y := msg.X-m.graphX, msg.Y-m.graphY
		if x >= 0 && y >= 0 && x < m.graph.width && y < m.graph.height {
			m.graph.HoverAt(x, y)
		} else if _, ok := m.graph.Hovered(); ok {
			m.graph.Leave()
		}
		return nil
	}
	if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
		var cmd tea.Cmd
		if msg.X < m.chatPaneWidth() {
			m.transcript, cmd = m.transcript.Update(msg)
		} else {
			m.plan, cmd = m.plan.Update(msg)
		}
		return cmd
	}
	return nil
}

// submit records the prompt and starts the request. Blank input does
// nothing.
func (m Model) submit(relay bool) (Model, tea.Cmd) {
	if m.chat == nil {
		return m, nil
	}
	prompt, ok := m.chat.Prepare(m.input.Value())
	if !ok {
		return m, nil
	}
	m.input.Reset()
	var cmds []tea.Cmd
	if m.chatWidth > AutoShrinkWidth {
		m.chatWidth = AutoShrinkWidth
		cmds = append(cmds, m.resize())
	}
	m.refreshTranscript()

	if relay {
		cmds = append(cmds, RelayCmd(m.ctx, m.chat, prompt))
	} else {
		cmds = append(cmds, AnalyzeCmd(m.ctx, m.chat, prompt))
	}
	cmds = append(cmds, m.startSpinner())
	return m, tea.Batch(cmds...)
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m Model) busy() bool {
	return m.exporting || (m.chat != nil && m.chat.State() == chat.StateAwaiting)
}

func (m Model) openExport() (Model, tea.Cmd) {
	snap := m.panel.Snapshot()
	if !snap.Open || snap.Data.IsEmpty() {
		return m, m.setStatus("Nothing to export yet", true)
	}
	if m.exporting {
		return m, m.setStatus("An export is already running", true)
	}
	m.exportChoice = &export.Choice{
		Target: export.TargetDocument,
		Format: export.FormatPDF,
		Dir:    m.opts.Exporter.Dir(),
	}
	m.exportForm = export.ExportForm(m.exportChoice, m.opts.Exporter.CanUpload()).
		WithAccessible(false).
		WithShowHelp(true).
		WithWidth(min(64, max(20, m.width-8)))
	m.prevFocus = m.focus
	m.setFocus(focusExport)
	return m, m.exportForm.Init()
}

func (m *Model) startExport() tea.Cmd {
	req := export.RequestFor(*m.exportChoice)
	data := m.panel.Snapshot().Data
	m.closeExport()
	m.exporting = true
	debug.Log("ui: export %s/%s to %s", req.Target, req.Format, req.Dir)
	return tea.Batch(
		ExportCmd(m.ctx, m.opts.Exporter, req, data),
		m.startSpinner(),
		m.setStatus("Exporting…", false),
	)
}

func (m *Model) closeExport() {
	m.exportForm = nil
	m.exportChoice = nil
	m.setFocus(m.prevFocus)
}

func (m *Model) newSession() tea.Cmd {
	if m.opts.Session == nil {
		return m.setStatus("No session store", true)
	}
	id, err := m.opts.Session.Reset()
	if err != nil {
		return m.setStatus(fmt.Sprintf("Session reset failed: %v", err), true)
	}
	if id == "" {
		return m.setStatus("Session ids are unavailable in this terminal", true)
	}
	return m.setStatus("New session "+id, false)
}

func (m *Model) handleFileChange(path string) tea.Cmd {
	switch {
	case path != "" && path == m.configPath:
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return m.setStatus(fmt.Sprintf("Config reload failed: %v", err), true)
		}
		m.cfg = cfg
		if m.opts.Endpoints != nil {
			m.opts.Endpoints.SetEndpoints(cfg.Backend.AnalyzeURL, cfg.Backend.ChatURL)
		}
		return tea.Batch(m.resize(), m.setStatus("Config reloaded", false))

	case path != "" && path == m.responsePath:
		data, err := datasource.LoadPanel(path, nil)
		if err != nil {
			return m.setStatus(fmt.Sprintf("Reload failed: %v", err), true)
		}
		if m.opts.Cell != nil {
			m.opts.Cell.Publish(data)
		}
		return m.setStatus("Reloaded "+filepath.Base(path), false)
	}
	return nil
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusMsg, m.statusIsError = text, isErr
	return clearStatusCmd(text)
}

func (m *Model) cycleGraph(delta int) tea.Cmd {
	if err := m.panel.Cycle(delta); err != nil {
		return m.setStatus("No graphs to show", true)
	}
	m.syncGraph()
	return nil
}

// syncGraph rebuilds the graph pane when the emission or selection
// changed.
func (m *Model) syncGraph() {
	snap := m.panel.Snapshot()
	if snap.Seq == m.shownSeq && snap.Selected == m.shownSel {
		return
	}
	m.shownSeq, m.shownSel = snap.Seq, snap.Selected
	resp, ok := snap.SelectedGraph()
	m.graph.SetGraph(resp, ok)
}

func (m *Model) panelOpen() bool {
	return m.chat == nil || m.panel.Snapshot().Open
}

func (m *Model) cycleFocus(delta int) {
	order := []focus{focusInput, focusGraph, focusPlan}
	if m.chat == nil {
		order = order[1:]
	} else if !m.panelOpen() {
		order = order[:1]
	}
	idx := 0
	for i, f := range order {
		if f == m.focus {
			idx = i
		}
	}
	m.setFocus(order[((idx+delta)%len(order)+len(order))%len(order)])
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	if f != focusGraph {
		m.graph.Leave()
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Stop()
	m.quitting = true
	return m, tea.Quit
}

// Stop cancels the bus subscription, in-flight requests and fit timers.
func (m *Model) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.graph.Stop()
}

// FocusState returns the focused pane name.
func (m Model) FocusState() string { return m.focus.String() }

// ChatWidth returns the requested chat pane width.
func (m Model) ChatWidth() int { return m.chatWidth }

// PanelOpen reports whether the side panel is shown.
func (m Model) PanelOpen() bool { return m.panelOpen() }

// Status returns the footer status line.
func (m Model) Status() (string, bool) { return m.statusMsg, m.statusIsError }

// HoveredModule returns the hovered graph node id.
func (m Model) HoveredModule() (string, bool) { return m.graph.Hovered() }
