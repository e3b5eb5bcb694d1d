package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/chat"
	"github.com/vanderheijden86/impactview/pkg/clock"
	"github.com/vanderheijden86/impactview/pkg/config"
	"github.com/vanderheijden86/impactview/pkg/export"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/panel"
	"github.com/vanderheijden86/impactview/pkg/testutil"
)

type stubConverter struct{}

func (stubConverter) HTML(md string) (string, error) { return "<p>" + md + "</p>", nil }

func (stubConverter) Terminal(md string, width int) (string, error) {
	return "plan: " + strings.TrimSpace(md), nil
}

type stubGateway struct {
	resp  model.PromptResponse
	reply string
	err   error
}

func (s *stubGateway) Analyze(ctx context.Context, text string) (model.PromptResponse, error) {
	return s.resp, s.err
}

func (s *stubGateway) Chat(ctx context.Context, text string) (string, error) {
	return s.reply, s.err
}

type testHarness struct {
	cell *bus.Cell[model.PanelData]
	chat *chat.Component
	clk  *clock.Fake
}

func newTestModel(t *testing.T, gw *stubGateway, mutate ...func(*Options)) (Model, *testHarness) {
	t.Helper()
	h := &testHarness{
		cell: bus.New[model.PanelData](),
		clk:  clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	if gw != nil {
		h.chat = chat.New(gw, h.cell, chat.WithClock(h.clk.Now))
	}
	opts := Options{
		Chat:     h.chat,
		Cell:     h.cell,
		Panel:    panel.New(stubConverter{}),
		Exporter: export.New(export.WithDir(t.TempDir()), export.WithSettleDelay(0)),
		Clock:    h.clk,
		Config:   config.DefaultConfig(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	m := NewModel(opts)
	t.Cleanup(func() { m.Stop() })
	return send(m, tea.WindowSizeMsg{Width: 140, Height: 40}), h
}

func send(m Model, msg tea.Msg) Model {
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+e":
		msg = tea.KeyMsg{Type: tea.KeyCtrlE}
	case "ctrl+t":
		msg = tea.KeyMsg{Type: tea.KeyCtrlT}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// collect runs cmd and every command it batches, returning the messages
// that arrive within a short window. Timers such as the status TTL are
// dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(200 * time.Millisecond):
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// nextPanel feeds the next bus emission through the model, followed by
// the finished test plan conversion.
func nextPanel(t *testing.T, m Model) Model {
	t.Helper()
	select {
	case u := <-m.updates:
		// The returned batch re-waits on the subscription, so it is not
		// run here; the conversion is done inline instead.
		m = send(m, PanelUpdateMsg{Update: u})
		snap := m.panel.Snapshot()
		return send(m, RenderedMsg{Rendered: m.panel.Convert(snap.Seq, snap.Data.TestPlan)})
	case <-time.After(time.Second):
		t.Fatal("no panel emission")
		return m
	}
}

func sampleResponse() model.PromptResponse {
	g := testutil.NewDefault()
	resp := g.ToResponse(testutil.SamplePlan, testutil.QuickChain(3), testutil.QuickStar(2))
	resp.RepoName = "shop"
	resp.PromptMessage = "Two modules are impacted."
	return resp
}

func TestNewModelStartsWithChatOnly(t *testing.T) {
	m, _ := newTestModel(t, &stubGateway{})

	if m.PanelOpen() {
		t.Error("panel should be closed before the first emission")
	}
	if m.FocusState() != "input" {
		t.Errorf("focus = %s, want input", m.FocusState())
	}
	if w := m.chatPaneWidth(); w != 140 {
		t.Errorf("chat pane width = %d, want full width", w)
	}
	view := m.View()
	if !strings.Contains(view, "impactview") {
		t.Error("header missing")
	}
	if strings.Contains(view, "Waiting for the first analysis") {
		t.Error("side panel should be hidden")
	}
}

func TestSubmitBlankIsNoop(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{})
	before := len(h.chat.Messages())

	m.input.SetValue("   ")
	m, cmd := press(m, "enter")
	if cmd != nil {
		t.Error("blank submit should not start a request")
	}
	if len(h.chat.Messages()) != before {
		t.Error("blank submit should not touch the transcript")
	}
	if m.ChatWidth() != DefaultChatWidth {
		t.Error("blank submit should not shrink the chat pane")
	}
}

func TestSubmitOpensPanel(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{resp: sampleResponse()})

	m.input.SetValue("  change the checkout flow ")
	m, cmd := press(m, "enter")
	if m.ChatWidth() != AutoShrinkWidth {
		t.Errorf("chat width = %d, want %d", m.ChatWidth(), AutoShrinkWidth)
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared")
	}
	for _, msg := range collect(cmd) {
		if done, ok := msg.(ChatDoneMsg); ok {
			if done.Err != nil {
				t.Fatalf("chat error: %v", done.Err)
			}
			m = send(m, done)
		}
	}
	if h.chat.State() != chat.StateIdle {
		t.Errorf("state = %v, want idle", h.chat.State())
	}

	m = nextPanel(t, m)
	if !m.PanelOpen() {
		t.Fatal("panel should open on the first emission")
	}
	if w := m.chatPaneWidth(); w != AutoShrinkWidth {
		t.Errorf("chat pane width = %d, want %d", w, AutoShrinkWidth)
	}
	snap := m.panel.Snapshot()
	if snap.Selected != 0 || len(snap.Data.GraphData) != 2 {
		t.Errorf("selected %d of %d graphs", snap.Selected, len(snap.Data.GraphData))
	}

	view := m.View()
	for _, want := range []string{"shop", "graph 1/2", "plan: # Test Plan", "Two modules are impacted."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestChatErrorShowsStatus(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{err: errors.New("connection refused")})

	m.input.SetValue("hello")
	m, cmd := press(m, "enter")
	for _, msg := range collect(cmd) {
		if done, ok := msg.(ChatDoneMsg); ok {
			m = send(m, done)
		}
	}
	text, isErr := m.Status()
	if text != "Backend unreachable" || !isErr {
		t.Errorf("status = %q,%v", text, isErr)
	}
	msgs := h.chat.Messages()
	if last := msgs[len(msgs)-1]; last.Text != chat.FallbackMessage {
		t.Errorf("last message = %q, want fallback", last.Text)
	}

	// The failure clears the panel, which still opens it.
	m = nextPanel(t, m)
	if !m.PanelOpen() || len(m.panel.Snapshot().Data.GraphData) != 0 {
		t.Error("expected an open, empty panel")
	}
}

func TestRelayLeavesPanelClosed(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{reply: "pong"})

	m.input.SetValue("ping")
	m, cmd := press(m, "ctrl+t")
	for _, msg := range collect(cmd) {
		if done, ok := msg.(ChatDoneMsg); ok {
			m = send(m, done)
		}
	}
	msgs := h.chat.Messages()
	if last := msgs[len(msgs)-1]; last.Text != "pong" {
		t.Errorf("reply = %q", last.Text)
	}
	if m.PanelOpen() {
		t.Error("relay should not open the panel")
	}
}

func TestCycleGraphs(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{})
	h.cell.Publish(sampleResponse().PanelData())
	m = nextPanel(t, m)

	m, _ = press(m, "tab")
	if m.FocusState() != "graph" {
		t.Fatalf("focus = %s, want graph", m.FocusState())
	}
	m, _ = press(m, "]")
	if sel := m.panel.Snapshot().Selected; sel != 1 {
		t.Errorf("selected = %d, want 1", sel)
	}
	if len(m.graph.graph.Nodes) != 3 {
		t.Errorf("graph pane shows %d nodes, want the star's 3", len(m.graph.graph.Nodes))
	}
	m, _ = press(m, "]")
	if sel := m.panel.Snapshot().Selected; sel != 0 {
		t.Errorf("selected = %d, want wrap to 0", sel)
	}
	m, _ = press(m, "[")
	if sel := m.panel.Snapshot().Selected; sel != 1 {
		t.Errorf("selected = %d, want 1", sel)
	}
}

func TestFocusCycle(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{})

	// Only the input is focusable while the panel is closed.
	m, _ = press(m, "tab")
	if m.FocusState() != "input" {
		t.Errorf("focus = %s, want input", m.FocusState())
	}

	h.cell.Publish(sampleResponse().PanelData())
	m = nextPanel(t, m)
	for _, want := range []string{"graph", "plan", "input"} {
		m, _ = press(m, "tab")
		if m.FocusState() != want {
			t.Errorf("focus = %s, want %s", m.FocusState(), want)
		}
	}
	if !m.input.Focused() {
		t.Error("textarea should be focused")
	}
}

func TestResizeChatPane(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{})
	h.cell.Publish(sampleResponse().PanelData())
	m = nextPanel(t, m)
	m, _ = press(m, "tab")

	for i := 0; i < 30; i++ {
		m, _ = press(m, ">")
	}
	if m.ChatWidth() != MaxChatWidth {
		t.Errorf("chat width = %d, want %d", m.ChatWidth(), MaxChatWidth)
	}
	// The split ratio caps the drawn width.
	if w := m.chatPaneWidth(); w != int(140*0.4) {
		t.Errorf("chat pane width = %d, want %d", w, int(140*0.4))
	}
	for i := 0; i < 30; i++ {
		m, _ = press(m, "<")
	}
	if m.ChatWidth() != MinChatWidth {
		t.Errorf("chat width = %d, want %d", m.ChatWidth(), MinChatWidth)
	}
}

func TestReadOnlyViewer(t *testing.T) {
	m, h := newTestModel(t, nil, func(o *Options) { o.Title = "following win-abc" })

	if m.FocusState() != "graph" {
		t.Errorf("focus = %s, want graph", m.FocusState())
	}
	if m.chatPaneWidth() != 0 {
		t.Error("viewer has no chat pane")
	}
	view := m.View()
	if !strings.Contains(view, "Waiting for the first analysis") || !strings.Contains(view, "following win-abc") {
		t.Errorf("unexpected viewer view:\n%s", view)
	}

	m, _ = press(m, "enter")
	h.cell.Publish(sampleResponse().PanelData())
	m = nextPanel(t, m)
	if !strings.Contains(m.View(), "graph 1/2") {
		t.Error("viewer should show published graphs")
	}
}

func TestExportDialog(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{})

	m, _ = press(m, "ctrl+e")
	if text, isErr := m.Status(); text != "Nothing to export yet" || !isErr {
		t.Errorf("status = %q,%v", text, isErr)
	}

	h.cell.Publish(sampleResponse().PanelData())
	m = nextPanel(t, m)
	m, _ = press(m, "ctrl+e")
	if m.FocusState() != "export" || m.exportForm == nil {
		t.Fatalf("focus = %s, want export", m.FocusState())
	}
	if !strings.Contains(m.View(), "Export") {
		t.Error("dialog not rendered")
	}

	m, _ = press(m, "esc")
	if m.FocusState() != "input" || m.exportForm != nil {
		t.Errorf("focus = %s after cancel", m.FocusState())
	}
	if text, _ := m.Status(); text != "Export cancelled" {
		t.Errorf("status = %q", text)
	}
}

func TestExportDoneStatus(t *testing.T) {
	m, _ := newTestModel(t, &stubGateway{})
	m.exporting = true

	m = send(m, ExportDoneMsg{Result: export.Result{
		Target: export.TargetDocument,
		Format: export.FormatPDF,
		Paths:  []string{"/tmp/impact.pdf"},
	}})
	text, isErr := m.Status()
	if isErr || !strings.Contains(text, "/tmp/impact.pdf") {
		t.Errorf("status = %q,%v", text, isErr)
	}
	if m.exporting {
		t.Error("exporting flag should clear")
	}

	m = send(m, ExportDoneMsg{Err: errors.New("disk full")})
	if text, isErr := m.Status(); !isErr || !strings.Contains(text, "disk full") {
		t.Errorf("status = %q,%v", text, isErr)
	}
}

func TestMouseHoverOverGraph(t *testing.T) {
	m, h := newTestModel(t, &stubGateway{})
	h.cell.Publish(sampleResponse().PanelData())
	m = nextPanel(t, m)
	h.clk.Advance(2 * time.Second)

	b := m.graph.layout.Boxes[0]
	offX, offY, _ := m.graph.target.view()
	m = send(m, tea.MouseMsg{
		X:      m.graphX + int(b.X+offX) + 1,
		Y:      m.graphY + int(b.Y+offY) + 1,
		Action: tea.MouseActionMotion,
	})
	if id, ok := m.HoveredModule(); !ok || id != b.ID {
		t.Errorf("hovered = %q,%v want %q", id, ok, b.ID)
	}

	m = send(m, tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionMotion})
	if _, ok := m.HoveredModule(); ok {
		t.Error("moving off the graph should leave")
	}
}

func TestFileChangeReloadsResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.json")
	testutil.WriteResponseFile(t, path, sampleResponse())

	m, _ := newTestModel(t, nil, func(o *Options) { o.ResponsePath = path })
	m = send(m, FileChangedMsg{Path: m.responsePath})

	m = nextPanel(t, m)
	if got := m.panel.Snapshot().Data.RepoName; got != "shop" {
		t.Errorf("repo = %q, want shop", got)
	}
	if text, _ := m.Status(); text != "Reloaded response.json" {
		t.Errorf("status = %q", text)
	}
}

func TestFileChangeBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	testutil.WriteResponseFile(t, path, map[string]any{"ui": map[string]any{"split_ratio": 5}})

	m, _ := newTestModel(t, nil, func(o *Options) { o.ConfigPath = path })
	m = send(m, FileChangedMsg{Path: m.configPath})
	if text, isErr := m.Status(); !isErr || !strings.HasPrefix(text, "Config reload failed") {
		t.Errorf("status = %q,%v", text, isErr)
	}
}

func TestStatusClears(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = send(m, StatusMsg{Text: "Copied"})
	m = send(m, statusClearMsg{text: "something else"})
	if text, _ := m.Status(); text != "Copied" {
		t.Errorf("status = %q, a stale clear must not erase it", text)
	}
	m = send(m, statusClearMsg{text: "Copied"})
	if text, _ := m.Status(); text != "" {
		t.Errorf("status = %q, want cleared", text)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, &stubGateway{})
	m, cmd := press(m, "ctrl+c")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("view should be empty after quit")
	}
	select {
	case <-m.ctx.Done():
	default:
		t.Error("quit should cancel the model context")
	}
}

func TestDescribeChatError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "Backend timed out"},
		{context.Canceled, "Request cancelled"},
		{errors.New("dial tcp"), "Backend unreachable"},
	}
	for _, tt := range tests {
		if got := describeChatError(tt.err); got != tt.want {
			t.Errorf("describeChatError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
