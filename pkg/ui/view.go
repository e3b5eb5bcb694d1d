package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/impactview/pkg/chat"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// sideHeaderLines is the height of the repo / graph tab line above the graph.
const sideHeaderLines = 1

// chatPaneWidth returns the outer width of the chat pane, 0 when hidden.
func (m *Model) chatPaneWidth() int {
	if m.chat == nil {
		return 0
	}
	if !m.panelOpen() {
		return m.width
	}
	w := clamp(m.chatWidth, MinChatWidth, MaxChatWidth)
	if r := m.cfg.UI.SplitRatio; r > 0 {
		if limit := int(float64(m.width) * r); limit >= MinChatWidth && w > limit {
			w = limit
		}
	}
	// Leave the side panel something to draw in.
	if w > m.width-20 {
		w = max(m.width-20, 10)
	}
	return w
}

// resize recomputes every pane size. It returns a command re-rendering
// the test plan when the panel width changed.
func (m *Model) resize() tea.Cmd {
	bodyH := max(m.height-2, 4)
	chatW := m.chatPaneWidth()

	if chatW > 0 {
		innerW := max(chatW-2, 1)
		innerH := bodyH - 2
		m.input.SetWidth(innerW)
		m.transcript.Width = innerW
		m.transcript.Height = max(innerH-inputHeight-1, 1)
	}

	sideW := m.width - chatW
	sideInnerW := max(sideW-2, 1)
	usable := bodyH - 2 - sideHeaderLines - 1
	graphH := max(usable*3/5, 3)
	planH := max(usable-graphH, 1)

	m.graph.SetSize(sideInnerW, graphH)
	m.graphX = chatW + 1
	m.graphY = 1 + 1 + sideHeaderLines
	m.plan.Width = sideInnerW
	m.plan.Height = planH

	if m.panel.Width() == sideInnerW {
		return nil
	}
	m.panel.SetWidth(sideInnerW)
	snap := m.panel.Snapshot()
	if !snap.Open || snap.Data.TestPlan == "" {
		return nil
	}
	return ConvertCmd(m.panel, snap.Seq, snap.Data.TestPlan)
}

// refreshTranscript re-renders the chat messages into the transcript
// viewport and scrolls to the newest one.
func (m *Model) refreshTranscript() {
	if m.chat == nil {
		return
	}
	t := m.theme
	width := max(m.transcript.Width-2, 8)
	now := m.clk.Now()

	var b strings.Builder
	msgs := m.chat.Messages()
	if len(msgs) == 0 {
		b.WriteString(t.MutedText.Render("Describe a change and press enter to see which modules it impacts."))
	}
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := "assistant"
		labelStyle := t.PrimaryBold
		if msg.Role == model.RoleUser {
			label, labelStyle = "you", t.UserLabel
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(" ")
		b.WriteString(t.MutedText.Render(FormatTimeRel(msg.Timestamp, now)))
		for _, line := range wrapText(msg.Text, width) {
			b.WriteString("\n  ")
			b.WriteString(t.AssistantText.Render(line))
		}
	}
	if m.chat.State() == chat.StateAwaiting {
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View())
		b.WriteString(t.MutedText.Render(" analyzing…"))
	}
	m.transcript.SetContent(b.String())
	m.transcript.GotoBottom()
}

// refreshPlan shows the rendered test plan, a placeholder while it is
// converting, or the conversion error.
func (m *Model) refreshPlan() {
	snap := m.panel.Snapshot()
	t := m.theme
	var content string
	switch {
	case !snap.Open:
		content = ""
	case snap.Data.TestPlan == "":
		content = t.MutedText.Render("No test plan")
	case snap.Converting:
		content = t.MutedText.Render("Rendering test plan…")
	case snap.RenderErr != nil:
		content = t.ErrorText.Render("Could not render the test plan") + "\n\n" + snap.Data.TestPlan
	default:
		content = snap.Terminal
	}
	m.plan.SetContent(content)
	if snap.Seq != m.planSeq {
		m.planSeq = snap.Seq
		m.plan.GotoTop()
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	body := m.renderBody()
	if m.focus == focusExport && m.exportForm != nil {
		dialog := FocusedPanelStyle.Padding(0, SpaceXS).Render(
			m.theme.PrimaryBold.Render("Export") + "\n\n" + m.exportForm.View(),
		)
		body = lipgloss.Place(m.width, max(m.height-2, 1), lipgloss.Center, lipgloss.Center, dialog)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	t := m.theme
	title := m.opts.Title
	if title == "" {
		title = m.panel.Snapshot().Data.RepoName
	}
	left := t.Header.Render("impactview")
	if title != "" {
		left += " " + t.PrimaryBold.Render(truncate(title, max(m.width/3, 8)))
	}
	var right string
	if m.opts.Session != nil {
		if id := m.opts.Session.ID(); id != "" {
			right = t.MutedText.Render("session " + id)
		}
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return t.Renderer.NewStyle().MaxWidth(m.width).Render(left)
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderBody() string {
	bodyH := max(m.height-2, 4)
	chatW := m.chatPaneWidth()
	var panes []string
	if chatW > 0 {
		panes = append(panes, m.renderChat(chatW, bodyH))
	}
	if m.panelOpen() && m.width-chatW > 2 {
		panes = append(panes, m.renderSide(m.width-chatW, bodyH))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panes...)
}

func (m Model) renderChat(w, h int) string {
	innerW := max(w-2, 1)
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.transcript.View(),
		RenderDivider(innerW),
		m.input.View(),
	)
	return paneStyle(m.focus == focusInput).
		Width(innerW).
		Height(max(h-2, 1)).
		MaxHeight(h).
		Render(content)
}

func (m Model) renderSide(w, h int) string {
	t := m.theme
	innerW := max(w-2, 1)
	snap := m.panel.Snapshot()

	var content string
	if !snap.Open {
		content = t.Renderer.NewStyle().
			Width(innerW).
			Height(max(h-2, 1)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(t.Secondary).
			Render("Waiting for the first analysis…")
	} else {
		parts := []string{RenderGraphTab(snap.Selected, len(snap.Data.GraphData))}
		if n := m.graph.criticalCount(); n > 0 {
			parts = append(parts, RenderCriticalBadge(n))
		}
		parts = append(parts, t.MutedText.Render(m.graph.Status()))
		header := strings.Join(parts, " ")
		if lipgloss.Width(header) > innerW {
			header = t.Renderer.NewStyle().MaxWidth(innerW).Render(header)
		}
		content = lipgloss.JoinVertical(lipgloss.Left,
			header,
			m.graph.View(),
			RenderDivider(innerW),
			m.plan.View(),
		)
	}
	return paneStyle(m.focus == focusGraph || m.focus == focusPlan).
		Width(innerW).
		Height(max(h-2, 1)).
		MaxHeight(h).
		Render(content)
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		style := m.theme.MutedText
		if m.statusIsError {
			style = m.theme.ErrorText
		}
		return style.Render(truncate(m.statusMsg, m.width))
	}

	var hints []string
	switch m.focus {
	case focusInput:
		hints = []string{
			RenderKeyHint("enter", "analyze"),
			RenderKeyHint("ctrl+t", "chat"),
			RenderKeyHint("tab", "panel"),
			RenderKeyHint("ctrl+l", "clear"),
		}
	case focusGraph:
		hints = []string{
			RenderKeyHint("←→↑↓", "pan"),
			RenderKeyHint(". ,", "hover"),
			RenderKeyHint("f", "fit"),
			RenderKeyHint("[ ]", "graph"),
			RenderKeyHint("y", "copy"),
		}
	case focusPlan:
		hints = []string{
			RenderKeyHint("↑↓", "scroll"),
			RenderKeyHint("y", "copy plan"),
			RenderKeyHint("< >", "resize"),
		}
	case focusExport:
		hints = []string{RenderKeyHint("esc", "cancel")}
	}
	if m.focus != focusExport {
		hints = append(hints, RenderKeyHint("ctrl+e", "export"), RenderKeyHint("ctrl+c", "quit"))
	}
	return m.theme.Renderer.NewStyle().MaxWidth(m.width).Render(strings.Join(hints, "  "))
}
