package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/chat"
	"github.com/vanderheijden86/impactview/pkg/export"
	"github.com/vanderheijden86/impactview/pkg/gateway"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/panel"
	"github.com/vanderheijden86/impactview/pkg/watcher"
)

// PanelUpdateMsg carries a bus emission into the update loop.
type PanelUpdateMsg struct {
	Update bus.Update[model.PanelData]
}

// panelClosedMsg is sent when the bus subscription ends.
type panelClosedMsg struct{}

// RenderedMsg carries a finished test plan conversion.
type RenderedMsg struct {
	Rendered panel.Rendered
}

// ChatDoneMsg is sent when a submitted prompt has been answered.
type ChatDoneMsg struct {
	Message model.Message
	Err     error
}

// fitAppliedMsg is sent after the fitter moved the graph.
type fitAppliedMsg struct{}

// ExportDoneMsg is sent when an export finishes.
type ExportDoneMsg struct {
	Result export.Result
	Err    error
}

// FileChangedMsg is sent when a watched file changes on disk.
type FileChangedMsg struct {
	Path string
}

// StatusMsg sets the footer status line.
type StatusMsg struct {
	Text    string
	IsError bool
}

// statusClearMsg clears the status line if it still shows the same text.
type statusClearMsg struct{ text string }

const statusTTL = 4 * time.Second

// WaitForPanelCmd waits for the next bus emission.
func WaitForPanelCmd(ch <-chan bus.Update[model.PanelData]) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return panelClosedMsg{}
		}
		return PanelUpdateMsg{Update: u}
	}
}

// ConvertCmd converts the test plan of emission seq off the update loop.
func ConvertCmd(p *panel.Panel, seq uint64, md string) tea.Cmd {
	return func() tea.Msg {
		return RenderedMsg{Rendered: p.Convert(seq, md)}
	}
}

// AnalyzeCmd resolves a prepared prompt through the analysis endpoint.
func AnalyzeCmd(ctx context.Context, c *chat.Component, prompt string) tea.Cmd {
	return func() tea.Msg {
		msg, err := c.Resolve(ctx, prompt)
		return ChatDoneMsg{Message: msg, Err: err}
	}
}

// RelayCmd answers a prepared prompt through the plain chat endpoint.
func RelayCmd(ctx context.Context, c *chat.Component, prompt string) tea.Cmd {
	return func() tea.Msg {
		msg, err := c.Answer(ctx, prompt)
		return ChatDoneMsg{Message: msg, Err: err}
	}
}

// WaitForFitCmd waits until the graph pane applied a fit.
func WaitForFitCmd(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return fitAppliedMsg{}
	}
}

// ExportCmd runs one export.
func ExportCmd(ctx context.Context, e *export.Exporter, req export.Request, data model.PanelData) tea.Cmd {
	return func() tea.Msg {
		res, err := e.Run(ctx, req, data)
		return ExportDoneMsg{Result: res, Err: err}
	}
}

// WatchFileCmd returns a command that waits for file changes and sends
// FileChangedMsg.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		return FileChangedMsg{Path: <-w.Changed()}
	}
}

// CopyCmd writes text to the system clipboard.
func CopyCmd(text, what string) tea.Cmd {
	return func() tea.Msg {
		if text == "" {
			return StatusMsg{Text: fmt.Sprintf("Nothing to copy: %s is empty", what), IsError: true}
		}
		if err := clipboard.WriteAll(text); err != nil {
			return StatusMsg{Text: fmt.Sprintf("Clipboard unavailable: %v", err), IsError: true}
		}
		return StatusMsg{Text: fmt.Sprintf("Copied %s to clipboard", what)}
	}
}

func clearStatusCmd(text string) tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return statusClearMsg{text: text} })
}

// describeChatError turns a gateway failure into a short status line.
func describeChatError(err error) string {
	var apiErr *gateway.APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Backend returned %d", apiErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "Backend timed out"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	default:
		return "Backend unreachable"
	}
}
