package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/chat"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/panel"
	"github.com/vanderheijden86/impactview/pkg/ui"
	"github.com/vanderheijden86/impactview/pkg/watcher"
)

// runChat starts the interactive client: chat pane, live gateway and, when
// configured, the NATS mirror.
func runChat(ctx context.Context, a *app) error {
	cell := bus.New[model.PanelData]()
	a.mirror(cell)

	gw := a.gateway()
	conv := a.converter()
	w := a.configWatcher()
	if w != nil {
		defer w.Stop()
	}

	m := ui.NewModel(ui.Options{
		Chat:       chat.New(gw, cell),
		Cell:       cell,
		Panel:      panel.New(conv),
		Exporter:   a.exporter(ctx, conv),
		Session:    a.session,
		Endpoints:  gw,
		Watcher:    w,
		Config:     a.cfg,
		ConfigPath: a.configPath,
	})
	return runProgram(m)
}

// viewerOptions configures a read-only TUI fed by something other than
// the chat pane.
type viewerOptions struct {
	cell         *bus.Cell[model.PanelData]
	title        string
	responsePath string
}

func runViewer(ctx context.Context, a *app, vo viewerOptions) error {
	conv := a.converter()
	paths := []string{a.configPath}
	if vo.responsePath != "" {
		paths = append(paths, vo.responsePath)
	}
	w := a.watch(paths...)
	if w != nil {
		defer w.Stop()
	}

	m := ui.NewModel(ui.Options{
		Cell:         vo.cell,
		Panel:        panel.New(conv),
		Exporter:     a.exporter(ctx, conv),
		Session:      a.session,
		Watcher:      w,
		Config:       a.cfg,
		ConfigPath:   a.configPath,
		ResponsePath: vo.responsePath,
		Title:        vo.title,
	})
	return runProgram(m)
}

func runProgram(m ui.Model) error {
	defer m.Stop()
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	// A response piped on stdin leaves no keyboard there.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func (a *app) configWatcher() *watcher.Watcher {
	return a.watch(a.configPath)
}

// watch starts a watcher on paths. Failures are logged; the TUI then runs
// without live reload.
func (a *app) watch(paths ...string) *watcher.Watcher {
	w, err := watcher.NewWatcher(paths,
		watcher.WithOnError(func(path string, err error) {
			a.logger.Warn("watching file", "path", path, "err", err)
		}),
	)
	if err != nil {
		a.logger.Warn("live reload disabled", "err", err)
		return nil
	}
	if err := w.Start(); err != nil {
		a.logger.Warn("live reload disabled", "err", err)
		return nil
	}
	return w
}
