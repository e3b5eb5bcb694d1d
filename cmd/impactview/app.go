package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/config"
	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/export"
	"github.com/vanderheijden86/impactview/pkg/gateway"
	"github.com/vanderheijden86/impactview/pkg/hooks"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/panel"
	"github.com/vanderheijden86/impactview/pkg/session"
)

// app is the state every command shares: config, logger and session.
type app struct {
	cfg        config.Config
	configPath string
	logger     *slog.Logger
	session    *session.Provider
	noHooks    bool

	closers []io.Closer
}

func newApp(path string) (*app, error) {
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, configPath: path, noHooks: noHooks}
	a.logger = a.newLogger()

	var store session.Store
	if dir := config.StateDir(); dir != "" {
		s, err := session.OpenSQLiteStore(filepath.Join(dir, "session.db"))
		if err != nil {
			a.logger.Warn("session store unavailable, ids last for this process only", "err", err)
			store = session.NewMemoryStore()
		} else {
			a.closers = append(a.closers, s)
			store = s
		}
	}
	a.session = session.NewProvider(store, session.DetectScope())
	return a, nil
}

// newLogger writes to stderr when stdout is redirected. On a terminal the
// log goes to impactview.log in the state dir so it cannot tear the TUI.
func (a *app) newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug.Enabled() {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if stdoutIsTerminal() {
		w = io.Discard
		if dir := config.StateDir(); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err == nil {
				if f, err := os.OpenFile(filepath.Join(dir, "impactview.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
					a.closers = append(a.closers, f)
					w = f
				}
			}
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Close releases everything the app opened.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) gateway() *gateway.HTTPClient {
	b := a.cfg.Backend
	return gateway.NewHTTPClient(b.AnalyzeURL, b.ChatURL,
		gateway.WithSessionID(a.session.ID),
		gateway.WithTimeout(b.Timeout.D()),
		gateway.WithRateLimit(b.RateLimit, 2),
	)
}

func (a *app) converter() *panel.MarkdownConverter {
	return panel.NewMarkdownConverter(a.cfg.UI.Style)
}

// exporter builds the exporter, with S3 uploads when export.s3 is set. An
// unusable S3 config is logged and exports stay local.
func (a *app) exporter(ctx context.Context, conv panel.Converter) *export.Exporter {
	e := a.cfg.Export
	opts := []export.Option{
		export.WithDir(e.Dir),
		export.WithSettleDelay(e.SettleDelay.D()),
		export.WithSanitize(a.cfg.Graph.SanitizeIDs),
		export.WithConverter(conv),
	}
	if e.S3.Enabled() {
		up, err := export.NewS3Uploader(ctx, export.S3Config{
			Bucket:   e.S3.Bucket,
			Region:   e.S3.Region,
			Endpoint: e.S3.Endpoint,
			Prefix:   e.S3.Prefix,
		})
		if err != nil {
			a.logger.Warn("s3 uploads disabled", "bucket", e.S3.Bucket, "err", err)
		} else {
			opts = append(opts, export.WithUploader(up))
		}
	}
	if !a.noHooks {
		cfg, warnings, err := hooks.Load(filepath.Dir(a.configPath))
		for _, w := range warnings {
			a.logger.Warn("hooks", "warning", w)
		}
		switch {
		case err != nil:
			a.logger.Warn("export hooks disabled", "err", err)
		case !cfg.Empty():
			opts = append(opts, export.WithHooks(hooks.NewExecutor(cfg)))
		}
	}
	return export.New(opts...)
}

// mirror attaches the NATS panel mirror to cell when nats.url is set. It
// returns nil when mirroring is off.
func (a *app) mirror(cell *bus.Cell[model.PanelData]) *bus.Mirror {
	url := a.cfg.NATS.URL
	if url == "" {
		return nil
	}
	m, err := bus.NewMirror(url, a.logger)
	if err != nil {
		a.logger.Warn("panel mirror disabled", "url", url, "err", err)
		return nil
	}
	a.closers = append(a.closers, m)
	m.Attach(cell, a.session.ID)
	a.logger.Info("mirroring panel", "subject", bus.Subject(a.session.ID()))
	return m
}

func (a *app) follower() (*bus.Mirror, error) {
	url := a.cfg.NATS.URL
	if url == "" {
		return nil, fmt.Errorf("nats.url is not configured (set it in %s or IMPACTVIEW_NATS_URL)", a.configPath)
	}
	m, err := bus.NewMirror(url, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, m)
	return m, nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// isTerminal reports whether r is a terminal file.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the stdout width, or fallback when stdout is not a
// terminal.
func terminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}
