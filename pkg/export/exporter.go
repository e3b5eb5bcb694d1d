package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/hooks"
	"github.com/vanderheijden86/impactview/pkg/metrics"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/panel"
)

const (
	// DefaultSettleDelay is how long an export waits for the panel to
	// finish laying out before it is captured.
	DefaultSettleDelay = 200 * time.Millisecond
	// RasterScale is the pixel density of the PDF raster.
	RasterScale = 2.0
	// planColumns is the wrap width of the test plan text in PDFs.
	planColumns = 96
)

// Result describes one finished export.
type Result struct {
	Target Target
	Format Format
	Paths  []string
	URLs   []string // uploaded locations, when an uploader is set
	Pages  int      // PDF page count
}

// Exporter writes panel contents to files. Concurrent exports of the same
// target and format share one run.
type Exporter struct {
	dir      string
	settle   time.Duration
	conv     panel.Converter
	sanitize bool
	uploader Uploader
	hooks    *hooks.Executor

	group singleflight.Group
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithDir sets the output directory. Default is the working directory.
func WithDir(dir string) Option {
	return func(e *Exporter) { e.dir = dir }
}

// WithSettleDelay overrides DefaultSettleDelay. Zero disables the wait.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Exporter) { e.settle = d }
}

// WithConverter sets the markdown converter used for the test plan.
func WithConverter(c panel.Converter) Option {
	return func(e *Exporter) { e.conv = c }
}

// WithSanitize sanitizes node ids before layout.
func WithSanitize(on bool) Option {
	return func(e *Exporter) { e.sanitize = on }
}

// WithUploader uploads every produced file.
func WithUploader(u Uploader) Option {
	return func(e *Exporter) { e.uploader = u }
}

// WithHooks runs pre-export and post-export hooks around every export.
func WithHooks(h *hooks.Executor) Option {
	return func(e *Exporter) { e.hooks = h }
}

// New returns an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{dir: ".", settle: DefaultSettleDelay}
	for _, opt := range opts {
		opt(e)
	}
	if e.conv == nil {
		e.conv = panel.NewMarkdownConverter("notty")
	}
	return e
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// Request is one export job.
type Request struct {
	Target Target
	Format Format
	// Dir overrides the exporter's directory when set.
	Dir string
	// SkipUpload keeps the files local even when an uploader is set.
	SkipUpload bool
}

// RequestFor converts a dialog choice into a Request.
func RequestFor(c Choice) Request {
	return Request{Target: c.Target, Format: c.Format, Dir: c.Dir, SkipUpload: !c.Upload}
}

// Export captures the region t of data in format f.
func (e *Exporter) Export(ctx context.Context, t Target, f Format, data model.PanelData) (Result, error) {
	return e.Run(ctx, Request{Target: t, Format: f}, data)
}

// Run performs req. Requests for the same target, format and directory
// that overlap share one run.
func (e *Exporter) Run(ctx context.Context, req Request, data model.PanelData) (Result, error) {
	if req.Dir == "" {
		req.Dir = e.dir
	}
	key := string(req.Target) + "/" + string(req.Format) + "@" + filepath.Clean(req.Dir)
	v, err, shared := e.group.Do(key, func() (interface{}, error) {
		return e.export(ctx, req, data)
	})
	if shared {
		debug.Log("export: joined in-flight %s export", key)
	}
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Exporter) export(ctx context.Context, req Request, data model.PanelData) (Result, error) {
	t, f, dir := req.Target, req.Format, req.Dir
	if err := e.wait(ctx); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}
	hc := hooks.ExportContext{Target: string(t), Format: string(f), Dir: dir, Timestamp: time.Now()}
	if err := e.hooks.Run(ctx, hooks.PreExport, hc); err != nil {
		return Result{}, fmt.Errorf("export cancelled: %w", err)
	}

	res := Result{Target: t, Format: f}
	var err error
	switch f {
	case FormatPDF:
		err = e.exportPDF(dir, t, data, &res)
	case FormatHTML:
		err = e.exportHTML(dir, t, data, &res)
	case FormatSVG, FormatPNG:
		err = e.exportImages(ctx, dir, t, f, data, &res)
	default:
		err = fmt.Errorf("%w: format %q", ErrUnknownTarget, f)
	}
	if err != nil {
		return Result{}, err
	}

	if e.uploader != nil && !req.SkipUpload {
		for _, p := range res.Paths {
			body, err := os.ReadFile(p)
			if err != nil {
				return res, err
			}
			url, err := e.uploader.Upload(ctx, filepath.Base(p), body, contentType(f))
			if err != nil {
				return res, err
			}
			res.URLs = append(res.URLs, url)
		}
	}
	debug.Log("export: %s/%s wrote %v", t, f, res.Paths)

	hc.Paths = res.Paths
	if err := e.hooks.Run(ctx, hooks.PostExport, hc); err != nil {
		return res, err
	}
	return res, nil
}

// CanUpload reports whether an uploader is configured.
func (e *Exporter) CanUpload() bool { return e.uploader != nil }

func (e *Exporter) wait(ctx context.Context) error {
	if e.settle <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Exporter) exportPDF(dir string, t Target, data model.PanelData, res *Result) error {
	defer metrics.Timer(metrics.ExportPDF)()

	plan, err := e.planText(data.TestPlan)
	if err != nil {
		return err
	}
	reg := composeRegion(t, data, plan, regionOptions{Sanitize: e.sanitize, FullHeight: true})
	dc := reg.Rasterize(RasterScale)

	var buf bytes.Buffer
	pages, err := writePDF(&buf, dc)
	if err != nil {
		return err
	}
	out := filepath.Join(dir, fileName(t, FormatPDF, 0, 1))
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	res.Paths = []string{out}
	res.Pages = pages
	return nil
}

func (e *Exporter) exportHTML(dir string, t Target, data model.PanelData, res *Result) error {
	doc := htmlDocument{RepoName: data.RepoName}
	if t.includesTitle() {
		doc.Title = "Impact Analysis"
	}
	if t.includesGraphs() {
		for i, g := range data.GraphData {
			if g.IsEmpty() {
				continue
			}
			title := fmt.Sprintf("Impact Graph %d", i+1)
			svg, err := inlineSVG(newSnapshot(g, title, e.sanitize))
			if err != nil {
				return err
			}
			doc.Graphs = append(doc.Graphs, htmlGraph{Title: title, SVG: svg})
		}
	}
	if strings.TrimSpace(data.TestPlan) != "" {
		h, err := e.conv.HTML(data.TestPlan)
		if err != nil {
			return err
		}
		doc.TestPlan = template.HTML(planPolicy.Sanitize(h))
	}

	var buf bytes.Buffer
	if err := writeHTML(&buf, doc); err != nil {
		return err
	}
	out := filepath.Join(dir, fileName(t, FormatHTML, 0, 1))
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	res.Paths = []string{out}
	return nil
}

func (e *Exporter) exportImages(ctx context.Context, dir string, t Target, f Format, data model.PanelData, res *Result) error {
	defer metrics.Timer(metrics.ExportImage)()

	if !t.includesGraphs() {
		return fmt.Errorf("%s export has no graphs: %w", t, model.ErrNoGraphs)
	}
	var graphs []model.GraphResponse
	for _, g := range data.GraphData {
		if !g.IsEmpty() {
			graphs = append(graphs, g)
		}
	}
	if len(graphs) == 0 {
		return model.ErrNoGraphs
	}

	paths := make([]string, len(graphs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, graph := range graphs {
		i, graph := i, graph
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(dir, fileName(t, f, i, len(graphs)))
			err := SaveGraphSnapshot(GraphSnapshotOptions{
				Path:     out,
				Format:   string(f),
				Title:    fmt.Sprintf("Impact Graph %d", i+1),
				Graph:    graph,
				Sanitize: e.sanitize,
			})
			if err != nil {
				return fmt.Errorf("graph %d: %w", i+1, err)
			}
			paths[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	res.Paths = paths
	return nil
}

// planText renders the test plan markdown as plain wrapped text.
func (e *Exporter) planText(md string) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	out, err := e.conv.Terminal(md, planColumns)
	if err != nil {
		return "", fmt.Errorf("render test plan: %w", err)
	}
	return out, nil
}
