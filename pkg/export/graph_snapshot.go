package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/impactview/pkg/graphview"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// GraphSnapshotOptions controls single-graph image export.
type GraphSnapshotOptions struct {
	Path     string // Output path; format inferred from extension when Format empty
	Format   string // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title    string // Optional title rendered in the summary block
	Graph    model.GraphResponse
	Sanitize bool // Sanitize node ids before layout
}

// SaveGraphSnapshot renders one impact graph as a static SVG or PNG with a
// small summary block and legend.
func SaveGraphSnapshot(opts GraphSnapshotOptions) error {
	if opts.Graph.IsEmpty() {
		return model.ErrNoGraphs
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("%w: format %q (want svg or png)", ErrUnknownTarget, format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	snap := newSnapshot(opts.Graph, opts.Title, opts.Sanitize)
	switch format {
	case "svg":
		f, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		return renderSVGToWriter(f, snap)
	default:
		return renderPNG(snap).SavePNG(opts.Path)
	}
}

// --- layout ----------------------------------------------------------------

const (
	snapshotHeader = 64.0
	snapshotMinW   = 480
	snapshotMinH   = 200
)

type snapshot struct {
	Title    string
	Graph    *graphview.Graph
	Layout   *graphview.Layout
	Width    int
	Height   int
	Header   float64
	Critical int
}

func newSnapshot(resp model.GraphResponse, title string, sanitize bool) snapshot {
	g := graphview.Build(resp, graphview.Options{Sanitize: sanitize, Measurer: graphview.FontMeasurer{Face: basicfont.Face7x13}})
	l := graphview.ComputeLayout(g, graphview.PixelLayout())

	if strings.TrimSpace(title) == "" {
		title = "Impact Graph"
	}
	w := int(l.Width + 0.5)
	if w < snapshotMinW {
		w = snapshotMinW
	}
	h := int(l.Height+snapshotHeader+0.5) + 1
	if h < snapshotMinH {
		h = snapshotMinH
	}
	return snapshot{
		Title:    title,
		Graph:    g,
		Layout:   l,
		Width:    w,
		Height:   h,
		Header:   snapshotHeader,
		Critical: g.CriticalCount(),
	}
}

// --- rendering -------------------------------------------------------------

var (
	colorNodeFill     = color.RGBA{0xed, 0xe7, 0xf6, 0xff}
	colorCriticalFill = color.RGBA{0xff, 0xcd, 0xd2, 0xff}
	colorStroke       = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText         = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle       = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorHeaderBG     = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

func renderPNG(snap snapshot) *gg.Context {
	dc := gg.NewContext(snap.Width, snap.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	drawSnapshot(dc, snap, 0, 0)
	return dc
}

// drawSnapshot draws the summary block and the graph with its top-left
// corner at (x, y).
func drawSnapshot(dc *gg.Context, snap snapshot, x, y float64) {
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(x+8, y+8, float64(snap.Width)-16, snap.Header-16, 8)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(snap.Title, x+20, y+24, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(summaryLine(snap), x+20, y+42, 0, 0.5)
	drawLegend(dc, x+float64(snap.Width)-190, y+18)

	oy := y + snap.Header
	for i, e := range snap.Layout.Edges {
		l := snap.Graph.Links[i]
		dc.SetColor(hexColor(l.Data.Color))
		dc.SetLineWidth(float64(l.Data.Width))
		dc.DrawLine(x+e.X1, oy+e.Y1, x+e.X2, oy+e.Y2)
		dc.Stroke()
		drawArrow(dc, x+e.X2, oy+e.Y2, -8, 0)
		if l.Label != "" {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(l.Label, x+(e.X1+e.X2)/2, oy+(e.Y1+e.Y2)/2-6, 0.5, 0.5)
		}
	}

	for i, b := range snap.Layout.Boxes {
		n := snap.Graph.Nodes[i]
		fill := colorNodeFill
		if n.Data.Critical {
			fill = colorCriticalFill
		}
		dc.SetColor(fill)
		dc.DrawRoundedRectangle(x+b.X, oy+b.Y, b.W, b.H, 6)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1.2)
		dc.DrawRoundedRectangle(x+b.X, oy+b.Y, b.W, b.H, 6)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(n.Label, x+b.X+b.W/2, oy+b.Y+b.H/2, 0.5, 0.5)
	}
}

func drawArrow(dc *gg.Context, x, y, dx, dy float64) {
	dc.NewSubPath()
	dc.MoveTo(x, y)
	dc.LineTo(x+dx, y+dy+4)
	dc.LineTo(x+dx, y+dy-4)
	dc.ClosePath()
	dc.Fill()
}

func drawLegend(dc *gg.Context, x, y float64) {
	drawLegendRow(dc, x, y, hexColor(graphview.CriticalColor), "critical impact")
	drawLegendRow(dc, x, y+16, hexColor(graphview.NormalColor), "dependency")
}

func drawLegendRow(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.SetLineWidth(3)
	dc.DrawLine(x, y, x+20, y)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+28, y, 0, 0.5)
}

func renderSVGToWriter(w io.Writer, snap snapshot) error {
	canvas := svg.New(w)
	canvas.Start(snap.Width, snap.Height)
	canvas.Rect(0, 0, snap.Width, snap.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(8, 8, snap.Width-16, int(snap.Header-16), 8, 8, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(20, 28, snap.Title, fmt.Sprintf("fill:%s;font-size:14px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(20, 46, summaryLine(snap), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	drawLegendSVG(canvas, snap.Width-190, 18)

	oy := int(snap.Header)
	canvas.Gid("links")
	for i, e := range snap.Layout.Edges {
		l := snap.Graph.Links[i]
		x1, y1 := int(e.X1), oy+int(e.Y1)
		x2, y2 := int(e.X2), oy+int(e.Y2)
		canvas.Line(x1, y1, x2, y2,
			fmt.Sprintf("stroke:%s;stroke-width:%d", l.Data.Color, l.Data.Width),
			fmt.Sprintf(`id="link-%s"`, graphview.SanitizeID(l.ID)))
		canvas.Polygon(
			[]int{x2, x2 - 8, x2 - 8},
			[]int{y2, y2 + 4, y2 - 4},
			fmt.Sprintf("fill:%s", l.Data.Color),
		)
		if l.Label != "" {
			canvas.Text((x1+x2)/2, (y1+y2)/2-6, l.Label,
				fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
		}
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for i, b := range snap.Layout.Boxes {
		n := snap.Graph.Nodes[i]
		fill := colorNodeFill
		if n.Data.Critical {
			fill = colorCriticalFill
		}
		x, y := int(b.X), oy+int(b.Y)
		canvas.Roundrect(x, y, int(b.W), int(b.H), 6, 6,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(fill), css(colorStroke)))
		canvas.Text(x+int(b.W)/2, y+int(b.H)/2+4, n.Label,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;text-anchor:middle", css(colorText)))
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func drawLegendSVG(canvas *svg.SVG, x, y int) {
	drawLegendRowSVG(canvas, x, y, graphview.CriticalColor, "critical impact")
	drawLegendRowSVG(canvas, x, y+16, graphview.NormalColor, "dependency")
}

func drawLegendRowSVG(canvas *svg.SVG, x, y int, c, label string) {
	canvas.Line(x, y, x+20, y, fmt.Sprintf("stroke:%s;stroke-width:3", c))
	canvas.Text(x+28, y+4, label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
}

// --- helpers ---------------------------------------------------------------

func summaryLine(snap snapshot) string {
	return fmt.Sprintf("modules: %d  links: %d  critical: %d", len(snap.Graph.Nodes), len(snap.Graph.Links), snap.Critical)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// hexColor parses "#rrggbb"; anything else is black.
func hexColor(s string) color.RGBA {
	var c color.RGBA
	c.A = 0xff
	if len(s) != 7 || s[0] != '#' {
		return c
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return color.RGBA{A: 0xff}
	}
	return c
}
