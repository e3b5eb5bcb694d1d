package export

import (
	"fmt"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/impactview/pkg/model"
)

const (
	regionMargin     = 24.0
	regionTitleH     = 56.0
	regionGap        = 16.0
	regionLineH      = 16.0
	regionPlanHeader = 28.0
	regionMinWidth   = 640
	regionMaxCols    = 120
)

// region is the printable part of the panel. Height is the full content
// height when fullHeight is set and the visible height otherwise.
type region struct {
	title      string
	subtitle   string
	graphs     []snapshot
	plan       []string
	width      int
	content    float64
	clip       float64
	fullHeight bool
}

type regionOptions struct {
	Sanitize bool
	// FullHeight lays the region out at its content height. Without it the
	// region is clipped to Clip, the way the panel looks on screen.
	FullHeight bool
	Clip       float64
}

// composeRegion lays out the part of data that t selects. plan is the test
// plan already converted to plain text.
func composeRegion(t Target, data model.PanelData, plan string, opts regionOptions) *region {
	r := &region{fullHeight: opts.FullHeight, clip: opts.Clip, width: regionMinWidth}

	y := regionMargin
	if t.includesTitle() {
		r.title = "Impact Analysis"
		if data.RepoName != "" {
			r.subtitle = "Repository: " + data.RepoName
		}
		y += regionTitleH
	}

	if t.includesGraphs() {
		for i, g := range data.GraphData {
			if g.IsEmpty() {
				continue
			}
			s := newSnapshot(g, fmt.Sprintf("Impact Graph %d", i+1), opts.Sanitize)
			r.graphs = append(r.graphs, s)
			if w := s.Width + int(2*regionMargin); w > r.width {
				r.width = w
			}
			y += float64(s.Height) + regionGap
		}
	}

	plan = strings.TrimSpace(plan)
	if plan == "" {
		plan = "No test plan."
	}
	for _, line := range strings.Split(plan, "\n") {
		r.plan = append(r.plan, truncate(strings.TrimRight(line, " "), regionMaxCols))
	}
	y += regionPlanHeader + float64(len(r.plan))*regionLineH

	r.content = y + regionMargin
	return r
}

// Height is the logical height in points.
func (r *region) Height() float64 {
	if r.fullHeight || r.clip <= 0 || r.clip >= r.content {
		return r.content
	}
	return r.clip
}

// Rasterize draws the region at the given pixel density.
func (r *region) Rasterize(scale float64) *gg.Context {
	if scale <= 0 {
		scale = 1
	}
	w := int(float64(r.width)*scale + 0.5)
	h := int(r.Height()*scale + 0.5)
	dc := gg.NewContext(w, h)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.Scale(scale, scale)
	dc.SetFontFace(basicfont.Face7x13)

	y := regionMargin
	if r.title != "" {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(r.title, regionMargin, y+12, 0, 0.5)
		if r.subtitle != "" {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(r.subtitle, regionMargin, y+30, 0, 0.5)
		}
		dc.SetColor(colorHeaderBG)
		dc.SetLineWidth(1)
		dc.DrawLine(regionMargin, y+44, float64(r.width)-regionMargin, y+44)
		dc.Stroke()
		y += regionTitleH
	}

	for _, s := range r.graphs {
		drawSnapshot(dc, s, regionMargin, y)
		y += float64(s.Height) + regionGap
	}

	dc.SetColor(colorText)
	dc.DrawStringAnchored("Test Plan", regionMargin, y+10, 0, 0.5)
	y += regionPlanHeader
	dc.SetColor(colorText)
	for _, line := range r.plan {
		dc.DrawStringAnchored(line, regionMargin, y+regionLineH/2, 0, 0.5)
		y += regionLineH
	}
	return dc
}
