package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/impactview/pkg/analysis"
	"github.com/vanderheijden86/impactview/pkg/clock"
	"github.com/vanderheijden86/impactview/pkg/graphview"
	"github.com/vanderheijden86/impactview/pkg/metrics"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// pixelsPerCell converts the configured fit padding (pixels) to cells.
const pixelsPerCell = 10

// graphTarget is the terminal renderer driven by the Fitter. Fitter
// timers call it from their own goroutines; applied transforms are
// announced on fitted so the update loop can redraw.
type graphTarget struct {
	mu          sync.Mutex
	layout      *graphview.Layout
	width       int
	height      int
	offX, offY  float64
	zoom        float64
	transitions bool
	centers     int
	fitted      chan struct{}
}

func newGraphTarget() *graphTarget {
	return &graphTarget{zoom: 1, transitions: true, fitted: make(chan struct{}, 1)}
}

func (t *graphTarget) setLayout(l *graphview.Layout) {
	t.mu.Lock()
	t.layout = l
	t.offX, t.offY, t.zoom = 0, 0, 1
	t.mu.Unlock()
}

func (t *graphTarget) setSize(w, h int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.width == w && t.height == h {
		return false
	}
	t.width, t.height = w, h
	return true
}

// AutoCenter implements graphview.Target: center the layout at its
// natural size.
func (t *graphTarget) AutoCenter() {
	t.mu.Lock()
	if t.layout != nil {
		t.offX = math.Max(0, math.Floor((float64(t.width)-t.layout.Width)/2))
		t.offY = math.Max(0, math.Floor((float64(t.height)-t.layout.Height)/2))
		t.centers++
	}
	t.mu.Unlock()
	t.notify()
}

// Elements implements graphview.Target.
func (t *graphTarget) Elements() []graphview.Bounder {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.layout == nil {
		return nil
	}
	return t.layout.Elements()
}

// Viewport implements graphview.Target.
func (t *graphTarget) Viewport() graphview.Rect {
	t.mu.Lock()
	defer t.mu.Unlock()
	return graphview.Rect{W: float64(t.width), H: float64(t.height)}
}

// SetTransitions implements graphview.Target.
func (t *graphTarget) SetTransitions(enabled bool) {
	t.mu.Lock()
	t.transitions = enabled
	t.mu.Unlock()
}

// ApplyTransform implements graphview.Target. Glyphs cannot be scaled, so
// the content keeps its natural size and is moved to where the scaled
// content's center would land. Content larger than the viewport is pinned
// to the top-left instead. The scale is kept for display.
func (t *graphTarget) ApplyTransform(tr graphview.Transform) {
	t.mu.Lock()
	if t.layout != nil {
		box, ok := graphview.BoundingBox(t.layout.Elements())
		if ok {
			cx, cy := box.X+box.W/2, box.Y+box.H/2
			mx, my := tr.Apply(cx, cy)
			t.offX, t.offY = math.Round(mx-cx), math.Round(my-cy)
			if box.W > float64(t.width) {
				t.offX = -box.X
			}
			if box.H > float64(t.height) {
				t.offY = -box.Y
			}
		}
		t.zoom = tr.Scale
	}
	t.mu.Unlock()
	t.notify()
}

func (t *graphTarget) pan(dx, dy float64) {
	t.mu.Lock()
	t.offX += dx
	t.offY += dy
	t.mu.Unlock()
}

func (t *graphTarget) view() (offX, offY, zoom float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offX, t.offY, t.zoom
}

func (t *graphTarget) notify() {
	select {
	case t.fitted <- struct{}{}:
	default:
	}
}

// graphPane shows the selected impact graph as boxes and connectors.
type graphPane struct {
	theme    Theme
	sanitize bool

	graph  *graphview.Graph
	layout *graphview.Layout
	report analysis.Report
	target *graphTarget
	fitter *graphview.Fitter

	hoverIdx int
	width    int
	height   int
}

func newGraphPane(theme Theme, clk clock.Clock, fitPadding float64, sanitize bool) *graphPane {
	target := newGraphTarget()
	pad := math.Max(1, math.Round(fitPadding/pixelsPerCell))
	return &graphPane{
		theme:    theme,
		sanitize: sanitize,
		target:   target,
		fitter:   graphview.NewFitter(clk, target, pad),
		hoverIdx: -1,
	}
}

// SetGraph rebuilds the view for resp. ok=false clears it.
func (g *graphPane) SetGraph(resp model.GraphResponse, ok bool) {
	g.hoverIdx = -1
	if !ok {
		g.graph, g.layout = nil, nil
		g.report = analysis.Report{}
		g.target.setLayout(nil)
		return
	}
	g.graph = graphview.Build(resp, graphview.Options{Sanitize: g.sanitize, Measurer: graphview.CellMeasurer{}})
	done := metrics.Timer(metrics.GraphLayout)
	g.layout = graphview.ComputeLayout(g.graph, graphview.CellLayout())
	done()
	g.report = analysis.Analyze(g.graph)
	g.target.setLayout(g.layout)
	if g.graph.IsEmpty() {
		return
	}
	// Layout is synchronous, so it has settled by now; both requests
	// coalesce into one debounced fit.
	g.fitter.LayoutSettled()
	g.fitter.Loaded()
}

// SetSize changes the drawing area and requests a fit when it changed.
func (g *graphPane) SetSize(w, h int) {
	g.width, g.height = w, h
	if g.target.setSize(w, h) && g.graph != nil && !g.graph.IsEmpty() {
		g.fitter.Resize()
	}
}

// Fit requests a debounced fit.
func (g *graphPane) Fit() {
	if g.graph != nil && !g.graph.IsEmpty() {
		g.fitter.Request()
	}
}

// Stop cancels pending fit timers.
func (g *graphPane) Stop() { g.fitter.Stop() }

// Fitted delivers a value after every applied transform or auto-center.
func (g *graphPane) Fitted() <-chan struct{} { return g.target.fitted }

// Pan moves the content.
func (g *graphPane) Pan(dx, dy int) {
	g.target.pan(float64(dx), float64(dy))
	if g.hoverIdx >= 0 {
		g.hoverNode(g.hoverIdx)
	}
}

// HoverNext moves the keyboard hover by delta nodes, wrapping around.
func (g *graphPane) HoverNext(delta int) {
	if g.graph == nil || len(g.graph.Nodes) == 0 {
		return
	}
	n := len(g.graph.Nodes)
	next := 0
	if g.hoverIdx >= 0 {
		next = ((g.hoverIdx+delta)%n + n) % n
	} else if delta < 0 {
		next = n - 1
	}
	g.hoverNode(next)
}

// HoverAt hovers the node under pane coordinates (x, y), or leaves when
// there is none.
func (g *graphPane) HoverAt(x, y int) {
	if g.graph == nil || g.layout == nil {
		return
	}
	offX, offY, _ := g.target.view()
	for i, b := range g.layout.Boxes {
		bx, by := int(b.X+offX), int(b.Y+offY)
		if x >= bx && x < bx+int(b.W) && y >= by && y < by+int(b.H) {
			if i != g.hoverIdx {
				g.hoverNode(i)
			}
			return
		}
	}
	g.Leave()
}

// Leave clears the hover state.
func (g *graphPane) Leave() {
	g.hoverIdx = -1
	if g.graph != nil {
		g.graph.Leave()
	}
}

// Hovered returns the hovered node id.
func (g *graphPane) Hovered() (string, bool) {
	if g.graph == nil {
		return "", false
	}
	return g.graph.Hovered()
}

func (g *graphPane) hoverNode(i int) {
	g.hoverIdx = i
	b := g.layout.Boxes[i]
	offX, offY, _ := g.target.view()
	g.graph.Hover(b.ID, b.X+offX, b.Y+offY+b.H)
}

func (g *graphPane) criticalCount() int {
	if g.graph == nil {
		return 0
	}
	return g.graph.CriticalCount()
}

// Status summarizes the graph for the pane header.
func (g *graphPane) Status() string {
	if g.graph == nil {
		return "no graph"
	}
	_, _, zoom := g.target.view()
	parts := []string{
		fmt.Sprintf("%d modules", len(g.graph.Nodes)),
		fmt.Sprintf("%d links", len(g.graph.Links)),
	}
	if id, ok := g.graph.Hovered(); ok {
		if sc, ok := g.report.Score(id); ok {
			parts = append(parts, fmt.Sprintf("%s reaches %d", id, sc.Reach))
		}
	}
	if n := len(g.report.Cycles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d cycle(s)", n))
	}
	if zoom > 0 && zoom < 0.995 {
		parts = append(parts, fmt.Sprintf("fits at %.0f%%", zoom*100))
	}
	if st := g.fitter.State(); st != graphview.FitIdle {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, " · ")
}

// View draws the graph into a width x height block.
func (g *graphPane) View() string {
	t := g.theme
	if g.width <= 0 || g.height <= 0 {
		return ""
	}
	if g.graph == nil || g.graph.IsEmpty() {
		return t.Renderer.NewStyle().
			Width(g.width).
			Height(g.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(t.Secondary).
			Render("No impacted modules")
	}

	offX, offY, _ := g.target.view()
	c := newCanvas(g.width, g.height)
	ox, oy := int(offX), int(offY)

	// Connectors first so boxes cover any overlap.
	type arrow struct{ x, y, style int }
	var arrows []arrow
	for i, e := range g.layout.Edges {
		l := g.graph.Links[i]
		st := c.addStyle(t.LinkStyle(l.Data))
		x1, y1 := int(e.X1)+ox, int(math.Floor(e.Y1))+oy
		x2, y2 := int(e.X2)+ox-1, int(math.Floor(e.Y2))+oy
		mid := (x1 + x2) / 2
		if x2 < x1 {
			mid = x1
		}
		c.hline(x1, mid, y1, st)
		c.vline(mid, y1, y2, st)
		c.hline(mid, x2, y2, st)
		arrows = append(arrows, arrow{x2, y2, st})
		if l.Data.Hover && y1 != y2 {
			c.text(mid+1, (y1+y2)/2, l.Label, st)
		} else if l.Data.Hover {
			c.text(mid-len(l.Label)/2, y1-1, l.Label, st)
		}
	}

	for i, b := range g.layout.Boxes {
		n := g.graph.Nodes[i]
		st := c.addStyle(t.NodeStyle(n.Data))
		x, y := int(b.X)+ox, int(b.Y)+oy
		c.box(x, y, int(b.W), int(b.H), st)
		if n.Data.Critical {
			c.set(x+1, y+int(b.H)/2, '!', st)
		}
		c.text(x+int(graphview.CellLayout().PadX), y+int(b.H)/2, n.Label, st)
	}
	for _, a := range arrows {
		c.set(a.x, a.y, '▸', a.style)
	}

	if tip := g.graph.Tooltip; tip.Visible {
		text := " " + truncate(tip.Text, g.width-2) + " "
		x := clamp(int(tip.X), 0, max(0, g.width-runewidth.StringWidth(text)))
		y := int(tip.Y)
		if y >= g.height {
			y = g.height - 1
		}
		c.text(x, y, text, c.addStyle(t.Tooltip))
	}
	return c.String()
}
