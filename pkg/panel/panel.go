// Package panel is the side panel: it follows the panel bus, keeps the
// current graphs and test plan, and converts the markdown test plan for
// display.
//
// Every emission replaces the panel contents wholesale. Markdown
// conversion always happens off the caller's goroutine and its result is
// tagged with the emission's sequence number, so a slow conversion for an
// old emission can never overwrite a newer one.
package panel

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// Rendered is the result of converting one emission's test plan.
type Rendered struct {
	Seq      uint64
	HTML     string
	Terminal string
	Err      error
}

// Snapshot is a consistent copy of the panel state.
type Snapshot struct {
	Seq      uint64
	Data     model.PanelData
	Selected int // index into Data.GraphData, -1 when there are no graphs
	// Open reports whether any emission has arrived. The panel opens on
	// the first emission and stays open.
	Open bool
	// Converting is true until the current emission's markdown is ready.
	Converting bool
	HTML       string
	Terminal   string
	RenderErr  error
}

// SelectedGraph returns the selected graph.
func (s Snapshot) SelectedGraph() (model.GraphResponse, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Data.GraphData) {
		return model.GraphResponse{}, false
	}
	return s.Data.GraphData[s.Selected], true
}

// Panel holds the side panel state. It is safe for concurrent use.
type Panel struct {
	conv  Converter
	width int

	mu       sync.Mutex
	snap     Snapshot
	onChange func(Snapshot)
}

// Option configures a Panel.
type Option func(*Panel)

// WithWidth sets the wrap width for terminal rendering.
func WithWidth(w int) Option {
	return func(p *Panel) { p.width = w }
}

// WithOnChange registers a callback run after every state change.
func WithOnChange(fn func(Snapshot)) Option {
	return func(p *Panel) { p.onChange = fn }
}

// New returns an empty, closed panel.
func New(conv Converter, opts ...Option) *Panel {
	p := &Panel{conv: conv, width: 80, snap: Snapshot{Selected: -1, Data: model.EmptyPanel()}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Apply installs an emission and returns the markdown to convert. The
// first graph is selected. The caller must hand the result of Convert back
// through Deliver.
func (p *Panel) Apply(u bus.Update[model.PanelData]) string {
	data := u.Value
	if data.GraphData == nil {
		data.GraphData = []model.GraphResponse{}
	}
	sel := -1
	if len(data.GraphData) > 0 {
		sel = 0
	}

	p.mu.Lock()
	p.snap = Snapshot{
		Seq:        u.Seq,
		Data:       data,
		Selected:   sel,
		Open:       true,
		Converting: true,
	}
	snap := p.snap
	p.mu.Unlock()

	debug.Log("panel: emission %d with %d graph(s), %d byte test plan", u.Seq, len(data.GraphData), len(data.TestPlan))
	p.notify(snap)
	return data.TestPlan
}

// Convert renders md for emission seq. It blocks and is meant to run on a
// worker goroutine.
func (p *Panel) Convert(seq uint64, md string) Rendered {
	r := Rendered{Seq: seq}
	if md == "" {
		return r
	}
	html, err := p.conv.HTML(md)
	if err != nil {
		r.Err = err
		return r
	}
	term, err := p.conv.Terminal(md, p.Width())
	if err != nil {
		r.Err = err
	}
	r.HTML, r.Terminal = html, term
	return r
}

// Deliver installs a conversion result. Results for anything but the
// current emission are discarded; the return value reports whether r was
// applied.
func (p *Panel) Deliver(r Rendered) bool {
	p.mu.Lock()
	if r.Seq != p.snap.Seq {
		p.mu.Unlock()
		debug.Log("panel: dropping stale render %d (current %d)", r.Seq, p.snap.Seq)
		return false
	}
	p.snap.HTML = r.HTML
	p.snap.Terminal = r.Terminal
	p.snap.RenderErr = r.Err
	p.snap.Converting = false
	snap := p.snap
	p.mu.Unlock()

	p.notify(snap)
	return true
}

// Select changes the selected graph.
func (p *Panel) Select(i int) error {
	p.mu.Lock()
	n := len(p.snap.Data.GraphData)
	if n == 0 {
		p.mu.Unlock()
		return model.ErrNoGraphs
	}
	if i < 0 || i >= n {
		p.mu.Unlock()
		return fmt.Errorf("graph %d out of range [0,%d)", i, n)
	}
	p.snap.Selected = i
	snap := p.snap
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

// Cycle moves the selection by delta, wrapping around.
func (p *Panel) Cycle(delta int) error {
	p.mu.Lock()
	n := len(p.snap.Data.GraphData)
	cur := p.snap.Selected
	p.mu.Unlock()
	if n == 0 {
		return model.ErrNoGraphs
	}
	return p.Select(((cur+delta)%n + n) % n)
}

// SetWidth changes the terminal wrap width used by later conversions.
func (p *Panel) SetWidth(w int) {
	p.mu.Lock()
	p.width = w
	p.mu.Unlock()
}

// Width returns the terminal wrap width.
func (p *Panel) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width
}

// Run follows cell until ctx is done, converting each emission on its own
// goroutine.
func (p *Panel) Run(ctx context.Context, cell *bus.Cell[model.PanelData]) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for u := range cell.Subscribe(ctx) {
		md := p.Apply(u)
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			p.Deliver(p.Convert(seq, md))
		}(u.Seq)
	}
}

func (p *Panel) notify(s Snapshot) {
	if p.onChange != nil {
		p.onChange(s)
	}
}
