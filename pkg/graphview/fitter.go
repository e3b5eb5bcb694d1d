package graphview

import (
	"sync"
	"time"

	"github.com/vanderheijden86/impactview/pkg/clock"
	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/metrics"
)

// Fit timing.
const (
	FitDebounce      = 300 * time.Millisecond
	AutoCenterDelay  = 30 * time.Millisecond
	TransitionResume = 16 * time.Millisecond
	LoadRetryEarly   = 120 * time.Millisecond
	LoadRetryLate    = 600 * time.Millisecond
)

// FitState is the Fitter's phase.
type FitState int

const (
	FitIdle FitState = iota
	FitPending
	FitRunning
)

func (s FitState) String() string {
	switch s {
	case FitIdle:
		return "idle"
	case FitPending:
		return "pending"
	case FitRunning:
		return "fitting"
	default:
		return "unknown"
	}
}

// Target is the renderer a Fitter drives.
type Target interface {
	// AutoCenter asks the renderer for its own centering pass.
	AutoCenter()
	// Elements returns the currently rendered elements.
	Elements() []Bounder
	// Viewport returns the container rectangle.
	Viewport() Rect
	// SetTransitions turns animated transitions on or off.
	SetTransitions(enabled bool)
	// ApplyTransform sets the view transform.
	ApplyTransform(t Transform)
}

// Fitter coalesces fit requests and runs the two-phase fit against a
// Target. All timers come from the injected clock.
type Fitter struct {
	clk     clock.Clock
	target  Target
	padding float64

	mu       sync.Mutex
	state    FitState
	stopped  bool
	debounce clock.Timer
	pending  map[uint64]clock.Timer
	nextID   uint64
	fits     int
}

// NewFitter returns an idle fitter.
func NewFitter(clk clock.Clock, target Target, padding float64) *Fitter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Fitter{clk: clk, target: target, padding: padding, pending: make(map[uint64]clock.Timer)}
}

// State returns the current phase.
func (f *Fitter) State() FitState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Fits returns how many fits have started.
func (f *Fitter) Fits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fits
}

// Request schedules a fit FitDebounce after the last request.
func (f *Fitter) Request() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	if f.debounce != nil {
		f.debounce.Stop()
	}
	f.state = FitPending
	f.debounce = f.clk.AfterFunc(FitDebounce, f.run)
}

// Loaded is called once the renderer has data; the view may still be
// settling, so two later fits are requested as well.
func (f *Fitter) Loaded() {
	f.Request()
	f.schedule(LoadRetryEarly, f.Request)
	f.schedule(LoadRetryLate, f.Request)
}

// LayoutSettled is called when the renderer reports its layout is done.
func (f *Fitter) LayoutSettled() { f.Request() }

// Resize is called when the container changes size.
func (f *Fitter) Resize() { f.Request() }

// Stop cancels every pending timer. A stopped Fitter ignores requests.
func (f *Fitter) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.debounce != nil {
		f.debounce.Stop()
		f.debounce = nil
	}
	for id, t := range f.pending {
		t.Stop()
		delete(f.pending, id)
	}
	f.state = FitIdle
}

func (f *Fitter) schedule(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.nextID++
	id := f.nextID
	f.pending[id] = f.clk.AfterFunc(d, func() {
		f.mu.Lock()
		delete(f.pending, id)
		stopped := f.stopped
		f.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Pending returns the number of scheduled follow-up timers, excluding the
// debounce timer.
func (f *Fitter) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// run is phase one: ask the renderer to center, then measure shortly after.
func (f *Fitter) run() {
	f.mu.Lock()
	if f.stopped || f.state != FitPending {
		f.mu.Unlock()
		return
	}
	f.state = FitRunning
	f.fits++
	f.debounce = nil
	f.mu.Unlock()

	debug.Log("fitter: fit #%d", f.Fits())
	f.target.AutoCenter()
	f.schedule(AutoCenterDelay, f.measure)
}

// measure is phase two: bounding box, transform, transitions off then on.
func (f *Fitter) measure() {
	defer metrics.Timer(metrics.Fit)()

	if f.isStopped() {
		return
	}
	box, ok := BoundingBox(f.target.Elements())
	if !ok {
		f.finish()
		return
	}
	tr, ok := FitTransform(box, f.target.Viewport(), f.padding)
	if !ok {
		debug.Log("fitter: degenerate box %+v, skipping", box)
		f.finish()
		return
	}
	f.target.SetTransitions(false)
	f.target.ApplyTransform(tr)
	f.schedule(TransitionResume, func() {
		f.target.SetTransitions(true)
		f.finish()
	})
}

func (f *Fitter) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FitRunning {
		f.state = FitIdle
	}
}

func (f *Fitter) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
