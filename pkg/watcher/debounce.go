// Package watcher notifies about changes to a small set of files (the
// config file, a saved response being viewed) using fsnotify, with a
// polling fallback for filesystems where events are unreliable.
package watcher

import (
	"sync"
	"time"

	"github.com/vanderheijden86/impactview/pkg/clock"
)

// DefaultDebounceDuration coalesces the burst of events editors emit for a
// single save.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer runs the most recently triggered callback once the triggers
// have been quiet for its duration.
type Debouncer struct {
	clk      clock.Clock
	duration time.Duration

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewDebouncer returns a debouncer on the real clock. A non-positive
// duration uses DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	return NewDebouncerWithClock(clock.Real{}, d)
}

// NewDebouncerWithClock is NewDebouncer on clk.
func NewDebouncerWithClock(clk clock.Clock, d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{clk: clk, duration: d}
}

// Trigger restarts the quiet window; fn replaces any pending callback.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clk.AfterFunc(d.duration, func() {
		d.mu.Lock()
		current := gen == d.gen
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Duration returns the quiet window.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
