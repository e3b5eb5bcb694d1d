package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/impactview/pkg/clock"
	"github.com/vanderheijden86/impactview/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("no files to watch")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the path that changed.
func WithOnChange(fn func(path string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(path string, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithClock drives debouncing from clk.
func WithClock(clk clock.Clock) WatcherOption {
	return func(w *Watcher) {
		w.clk = clk
	}
}

type fileState struct {
	mtime     time.Time
	size      int64
	debouncer *Debouncer
}

// Watcher monitors files for changes using fsnotify with polling fallback.
// Each file is debounced on its own.
type Watcher struct {
	paths            []string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func(string)
	onError          func(string, error)
	forcePoll        bool
	clk              clock.Clock

	fsWatcher   *fsnotify.Watcher
	useFallback bool
	files       map[string]*fileState

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan string
}

// NewWatcher creates a watcher for paths. Files need not exist yet.
func NewWatcher(paths []string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func(string) {},
		onError:          func(string, error) {},
		clk:              clock.Real{},
		files:            make(map[string]*fileState),
		changeCh:         make(chan string, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if _, dup := w.files[abs]; dup {
			continue
		}
		w.paths = append(w.paths, abs)
		w.files[abs] = &fileState{debouncer: NewDebouncerWithClock(w.clk, w.debounceDuration)}
	}
	if len(w.paths) == 0 {
		return nil, ErrNoPaths
	}
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.useFallback = w.forcePoll || envBool("IMPACTVIEW_FORCE_POLL")

	for _, p := range w.paths {
		st := w.files[p]
		info, err := os.Stat(p)
		if err != nil {
			if os.IsPermission(err) {
				return ErrPermission
			}
			// File might not exist yet, that's okay
			st.mtime, st.size = time.Time{}, 0
			continue
		}
		st.mtime, st.size = info.ModTime(), info.Size()
	}

	if !w.useFallback {
		if err := w.startFsnotify(); err != nil {
			debug.Log("watcher: fsnotify unavailable, polling: %v", err)
			w.useFallback = true
		}
	}
	if w.useFallback {
		go w.watchPolling()
	}

	w.started = true
	return nil
}

// startFsnotify watches every parent directory, which survives editors
// that save by renaming over the file. Must be called with w.mu held.
func (w *Watcher) startFsnotify() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
		dirs[dir] = true
	}
	w.fsWatcher = fsw
	go w.watchFsnotify(fsw.Events, fsw.Errors)
	return nil
}

// Stop stops watching. The change channel stays open so a pending
// receiver never sees a spurious zero value.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	for _, st := range w.files {
		st.debouncer.Cancel()
	}
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives the path of a changed file. Only the latest change is
// buffered.
func (w *Watcher) Changed() <-chan string {
	return w.changeCh
}

// Paths returns the watched files as absolute paths.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) watchFsnotify(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if _, watched := w.files[path]; !watched {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(path, ErrFileRemoved)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.trigger(path)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError("", err)
		}
	}
}

func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for _, p := range w.paths {
				w.poll(p)
			}
		}
	}
}

func (w *Watcher) poll(path string) {
	info, err := os.Stat(path)
	w.mu.Lock()
	st := w.files[path]
	if err != nil {
		hadFile := !st.mtime.IsZero()
		st.mtime, st.size = time.Time{}, 0
		w.mu.Unlock()
		switch {
		case os.IsNotExist(err):
			if hadFile {
				w.onError(path, ErrFileRemoved)
			}
		case os.IsPermission(err):
			w.onError(path, ErrPermission)
		default:
			w.onError(path, err)
		}
		return
	}
	changed := info.ModTime().After(st.mtime) || info.Size() != st.size
	if changed {
		st.mtime, st.size = info.ModTime(), info.Size()
	}
	w.mu.Unlock()

	if changed {
		w.trigger(path)
	}
}

func (w *Watcher) trigger(path string) {
	w.files[path].debouncer.Trigger(func() { w.notifyChange(path) })
}

func (w *Watcher) notifyChange(path string) {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	debug.Log("watcher: %s changed", path)
	w.onChange(path)

	select {
	case w.changeCh <- path:
	default:
	}
}
