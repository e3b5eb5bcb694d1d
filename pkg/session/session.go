// Package session issues the per-terminal correlation id that is attached
// to every analysis request.
//
// An id looks like "win-" + <random base36> + <unix millis>. It is
// generated once per terminal session, persisted in a session-scoped store
// and reused for the lifetime of that session.
package session

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/vanderheijden86/impactview/pkg/debug"
)

// Prefix is prepended to every generated id.
const Prefix = "win-"

// Alphabet is the base36 character set used for the random portion.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomLength is the number of random characters generated.
const RandomLength = 11

// Generate returns a new id using the current time.
func Generate() (string, error) {
	return GenerateAt(time.Now())
}

// GenerateAt returns a new id stamped with t.
func GenerateAt(t time.Time) (string, error) {
	r, err := nanoid.Generate(Alphabet, RandomLength)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	return Prefix + r + strconv.FormatInt(t.UnixMilli(), 10), nil
}

// Store persists ids per scope.
type Store interface {
	Get(scope string) (id string, ok bool, err error)
	Put(scope, id string) error
	Delete(scope string) error
}

// Provider hands out the id for one scope, creating it on first use.
type Provider struct {
	store Store
	scope string
	now   func() time.Time

	once sync.Once
	mu   sync.Mutex
	id   string
}

// NewProvider returns a provider for scope. An empty scope means there is
// no terminal session to attach to; ID then returns "".
func NewProvider(store Store, scope string) *Provider {
	return &Provider{store: store, scope: scope, now: time.Now}
}

// ID returns the session id, loading or generating it on first call.
// Store failures degrade to an in-memory id for this process.
func (p *Provider) ID() string {
	p.once.Do(p.init)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *Provider) init() {
	if p.scope == "" {
		return
	}
	if p.store != nil {
		saved, ok, err := p.store.Get(p.scope)
		if err != nil {
			debug.Log("session: reading store for %q: %v", p.scope, err)
		} else if ok && saved != "" {
			p.id = saved
			return
		}
	}

	id, err := GenerateAt(p.now())
	if err != nil {
		debug.Log("session: generating id: %v", err)
		return
	}
	p.id = id
	if p.store != nil {
		if err := p.store.Put(p.scope, id); err != nil {
			debug.Log("session: saving id for %q: %v", p.scope, err)
		}
	}
}

// Reset discards the stored id and generates a fresh one.
func (p *Provider) Reset() (string, error) {
	p.once.Do(func() {})
	if p.scope == "" {
		return "", nil
	}
	id, err := GenerateAt(p.now())
	if err != nil {
		return "", err
	}
	if p.store != nil {
		if err := p.store.Delete(p.scope); err != nil {
			return "", fmt.Errorf("clearing session: %w", err)
		}
		if err := p.store.Put(p.scope, id); err != nil {
			return "", fmt.Errorf("saving session: %w", err)
		}
	}
	p.mu.Lock()
	p.id = id
	p.mu.Unlock()
	return id, nil
}

// Scope returns the scope this provider is bound to.
func (p *Provider) Scope() string { return p.scope }

// DetectScope identifies the current terminal session. The first
// non-empty value wins: IMPACTVIEW_SESSION_SCOPE, TERM_SESSION_ID,
// TMUX_PANE, WT_SESSION, then the parent process id.
func DetectScope() string {
	for _, key := range []string{"IMPACTVIEW_SESSION_SCOPE", "TERM_SESSION_ID", "TMUX_PANE", "WT_SESSION"} {
		if v := os.Getenv(key); v != "" {
			return key + ":" + v
		}
	}
	if ppid := os.Getppid(); ppid > 1 {
		return "ppid:" + strconv.Itoa(ppid)
	}
	return ""
}
