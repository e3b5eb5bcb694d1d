package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/impactview/pkg/debug"
)

// Result records one hook run.
type Result struct {
	Hook     string
	Phase    Phase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

// Executor runs the hooks of a Config. It is safe for concurrent use.
type Executor struct {
	cfg *Config

	mu      sync.Mutex
	results []Result
}

// NewExecutor returns an Executor for cfg. A nil or empty cfg runs nothing.
func NewExecutor(cfg *Config) *Executor {
	return &Executor{cfg: cfg}
}

// Run executes every hook of phase in order. It stops at the first failing
// hook whose policy is fail and returns its error; failures of continue
// hooks are only recorded.
func (e *Executor) Run(ctx context.Context, phase Phase, ec ExportContext) error {
	if e == nil {
		return nil
	}
	for _, h := range e.cfg.For(phase) {
		res := e.runOne(ctx, phase, h, ec)
		e.mu.Lock()
		e.results = append(e.results, res)
		e.mu.Unlock()

		if res.Success {
			continue
		}
		debug.Log("hooks: %s %q failed: %v", phase, h.Name, res.Err)
		if h.OnError == OnErrorFail {
			return fmt.Errorf("%s hook %q: %w", phase, h.Name, res.Err)
		}
	}
	return nil
}

// Results returns a copy of every run so far.
func (e *Executor) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Summary is a one-line-per-hook report of the runs so far.
func (e *Executor) Summary() string {
	var b strings.Builder
	for _, r := range e.Results() {
		mark := "ok"
		if !r.Success {
			mark = "FAILED"
		}
		fmt.Fprintf(&b, "%s %s: %s (%s)\n", r.Phase, r.Hook, mark, r.Duration.Round(time.Millisecond))
	}
	return b.String()
}

func (e *Executor) runOne(ctx context.Context, phase Phase, h Hook, ec ExportContext) Result {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	exportEnv := ec.Env()
	lookup := envLookup(exportEnv)

	cmd := shellCommand(ctx, h.Command)
	cmd.Env = append(os.Environ(), exportEnv...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.Expand(v, lookup))
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Hook:     h.Name,
		Phase:    phase,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Err = fmt.Errorf("timed out after %s", h.Timeout)
	case err != nil && res.Stderr != "":
		res.Err = fmt.Errorf("%w: %s", err, res.Stderr)
	case err != nil:
		res.Err = err
	default:
		res.Success = true
	}
	return res
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// envLookup resolves from extra first, then the process environment.
func envLookup(extra []string) func(string) string {
	m := make(map[string]string, len(extra))
	for _, kv := range extra {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return func(key string) string {
		if v, ok := m[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
}
