// Package chat owns the conversation transcript and turns user prompts into
// panel emissions.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/gateway"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// Fixed transcript strings.
const (
	Greeting        = "Hi, how can I help you today?"
	FallbackMessage = "No impact found in repo."
)

// State is the input state of the component.
type State int

const (
	// StateIdle accepts new input.
	StateIdle State = iota
	// StateAwaiting means at least one request is in flight.
	StateAwaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting-response"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Component is the chat/input component. It is safe for concurrent use;
// overlapping submissions each publish their own result.
type Component struct {
	gw   gateway.Gateway
	cell *bus.Cell[model.PanelData]
	now  func() time.Time

	mu       sync.Mutex
	messages []model.Message
	inflight int
}

// Option configures a Component.
type Option func(*Component)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Component) { c.now = now }
}

// New returns a component whose transcript starts with the greeting.
func New(gw gateway.Gateway, cell *bus.Cell[model.PanelData], opts ...Option) *Component {
	c := &Component{gw: gw, cell: cell, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.messages = []model.Message{{Role: model.RoleAssistant, Text: Greeting, Timestamp: c.now()}}
	return c
}

// Messages returns a copy of the transcript.
func (c *Component) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// State reports whether a request is in flight.
func (c *Component) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight > 0 {
		return StateAwaiting
	}
	return StateIdle
}

// Submit runs one analysis round trip. Blank input is a no-op that returns
// gateway.ErrEmptyPrompt without touching the transcript or the network.
func (c *Component) Submit(ctx context.Context, text string) (model.Message, error) {
	prompt, ok := c.Prepare(text)
	if !ok {
		return model.Message{}, gateway.ErrEmptyPrompt
	}
	return c.Resolve(ctx, prompt)
}

// Prepare records the user's message and enters the awaiting state. It
// returns the trimmed prompt, or false when the input is blank. Every
// successful Prepare must be followed by exactly one Resolve.
func (c *Component) Prepare(text string) (string, bool) {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return "", false
	}
	c.mu.Lock()
	c.messages = append(c.messages, model.Message{Role: model.RoleUser, Text: prompt, Timestamp: c.now()})
	c.inflight++
	c.mu.Unlock()
	return prompt, true
}

// Resolve calls the gateway for a prepared prompt, appends the assistant
// reply, publishes the panel and returns to idle. On failure the fallback
// message is appended and an empty panel is published; the error is
// returned for logging.
func (c *Component) Resolve(ctx context.Context, prompt string) (model.Message, error) {
	defer c.done()

	resp, err := c.gw.Analyze(ctx, prompt)
	if err != nil {
		debug.Log("chat: analysis failed: %v", err)
		msg := c.appendAssistant(FallbackMessage)
		c.cell.Publish(model.EmptyPanel())
		return msg, fmt.Errorf("analyzing prompt: %w", err)
	}

	msg := c.appendAssistant(summarize(resp))
	c.cell.Publish(resp.PanelData())
	return msg, nil
}

// Relay sends text to the plain chat endpoint and appends the reply. The
// panel is left untouched.
func (c *Component) Relay(ctx context.Context, text string) (model.Message, error) {
	prompt, ok := c.Prepare(text)
	if !ok {
		return model.Message{}, gateway.ErrEmptyPrompt
	}
	return c.Answer(ctx, prompt)
}

// Answer is the second half of Relay for a prompt already recorded with
// Prepare.
func (c *Component) Answer(ctx context.Context, prompt string) (model.Message, error) {
	defer c.done()

	reply, err := c.gw.Chat(ctx, prompt)
	if err != nil {
		debug.Log("chat: relay failed: %v", err)
		return c.appendAssistant(FallbackMessage), fmt.Errorf("relaying chat: %w", err)
	}
	return c.appendAssistant(reply), nil
}

// Reset clears the side panel, including the repository name.
func (c *Component) Reset() {
	c.cell.Publish(model.PanelData{GraphData: []model.GraphResponse{}, TestPlan: "", RepoName: ""})
}

func (c *Component) appendAssistant(text string) model.Message {
	msg := model.Message{Role: model.RoleAssistant, Text: text, Timestamp: c.now()}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return msg
}

func (c *Component) done() {
	c.mu.Lock()
	if c.inflight > 0 {
		c.inflight--
	}
	c.mu.Unlock()
}

// summarize picks the assistant's reply for a successful analysis.
func summarize(resp model.PromptResponse) string {
	if msg := strings.TrimSpace(resp.PromptMessage); msg != "" {
		return msg
	}
	if title := strings.TrimSpace(resp.TestPlan.Title); title != "" {
		return title
	}
	n := len(resp.Graphs)
	switch {
	case n == 0 && resp.TestPlan.TestPlan == "":
		return FallbackMessage
	case n == 1:
		return "Found 1 impact graph. See the panel for details."
	default:
		return fmt.Sprintf("Found %d impact graphs. See the panel for details.", n)
	}
}
