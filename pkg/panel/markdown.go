package panel

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/vanderheijden86/impactview/pkg/metrics"
)

// Converter turns the markdown test plan into its display forms.
type Converter interface {
	HTML(md string) (string, error)
	Terminal(md string, width int) (string, error)
}

// MarkdownConverter renders HTML with goldmark and terminal text with
// glamour. Terminal renderers are cached per wrap width.
type MarkdownConverter struct {
	md    goldmark.Markdown
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdownConverter returns a converter. style is a glamour standard
// style name ("dark", "light", "notty"); empty picks one from the terminal.
func NewMarkdownConverter(style string) *MarkdownConverter {
	return &MarkdownConverter{
		// Raw HTML in the plan is dropped; it comes from the backend.
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// HTML implements Converter.
func (c *MarkdownConverter) HTML(md string) (string, error) {
	defer metrics.Timer(metrics.MarkdownRender)()

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// Terminal implements Converter.
func (c *MarkdownConverter) Terminal(md string, width int) (string, error) {
	defer metrics.Timer(metrics.MarkdownRender)()

	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.renderer(width)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// renderer must be called with c.mu held.
func (c *MarkdownConverter) renderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}
	if r, ok := c.renderers[width]; ok {
		return r, nil
	}
	styleOpt := glamour.WithAutoStyle()
	if c.style != "" {
		styleOpt = glamour.WithStandardStyle(c.style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	c.renderers[width] = r
	return r, nil
}
