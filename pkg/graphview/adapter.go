// Package graphview turns an impact graph from the analysis service into
// the visual form the renderers draw: measured nodes, colored links, hover
// highlighting, a layered layout and viewport fitting.
//
// A Graph is rebuilt wholesale for every GraphResponse; nothing carries over
// between builds.
package graphview

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/impactview/pkg/metrics"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// Link styling.
const (
	CriticalColor = "#e53935"
	NormalColor   = "#7e57c2"
	CriticalWidth = 4
	NormalWidth   = 2
)

// NodeData is the per-node render state.
type NodeData struct {
	Critical  bool
	TextWidth float64
	Hover     bool
	Neighbor  bool
}

// VisualNode is a node ready for rendering.
type VisualNode struct {
	ID    string
	Label string
	Data  NodeData
}

// LinkData is the per-link render state.
type LinkData struct {
	Critical bool
	Color    string
	Width    int
	Hover    bool
}

// VisualLink is a link whose endpoints are both present in the graph.
type VisualLink struct {
	ID     string
	Source string
	Target string
	Label  string
	Data   LinkData
}

// Options controls Build.
type Options struct {
	// Sanitize rewrites ids so they only contain [A-Za-z0-9_-].
	Sanitize bool
	// Measurer computes label widths. Defaults to CellMeasurer.
	Measurer Measurer
}

// Graph is the adapter output for one GraphResponse.
type Graph struct {
	Nodes   []VisualNode
	Links   []VisualLink
	Tooltip Tooltip

	index map[string]int
}

// Build maps resp into visual nodes and links. Links whose endpoints are not
// both present are dropped. When sanitizing causes two node ids to collide
// the first node wins; a repeated source/target pair keeps the first link.
func Build(resp model.GraphResponse, opts Options) *Graph {
	defer metrics.Timer(metrics.GraphBuild)()

	m := opts.Measurer
	if m == nil {
		m = CellMeasurer{}
	}
	id := func(s string) string { return s }
	if opts.Sanitize {
		id = SanitizeID
	}

	g := &Graph{
		Nodes: make([]VisualNode, 0, len(resp.Nodes)),
		Links: make([]VisualLink, 0, len(resp.Links)),
		index: make(map[string]int, len(resp.Nodes)),
	}
	for _, n := range resp.Nodes {
		nid := id(n.ID)
		if _, dup := g.index[nid]; dup {
			continue
		}
		label := n.Label
		if label == "" {
			label = n.ID
		}
		g.index[nid] = len(g.Nodes)
		g.Nodes = append(g.Nodes, VisualNode{
			ID:    nid,
			Label: label,
			Data: NodeData{
				Critical:  n.Critical,
				TextWidth: m.TextWidth(label),
			},
		})
	}

	seen := make(map[[2]string]bool, len(resp.Links))
	used := make(map[string]bool, len(resp.Links))
	for _, l := range resp.Links {
		src, dst := id(l.Source), id(l.Target)
		if _, ok := g.index[src]; !ok {
			continue
		}
		if _, ok := g.index[dst]; !ok {
			continue
		}
		pair := [2]string{src, dst}
		if seen[pair] {
			continue
		}
		seen[pair] = true

		// "a-b"->"c" and "a"->"b-c" share a composite id; later links get
		// a numeric suffix.
		lid := LinkID(src, dst)
		for n := 2; used[lid]; n++ {
			lid = fmt.Sprintf("%s~%d", LinkID(src, dst), n)
		}
		used[lid] = true

		label := l.Label
		if label == "" {
			label = model.DefaultLinkLabel
		}
		g.Links = append(g.Links, VisualLink{
			ID:     lid,
			Source: src,
			Target: dst,
			Label:  label,
			Data:   linkStyle(l.Critical),
		})
	}
	return g
}

func linkStyle(critical bool) LinkData {
	if critical {
		return LinkData{Critical: true, Color: CriticalColor, Width: CriticalWidth}
	}
	return LinkData{Color: NormalColor, Width: NormalWidth}
}

// LinkID is the composite id of a link.
func LinkID(source, target string) string {
	return source + "-" + target
}

// SanitizeID replaces every character outside [A-Za-z0-9_-] with '_'.
func SanitizeID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isIDRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isIDRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// Node returns the node with id.
func (g *Graph) Node(id string) (VisualNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return VisualNode{}, false
	}
	return g.Nodes[i], true
}

// Has reports whether id is a node of g.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// IsEmpty reports whether there is nothing to draw.
func (g *Graph) IsEmpty() bool {
	return g == nil || len(g.Nodes) == 0
}

// CriticalCount returns the number of critical links.
func (g *Graph) CriticalCount() int {
	n := 0
	for _, l := range g.Links {
		if l.Data.Critical {
			n++
		}
	}
	return n
}
