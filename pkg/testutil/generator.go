// Package testutil provides test fixture generators for impact graph
// topologies. All generators produce deterministic output for reproducible
// tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/impactview/pkg/model"
)

// GraphFixture represents an abstract graph for testing graph algorithms.
type GraphFixture struct {
	Description string     `json:"description"`
	Nodes       []string   `json:"nodes"`
	Edges       [][2]int   `json:"edges"` // [from_idx, to_idx]
	Properties  Properties `json:"properties,omitempty"`
}

// Properties holds optional metadata about the fixture.
type Properties struct {
	HasCycles     bool `json:"has_cycles,omitempty"`
	IsConnected   bool `json:"is_connected,omitempty"`
	ExpectedDepth int  `json:"expected_depth,omitempty"`
}

// GeneratorConfig controls response generation.
type GeneratorConfig struct {
	Seed         int64   // Random seed for determinism
	IDPrefix     string  // Prefix for module ids (default: "mod")
	CriticalRate float64 // Fraction of nodes and links marked critical
	Labels       bool    // Give links a label instead of relying on the default
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42, // Deterministic
		IDPrefix: "mod",
	}
}

// Generator creates test fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "mod"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// ============================================================================
// Graph Topology Generators
// ============================================================================

// Chain creates a linear chain n0 -> n1 -> ... -> n{size-1}.
// Properties: DAG, depth = size-1, single path
func (g *Generator) Chain(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, 0, size)
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		if i > 0 {
			edges = append(edges, [2]int{i - 1, i})
		}
	}
	depth := size - 1
	if depth < 0 {
		depth = 0
	}
	return GraphFixture{
		Description: fmt.Sprintf("Linear chain of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: depth},
	}
}

// Star creates a hub that every spoke depends on.
func (g *Generator) Star(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{0, i}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Star with hub impacting %d spokes", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: 1},
	}
}

// Diamond creates top -> mid1..midN -> bottom.
func (g *Generator) Diamond(width int) GraphFixture {
	if width < 1 {
		width = 1
	}
	size := width + 2
	nodes := make([]string, size)
	edges := make([][2]int, 0, width*2)
	nodes[0] = "top"
	nodes[size-1] = "bottom"
	for i := 1; i <= width; i++ {
		nodes[i] = fmt.Sprintf("mid%d", i)
		edges = append(edges, [2]int{0, i}, [2]int{i, size - 1})
	}
	return GraphFixture{
		Description: fmt.Sprintf("Diamond with %d middle nodes", width),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: 2},
	}
}

// Cycle creates n0 -> n1 -> ... -> n{size-1} -> n0.
func (g *Generator) Cycle(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, size)
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		edges[i] = [2]int{i, (i + 1) % size}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Cycle of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// Disconnected creates independent chains.
func (g *Generator) Disconnected(components, componentSize int) GraphFixture {
	var nodes []string
	var edges [][2]int
	for c := 0; c < components; c++ {
		base := len(nodes)
		for i := 0; i < componentSize; i++ {
			nodes = append(nodes, fmt.Sprintf("c%d_n%d", c, i))
			if i > 0 {
				edges = append(edges, [2]int{base + i - 1, base + i})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("%d disconnected chains of %d nodes", components, componentSize),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: components <= 1},
	}
}

// RandomDAG creates a random DAG. density is the probability of an edge
// from a lower to a higher index.
func (g *Generator) RandomDAG(size int, density float64) GraphFixture {
	nodes := make([]string, size)
	var edges [][2]int
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		for j := 0; j < i; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{j, i})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Random DAG with %d nodes, density %.2f", size, density),
		Nodes:       nodes,
		Edges:       edges,
	}
}

// ============================================================================
// Conversion
// ============================================================================

// ToGraph converts a fixture into an impact graph. Node ids are
// IDPrefix + "." + name.
func (g *Generator) ToGraph(gf GraphFixture) model.GraphResponse {
	out := model.GraphResponse{
		Nodes: make([]model.Node, len(gf.Nodes)),
		Links: make([]model.Link, 0, len(gf.Edges)),
	}
	for i, name := range gf.Nodes {
		out.Nodes[i] = model.Node{
			ID:       g.id(name),
			Label:    name,
			Critical: g.pickCritical(),
		}
	}
	for _, e := range gf.Edges {
		l := model.Link{
			Source:   g.id(gf.Nodes[e[0]]),
			Target:   g.id(gf.Nodes[e[1]]),
			Critical: g.pickCritical(),
		}
		if g.cfg.Labels {
			l.Label = "calls"
		}
		out.Links = append(out.Links, l)
	}
	return out
}

// ToResponse wraps graphs into a normalized analysis response.
func (g *Generator) ToResponse(plan string, graphs ...model.GraphResponse) model.PromptResponse {
	return model.PromptResponse{
		Graphs:   graphs,
		TestPlan: model.TestPlan{TestPlan: plan},
	}.Normalize()
}

// ToJSON encodes v, panicking on error. Fixtures are always encodable.
func ToJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (g *Generator) id(name string) string {
	return g.cfg.IDPrefix + "." + name
}

func (g *Generator) pickCritical() bool {
	return g.cfg.CriticalRate > 0 && g.rng.Float64() < g.cfg.CriticalRate
}

// ============================================================================
// Quick helpers
// ============================================================================

// QuickChain returns a chain graph with default config.
func QuickChain(size int) model.GraphResponse {
	g := NewDefault()
	return g.ToGraph(g.Chain(size))
}

// QuickStar returns a star graph with default config.
func QuickStar(spokes int) model.GraphResponse {
	g := NewDefault()
	return g.ToGraph(g.Star(spokes))
}

// QuickDiamond returns a diamond graph with default config.
func QuickDiamond(width int) model.GraphResponse {
	g := NewDefault()
	return g.ToGraph(g.Diamond(width))
}

// QuickCycle returns a cyclic graph with default config.
func QuickCycle(size int) model.GraphResponse {
	g := NewDefault()
	return g.ToGraph(g.Cycle(size))
}

// SamplePlan is a small markdown test plan.
const SamplePlan = `# Test Plan

## Scope
- [ ] Verify login flow
- [ ] Verify billing export

| Module | Risk |
|---|---|
| auth | high |
`

// SamplePanel returns a panel with n chain graphs and SamplePlan.
func SamplePanel(n int) model.PanelData {
	graphs := make([]model.GraphResponse, n)
	for i := range graphs {
		graphs[i] = QuickChain(i + 2)
	}
	return model.PanelData{GraphData: graphs, TestPlan: SamplePlan, RepoName: "sample-repo"}
}

// Lines splits s into trimmed non-empty lines.
func Lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
