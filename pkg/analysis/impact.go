// Package analysis ranks the modules of an impact graph by how far a change
// to them spreads: transitive reach, PageRank, betweenness, cut points and
// dependency cycles.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/vanderheijden86/impactview/pkg/graphview"
	"github.com/vanderheijden86/impactview/pkg/metrics"
)

// ModuleScore holds the metrics for one module.
type ModuleScore struct {
	ID          string
	Critical    bool
	Reach       int     // modules reachable by following links
	PageRank    float64 // 0..1
	Betweenness float64
	Cut         bool // removing it disconnects the graph
}

// Report is the analysis of one graph. Modules are ordered most
// far-reaching first.
type Report struct {
	Modules []ModuleScore
	Cycles  [][]string

	index map[string]int
}

// Analyze scores every node of g. A nil or empty graph gives an empty
// report.
func Analyze(g *graphview.Graph) Report {
	if g == nil || g.IsEmpty() {
		return Report{}
	}
	defer metrics.Timer(metrics.GraphAnalysis)()

	ids := make(map[string]int64, len(g.Nodes))
	dg := simple.NewDirectedGraph()
	ug := simple.NewUndirectedGraph()
	for i, n := range g.Nodes {
		ids[n.ID] = int64(i)
		dg.AddNode(simple.Node(i))
		ug.AddNode(simple.Node(i))
	}
	for _, l := range g.Links {
		s, t := ids[l.Source], ids[l.Target]
		if s == t {
			continue // simple graphs reject self edges
		}
		dg.SetEdge(dg.NewEdge(simple.Node(s), simple.Node(t)))
		ug.SetEdge(ug.NewEdge(simple.Node(s), simple.Node(t)))
	}

	var pr, bc map[int64]float64
	if len(g.Links) > 0 {
		pr = network.PageRank(dg, 0.85, 1e-6)
		bc = network.Betweenness(dg)
	}
	cuts := articulationPoints(ug)

	r := Report{Modules: make([]ModuleScore, len(g.Nodes))}
	for i, n := range g.Nodes {
		id := int64(i)
		score := ModuleScore{
			ID:          n.ID,
			Critical:    n.Data.Critical,
			Reach:       reach(dg, simple.Node(id)),
			Betweenness: bc[id],
			Cut:         cuts[id],
		}
		if pr != nil {
			score.PageRank = pr[id]
		} else {
			score.PageRank = 1 / float64(len(g.Nodes))
		}
		r.Modules[i] = score
	}
	sort.SliceStable(r.Modules, func(i, j int) bool {
		a, b := r.Modules[i], r.Modules[j]
		if a.Reach != b.Reach {
			return a.Reach > b.Reach
		}
		if a.Critical != b.Critical {
			return a.Critical
		}
		if a.PageRank != b.PageRank {
			return a.PageRank > b.PageRank
		}
		return a.ID < b.ID
	})
	r.index = make(map[string]int, len(r.Modules))
	for i, m := range r.Modules {
		r.index[m.ID] = i
	}

	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		cycle := make([]string, len(scc))
		for i, n := range scc {
			cycle[i] = g.Nodes[n.ID()].ID
		}
		sort.Strings(cycle)
		r.Cycles = append(r.Cycles, cycle)
	}
	sort.Slice(r.Cycles, func(i, j int) bool { return r.Cycles[i][0] < r.Cycles[j][0] })
	return r
}

// Score returns the metrics for id.
func (r Report) Score(id string) (ModuleScore, bool) {
	i, ok := r.index[id]
	if !ok {
		return ModuleScore{}, false
	}
	return r.Modules[i], true
}

// Top returns at most n modules that reach at least one other module.
func (r Report) Top(n int) []ModuleScore {
	var out []ModuleScore
	for _, m := range r.Modules {
		if len(out) == n || m.Reach == 0 {
			break
		}
		out = append(out, m)
	}
	return out
}

func reach(g graph.Directed, from graph.Node) int {
	n := 0
	bf := traverse.BreadthFirst{Visit: func(graph.Node) { n++ }}
	bf.Walk(g, from, nil)
	return n - 1
}

// articulationPoints runs Tarjan's lowlink search over every component.
func articulationPoints(g *simple.UndirectedGraph) map[int64]bool {
	var clock int
	disc := make(map[int64]int)
	low := make(map[int64]int)
	parent := make(map[int64]int64)
	ap := make(map[int64]bool)

	const noParent int64 = -1

	var dfs func(v int64)
	dfs = func(v int64) {
		clock++
		disc[v] = clock
		low[v] = clock
		children := 0

		it := g.From(v)
		for it.Next() {
			u := it.Node().ID()
			if disc[u] == 0 {
				parent[u] = v
				children++
				dfs(u)
				low[v] = min(low[v], low[u])
				if parent[v] == noParent && children > 1 {
					ap[v] = true
				}
				if parent[v] != noParent && low[u] >= disc[v] {
					ap[v] = true
				}
			} else if u != parent[v] {
				low[v] = min(low[v], disc[u])
			}
		}
	}

	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		if disc[id] == 0 {
			parent[id] = noParent
			dfs(id)
		}
	}
	return ap
}
