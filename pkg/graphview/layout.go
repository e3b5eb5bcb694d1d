package graphview

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// LayoutOptions sizes the layered layout. Units are whatever the Measurer
// used to build the graph returns (pixels or terminal cells).
type LayoutOptions struct {
	NodeHeight float64
	PadX       float64 // horizontal padding on each side of a label
	ColGap     float64
	RowGap     float64
	Margin     float64
}

// PixelLayout suits raster and SVG output measured with FontMeasurer.
func PixelLayout() LayoutOptions {
	return LayoutOptions{NodeHeight: 28, PadX: 12, ColGap: 60, RowGap: 18, Margin: 16}
}

// CellLayout suits terminal output measured with CellMeasurer.
func CellLayout() LayoutOptions {
	return LayoutOptions{NodeHeight: 3, PadX: 2, ColGap: 6, RowGap: 1, Margin: 1}
}

// Box is a positioned node.
type Box struct {
	ID   string
	Rank int
	X, Y float64
	W, H float64
}

// Edge is a positioned link, drawn from the right edge of the source box to
// the left edge of the target box.
type Edge struct {
	LinkID         string
	Source, Target string
	X1, Y1, X2, Y2 float64
}

// Layout is the result of laying out a Graph.
type Layout struct {
	Boxes  []Box
	Edges  []Edge
	Ranks  int
	Width  float64
	Height float64

	index map[string]int
}

// Box returns the box for node id.
func (l *Layout) Box(id string) (Box, bool) {
	i, ok := l.index[id]
	if !ok {
		return Box{}, false
	}
	return l.Boxes[i], true
}

// Elements returns every box and edge as a Bounder, for fitting.
func (l *Layout) Elements() []Bounder {
	out := make([]Bounder, 0, len(l.Boxes)+len(l.Edges))
	for _, b := range l.Boxes {
		out = append(out, b)
	}
	for _, e := range l.Edges {
		out = append(out, e)
	}
	return out
}

// ComputeLayout places g's nodes in left-to-right layers. Every node of a
// strongly connected component shares a rank, so cycles never prevent a
// node from being placed. Within a rank nodes keep their input order.
func ComputeLayout(g *Graph, opts LayoutOptions) *Layout {
	out := &Layout{index: make(map[string]int, len(g.Nodes))}
	if g.IsEmpty() {
		return out
	}

	ranks := rankNodes(g)

	byRank := make(map[int][]int)
	maxRank := 0
	for i := range g.Nodes {
		r := ranks[i]
		byRank[r] = append(byRank[r], i)
		if r > maxRank {
			maxRank = r
		}
	}
	out.Ranks = maxRank + 1

	colX := opts.Margin
	maxBottom := 0.0
	out.Boxes = make([]Box, len(g.Nodes))
	for r := 0; r <= maxRank; r++ {
		colW := 0.0
		for row, ni := range byRank[r] {
			n := g.Nodes[ni]
			b := Box{
				ID:   n.ID,
				Rank: r,
				X:    colX,
				Y:    opts.Margin + float64(row)*(opts.NodeHeight+opts.RowGap),
				W:    n.Data.TextWidth + 2*opts.PadX,
				H:    opts.NodeHeight,
			}
			out.Boxes[ni] = b
			out.index[n.ID] = ni
			if b.W > colW {
				colW = b.W
			}
			if bottom := b.Y + b.H; bottom > maxBottom {
				maxBottom = bottom
			}
		}
		colX += colW
		if r < maxRank {
			colX += opts.ColGap
		}
	}
	out.Width = colX + opts.Margin
	out.Height = maxBottom + opts.Margin

	out.Edges = make([]Edge, 0, len(g.Links))
	for _, l := range g.Links {
		from := out.Boxes[out.index[l.Source]]
		to := out.Boxes[out.index[l.Target]]
		out.Edges = append(out.Edges, Edge{
			LinkID: l.ID,
			Source: l.Source,
			Target: l.Target,
			X1:     from.X + from.W,
			Y1:     from.Y + from.H/2,
			X2:     to.X,
			Y2:     to.Y + to.H/2,
		})
	}
	return out
}

// rankNodes returns the layer of every node, indexed like g.Nodes. Ranks
// are longest-path depths over the condensation of the link graph.
func rankNodes(g *Graph) []int {
	dg := simple.NewDirectedGraph()
	for i := range g.Nodes {
		dg.AddNode(simple.Node(int64(i)))
	}
	for _, l := range g.Links {
		u, v := int64(g.index[l.Source]), int64(g.index[l.Target])
		if u == v {
			continue
		}
		dg.SetEdge(dg.NewEdge(dg.Node(u), dg.Node(v)))
	}

	sccs := topo.TarjanSCC(dg)
	comp := make([]int64, len(g.Nodes))
	cg := simple.NewDirectedGraph()
	for ci, scc := range sccs {
		cg.AddNode(simple.Node(int64(ci)))
		for _, n := range scc {
			comp[n.ID()] = int64(ci)
		}
	}
	edges := dg.Edges()
	for edges.Next() {
		e := edges.Edge()
		cu, cv := comp[e.From().ID()], comp[e.To().ID()]
		if cu != cv && !cg.HasEdgeFromTo(cu, cv) {
			cg.SetEdge(cg.NewEdge(cg.Node(cu), cg.Node(cv)))
		}
	}

	order, err := topo.Sort(cg)
	if err != nil {
		// The condensation is acyclic; fall back to a single layer if gonum
		// disagrees.
		return make([]int, len(g.Nodes))
	}
	compRank := make(map[int64]int, len(order))
	for _, c := range order {
		r := 0
		preds := cg.To(c.ID())
		for preds.Next() {
			if pr := compRank[preds.Node().ID()] + 1; pr > r {
				r = pr
			}
		}
		compRank[c.ID()] = r
	}

	ranks := make([]int, len(g.Nodes))
	for i := range ranks {
		ranks[i] = compRank[comp[i]]
	}
	return ranks
}
