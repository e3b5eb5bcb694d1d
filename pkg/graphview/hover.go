package graphview

// Tooltip is the floating label shown for the hovered node.
type Tooltip struct {
	Visible bool
	Text    string
	X, Y    float64
}

// Hover highlights id, its incident links and their other endpoints, and
// shows the tooltip at the pointer position. The state is recomputed from
// scratch, so calling Hover twice is the same as calling it once. Unknown
// ids clear everything.
func (g *Graph) Hover(id string, x, y float64) {
	g.clearHover()

	i, ok := g.index[id]
	if !ok {
		return
	}
	g.Nodes[i].Data.Hover = true
	for li := range g.Links {
		l := &g.Links[li]
		var other string
		switch id {
		case l.Source:
			other = l.Target
		case l.Target:
			other = l.Source
		default:
			continue
		}
		l.Data.Hover = true
		if other != id {
			g.Nodes[g.index[other]].Data.Neighbor = true
		}
	}

	n := g.Nodes[i]
	text := n.Label
	if n.Data.Critical {
		text += " (critical)"
	}
	g.Tooltip = Tooltip{Visible: true, Text: text, X: x, Y: y}
}

// Leave clears every hover flag and hides the tooltip.
func (g *Graph) Leave() {
	g.clearHover()
}

// Hovered returns the id of the hovered node, if any.
func (g *Graph) Hovered() (string, bool) {
	for _, n := range g.Nodes {
		if n.Data.Hover {
			return n.ID, true
		}
	}
	return "", false
}

func (g *Graph) clearHover() {
	for i := range g.Nodes {
		g.Nodes[i].Data.Hover = false
		g.Nodes[i].Data.Neighbor = false
	}
	for i := range g.Links {
		g.Links[i].Data.Hover = false
	}
	g.Tooltip = Tooltip{}
}
