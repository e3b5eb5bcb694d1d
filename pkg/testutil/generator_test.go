package testutil

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/impactview/pkg/model"
)

func TestChain(t *testing.T) {
	gen := NewDefault()

	tests := []struct {
		name      string
		size      int
		wantNodes int
		wantEdges int
		wantDepth int
	}{
		{"chain_1", 1, 1, 0, 0},
		{"chain_2", 2, 2, 1, 1},
		{"chain_5", 5, 5, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gf := gen.Chain(tt.size)
			if len(gf.Nodes) != tt.wantNodes {
				t.Errorf("Chain(%d) nodes = %d, want %d", tt.size, len(gf.Nodes), tt.wantNodes)
			}
			if len(gf.Edges) != tt.wantEdges {
				t.Errorf("Chain(%d) edges = %d, want %d", tt.size, len(gf.Edges), tt.wantEdges)
			}
			if gf.Properties.ExpectedDepth != tt.wantDepth {
				t.Errorf("Chain(%d) depth = %d, want %d", tt.size, gf.Properties.ExpectedDepth, tt.wantDepth)
			}
			for i, e := range gf.Edges {
				if e[0] != i || e[1] != i+1 {
					t.Errorf("edge %d: got [%d,%d], want [%d,%d]", i, e[0], e[1], i, i+1)
				}
			}
		})
	}
}

func TestStarAndDiamond(t *testing.T) {
	gen := NewDefault()

	star := gen.ToGraph(gen.Star(3))
	AssertNodeCount(t, star, 4)
	AssertLinkExists(t, star, "mod.hub", "mod.spoke2")

	d := gen.ToGraph(gen.Diamond(2))
	AssertNodeCount(t, d, 4)
	AssertLinkExists(t, d, "mod.top", "mod.mid1")
	AssertLinkExists(t, d, "mod.mid2", "mod.bottom")
	AssertNoDanglingLinks(t, d)
}

func TestCycle(t *testing.T) {
	gf := NewDefault().Cycle(3)
	if !gf.Properties.HasCycles {
		t.Error("Cycle should report cycles")
	}
	last := gf.Edges[len(gf.Edges)-1]
	if last[1] != 0 {
		t.Errorf("last edge should close the cycle, got %v", last)
	}
}

func TestDisconnected(t *testing.T) {
	gf := NewDefault().Disconnected(3, 2)
	if len(gf.Nodes) != 6 || len(gf.Edges) != 3 {
		t.Errorf("got %d nodes %d edges", len(gf.Nodes), len(gf.Edges))
	}
	if gf.Properties.IsConnected {
		t.Error("three components are not connected")
	}
}

func TestToGraph_CriticalRate(t *testing.T) {
	all := New(GeneratorConfig{Seed: 1, CriticalRate: 1, Labels: true})
	g := all.ToGraph(all.Chain(3))
	for _, n := range g.Nodes {
		if !n.Critical {
			t.Errorf("node %s should be critical", n.ID)
		}
	}
	for _, l := range g.Links {
		if !l.Critical || l.Label != "calls" {
			t.Errorf("unexpected link %+v", l)
		}
	}

	none := NewDefault().ToGraph(NewDefault().Chain(3))
	for _, n := range none.Nodes {
		if n.Critical {
			t.Errorf("node %s should not be critical", n.ID)
		}
	}
}

func TestDeterminism(t *testing.T) {
	a := New(GeneratorConfig{Seed: 7, CriticalRate: 0.5})
	b := New(GeneratorConfig{Seed: 7, CriticalRate: 0.5})
	ga := a.ToGraph(a.RandomDAG(20, 0.3))
	gb := b.ToGraph(b.RandomDAG(20, 0.3))
	AssertJSONEqual(t, ga, gb)
}

func TestToResponseRoundTrip(t *testing.T) {
	gen := NewDefault()
	resp := gen.ToResponse("# plan", QuickChain(2))

	decoded, err := model.DecodePromptResponse([]byte(ToJSON(resp)))
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Graphs) != 1 || decoded.TestPlan.TestPlan != "# plan" {
		t.Errorf("unexpected decode %+v", decoded)
	}
}

func TestSamplePanel(t *testing.T) {
	p := SamplePanel(2)
	if len(p.GraphData) != 2 || !strings.Contains(p.TestPlan, "Test Plan") {
		t.Errorf("unexpected sample %+v", p)
	}
	if got := Lines(" a \n\n b"); len(got) != 2 || got[1] != "b" {
		t.Errorf("Lines = %q", got)
	}
}
