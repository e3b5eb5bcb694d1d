package model

import (
	"errors"
	"testing"
)

func TestDecodePromptResponse_Variants(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantGraphs int
		wantPlan   string
		wantTitle  string
		wantLegacy bool
	}{
		{
			name:       "canonical graphs array with plan object",
			body:       `{"graphs":[{"nodes":[{"id":"A"}],"links":[]}],"testPlan":{"testPlan":"# Plan","title":"T"}}`,
			wantGraphs: 1,
			wantPlan:   "# Plan",
			wantTitle:  "T",
		},
		{
			name:       "legacy singular graphData with string plan",
			body:       `{"graphData":{"nodes":[{"id":"A"}],"links":[]},"testPlan":"plan"}`,
			wantGraphs: 1,
			wantPlan:   "plan",
			wantLegacy: true,
		},
		{
			name:       "flat nodes and links with testPlans list",
			body:       `{"nodes":[{"id":"A"},{"id":"B"}],"links":[{"source":"A","target":"B"}],"testPlans":[{"title":"Test Plan","testPlan":"steps"}]}`,
			wantGraphs: 1,
			wantPlan:   "steps",
			wantTitle:  "Test Plan",
			wantLegacy: true,
		},
		{
			name:       "empty object",
			body:       `{}`,
			wantGraphs: 0,
		},
		{
			name:       "empty body",
			body:       ``,
			wantGraphs: 0,
		},
		{
			name:       "null plan",
			body:       `{"graphs":[],"testPlan":null}`,
			wantGraphs: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodePromptResponse([]byte(tc.body))
			if err != nil {
				t.Fatalf("DecodePromptResponse error: %v", err)
			}
			if got.Version != SchemaVersion {
				t.Errorf("version = %d, want %d", got.Version, SchemaVersion)
			}
			if got.Graphs == nil {
				t.Fatal("graphs must never be nil after decoding")
			}
			if len(got.Graphs) != tc.wantGraphs {
				t.Errorf("graphs = %d, want %d", len(got.Graphs), tc.wantGraphs)
			}
			if got.TestPlan.TestPlan != tc.wantPlan {
				t.Errorf("testPlan = %q, want %q", got.TestPlan.TestPlan, tc.wantPlan)
			}
			if got.TestPlan.Title != tc.wantTitle {
				t.Errorf("title = %q, want %q", got.TestPlan.Title, tc.wantTitle)
			}
			if got.Legacy != tc.wantLegacy {
				t.Errorf("legacy = %v, want %v", got.Legacy, tc.wantLegacy)
			}
			for i, g := range got.Graphs {
				if g.Nodes == nil || g.Links == nil {
					t.Errorf("graph %d has nil slices", i)
				}
			}
		})
	}
}

func TestDecodePromptResponse_RejectsEmptyNodeID(t *testing.T) {
	_, err := DecodePromptResponse([]byte(`{"graphs":[{"nodes":[{"id":""}],"links":[]}]}`))
	if !errors.Is(err, ErrEmptyNodeID) {
		t.Fatalf("expected ErrEmptyNodeID, got %v", err)
	}
}

func TestDecodePromptResponse_Malformed(t *testing.T) {
	if _, err := DecodePromptResponse([]byte(`{"graphs":`)); err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestPromptResponse_PanelData(t *testing.T) {
	r := PromptResponse{
		TestPlan: TestPlan{TestPlan: "plan"},
		RepoName: "petclinic",
	}
	p := r.PanelData()
	if p.GraphData == nil || len(p.GraphData) != 0 {
		t.Errorf("expected empty non-nil graph list, got %#v", p.GraphData)
	}
	if p.TestPlan != "plan" || p.RepoName != "petclinic" {
		t.Errorf("unexpected panel data %#v", p)
	}
}

func TestEmptyPanel(t *testing.T) {
	p := EmptyPanel()
	if !p.IsEmpty() {
		t.Error("EmptyPanel should be empty")
	}
	if p.GraphData == nil {
		t.Error("EmptyPanel graph list should be non-nil")
	}
}
