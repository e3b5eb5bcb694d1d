package model

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// SchemaVersion identifies the normalized response shape produced by
// DecodePromptResponse.
const SchemaVersion = 2

// TestPlan is the generated test plan in markdown.
type TestPlan struct {
	Title    string `json:"title,omitempty"`
	TestPlan string `json:"testPlan"`
}

// PromptResponse is the normalized analysis response. Every field is set
// after decoding; absent wire fields become empty values.
type PromptResponse struct {
	Version       int             `json:"version"`
	Graphs        []GraphResponse `json:"graphs"`
	TestPlan      TestPlan        `json:"testPlan"`
	PromptMessage string          `json:"promptMessage,omitempty"`
	RepoName      string          `json:"repoName,omitempty"`

	// Legacy is true when the payload used the singular graphData form
	// or a flat nodes/links body instead of the graphs array.
	Legacy bool `json:"-"`
}

// wireResponse is the superset of every response shape the service has
// emitted.
type wireResponse struct {
	Graphs        []GraphResponse `json:"graphs"`
	GraphData     *GraphResponse  `json:"graphData"`
	Nodes         []Node          `json:"nodes"`
	Links         []Link          `json:"links"`
	TestPlan      json.RawMessage `json:"testPlan"`
	TestPlans     []TestPlan      `json:"testPlans"`
	PromptMessage string          `json:"promptMessage"`
	RepoName      string          `json:"repoName"`
}

// DecodePromptResponse parses any known response variant and returns the
// normalized schema. An empty body decodes to an empty response.
func DecodePromptResponse(data []byte) (PromptResponse, error) {
	var out PromptResponse
	if len(bytes.TrimSpace(data)) == 0 {
		return out.Normalize(), nil
	}

	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return out, fmt.Errorf("decoding prompt response: %w", err)
	}

	out.Graphs = w.Graphs
	if w.GraphData != nil {
		out.Graphs = append(out.Graphs, *w.GraphData)
		out.Legacy = true
	}
	if len(w.Nodes) > 0 || len(w.Links) > 0 {
		out.Graphs = append(out.Graphs, GraphResponse{Nodes: w.Nodes, Links: w.Links})
		out.Legacy = true
	}

	plan, err := decodeTestPlan(w.TestPlan)
	if err != nil {
		return out, err
	}
	if plan.TestPlan == "" && len(w.TestPlans) > 0 {
		plan = w.TestPlans[0]
	}
	out.TestPlan = plan
	out.PromptMessage = w.PromptMessage
	out.RepoName = w.RepoName

	out = out.Normalize()
	for i, g := range out.Graphs {
		if err := g.Validate(); err != nil {
			return out, fmt.Errorf("graph %d: %w", i, err)
		}
	}
	return out, nil
}

// decodeTestPlan accepts {"testPlan": "...", "title": "..."}, a bare
// string, or null.
func decodeTestPlan(raw json.RawMessage) (TestPlan, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return TestPlan{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return TestPlan{}, fmt.Errorf("decoding test plan: %w", err)
		}
		return TestPlan{TestPlan: s}, nil
	}
	var tp TestPlan
	if err := json.Unmarshal(raw, &tp); err != nil {
		return TestPlan{}, fmt.Errorf("decoding test plan: %w", err)
	}
	return tp, nil
}

// Normalize fills defaults so every field is non-nil and stamps the
// schema version.
func (r PromptResponse) Normalize() PromptResponse {
	r.Version = SchemaVersion
	if r.Graphs == nil {
		r.Graphs = []GraphResponse{}
	}
	for i := range r.Graphs {
		r.Graphs[i] = r.Graphs[i].normalized()
	}
	return r
}

// PanelData converts the response into the bus payload.
func (r PromptResponse) PanelData() PanelData {
	r = r.Normalize()
	return PanelData{
		GraphData: r.Graphs,
		TestPlan:  r.TestPlan.TestPlan,
		RepoName:  r.RepoName,
	}
}
