package model

import "time"

// PanelData is the side panel payload: the impact graphs plus the
// generated test plan.
type PanelData struct {
	GraphData []GraphResponse `json:"graphData"`
	TestPlan  string          `json:"testPlan"`
	RepoName  string          `json:"repoName,omitempty"`
}

// EmptyPanel is published when a request fails so the panel clears.
func EmptyPanel() PanelData {
	return PanelData{GraphData: []GraphResponse{}, TestPlan: ""}
}

// IsEmpty reports whether there is nothing to show.
func (p PanelData) IsEmpty() bool {
	return len(p.GraphData) == 0 && p.TestPlan == ""
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the chat transcript.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
