// Package model holds the wire and panel types shared by the gateway, the
// chat component, the bus and the panel.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyNodeID is returned by Validate when a node has no id.
	ErrEmptyNodeID = errors.New("node id is empty")
	// ErrNoGraphs is returned when an operation needs a graph and the panel
	// has none.
	ErrNoGraphs = errors.New("no impact graphs")
)

// DefaultLinkLabel is used when the backend omits a link label.
const DefaultLinkLabel = "depends"

// Node is a module or class in the impact graph.
type Node struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Critical bool   `json:"critical,omitempty"`
}

// Link is a dependency between two nodes.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Label    string `json:"label,omitempty"`
	Critical bool   `json:"critical,omitempty"`
}

// GraphResponse is one impact graph as returned by the analysis service.
type GraphResponse struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// IsEmpty reports whether the graph has no nodes.
func (g GraphResponse) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// Validate checks structural invariants that the adapter cannot repair.
// Dangling links are not an error; they are filtered downstream.
func (g GraphResponse) Validate() error {
	for i, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: %w", i, ErrEmptyNodeID)
		}
	}
	return nil
}

// normalized returns a copy with nil slices replaced by empty ones so that
// encoders emit [] rather than null.
func (g GraphResponse) normalized() GraphResponse {
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Links == nil {
		g.Links = []Link{}
	}
	return g
}
