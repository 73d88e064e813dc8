// Package viz renders the knowledge graph as a self-contained Cytoscape.js page.
package viz

import (
	"encoding/json"
	"fmt"
)

// GraphData is the displayed subset of a knowledge graph.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one displayed node. Type is the lower-cased node class.
type Node struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Label           string   `json:"label"`
	Details         []string `json:"details,omitempty"`
	ConnectionCount int      `json:"connectionCount"`
}

// Edge is one displayed relationship.
type Edge struct {
	Source           string `json:"source"`
	Target           string `json:"target"`
	RelationshipType string `json:"relationshipType"`
	Summary          string `json:"summary,omitempty"`
}

// IsEmpty reports whether there is nothing to draw.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// element wraps node or edge data the way Cytoscape.js expects it.
type element[T any] struct {
	Data T `json:"data"`
}

type edgeData struct {
	ID string `json:"id"`
	Edge
}

// ToCytoscapeJSON encodes the graph as a Cytoscape.js elements object.
// Edge ids are positional and only unique within one encoding.
func (g *GraphData) ToCytoscapeJSON() (string, error) {
	var out struct {
		Nodes []element[Node]     `json:"nodes"`
		Edges []element[edgeData] `json:"edges"`
	}
	out.Nodes = make([]element[Node], len(g.Nodes))
	for i, n := range g.Nodes {
		out.Nodes[i].Data = n
	}
	out.Edges = make([]element[edgeData], len(g.Edges))
	for i, e := range g.Edges {
		out.Edges[i].Data = edgeData{ID: fmt.Sprintf("e%d", i), Edge: e}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding cytoscape elements: %w", err)
	}
	return string(b), nil
}
