package graph

import "encoding/json"

// Node is a concept in a knowledge graph.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	// Level is the depth of the concept, root concepts are 1.
	Level int `json:"level"`
}

// Edge is a directed relation between two node ids. Endpoints are not
// required to resolve to nodes of the same graph.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Graph is the persisted knowledge structure of a document.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON always writes both collections, empty ones as [].
func (g Graph) MarshalJSON() ([]byte, error) {
	type wire Graph
	w := wire(g)
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if w.Edges == nil {
		w.Edges = []Edge{}
	}
	return json.Marshal(w)
}

// IsEmpty reports whether g has neither nodes nor edges.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// Clone returns a copy that shares no backing arrays with g.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}
