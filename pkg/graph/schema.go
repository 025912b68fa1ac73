package graph

import (
	"bytes"
	"fmt"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const responseSchemaURL = "graph_response.json"

type responseNode struct {
	ID          string `json:"id" jsonschema:"required,minLength=1" jsonschema_description:"Unique identifier of the concept"`
	Label       string `json:"label" jsonschema:"required" jsonschema_description:"Display name of the concept"`
	Description string `json:"description,omitempty" jsonschema_description:"Brief description of the concept"`
	Level       int    `json:"level,omitempty" jsonschema_description:"Depth of the concept, root concepts are 1"`
}

type responseEdge struct {
	Source   string `json:"source" jsonschema:"required,minLength=1" jsonschema_description:"Id of the source concept"`
	Target   string `json:"target" jsonschema:"required,minLength=1" jsonschema_description:"Id of the target concept"`
	Relation string `json:"relation,omitempty" jsonschema_description:"Short label of the relation"`
}

type extractResponse struct {
	Nodes []responseNode `json:"nodes" jsonschema:"required" jsonschema_description:"Concepts identified in the text"`
	Edges []responseEdge `json:"edges" jsonschema:"required" jsonschema_description:"Directed relations between the concepts"`
}

func (r extractResponse) toGraph(defaultLevel int) Graph {
	g := Graph{
		Nodes: make([]Node, 0, len(r.Nodes)),
		Edges: make([]Edge, 0, len(r.Edges)),
	}
	for _, n := range r.Nodes {
		level := n.Level
		if level < 1 {
			level = defaultLevel
		}
		g.Nodes = append(g.Nodes, Node{
			ID:          n.ID,
			Label:       n.Label,
			Description: n.Description,
			Level:       level,
		})
	}
	for _, e := range r.Edges {
		g.Edges = append(g.Edges, Edge(e))
	}
	return g
}

func compileResponseSchema() (*jsonschema.Schema, error) {
	data, err := ai.GenerateSchemaJSON(extractResponse{})
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(responseSchemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(responseSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
