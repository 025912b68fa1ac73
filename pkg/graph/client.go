package graph

import (
	"errors"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	DefaultModelTimeout   = 60 * time.Second
	DefaultMaxInputChars  = 30000
	DefaultExpansionLevel = 2
)

// GraphClient derives graphs from text through a GraphAIClient.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	aiClient       ai.GraphAIClient
	model          string
	temperature    float64
	maxTokens      int
	timeout        time.Duration
	maxInputChars  int
	expansionLevel int
	repairJSON     bool
	schema         *jsonschema.Schema
}

// NewGraphClientParams configures a GraphClient. Zero values select the defaults.
//
// Timeout bounds every model call. MaxInputChars caps the text embedded in a
// prompt. ExpansionLevel is the level assigned to nodes derived by ExpandGraph.
// RepairJSON lets the parser repair almost-JSON answers instead of rejecting them.
type NewGraphClientParams struct {
	AIClient       ai.GraphAIClient
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	MaxInputChars  int
	ExpansionLevel int
	RepairJSON     bool
}

// NewGraphClient creates a GraphClient and compiles the response schema.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:    aiClient,
//		Model:       "gpt-4.1-mini",
//		Temperature: 0.2,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, errors.New("graph client requires an AI client")
	}
	schema, err := compileResponseSchema()
	if err != nil {
		return nil, err
	}

	c := &GraphClient{
		aiClient:       params.AIClient,
		model:          params.Model,
		temperature:    params.Temperature,
		maxTokens:      params.MaxTokens,
		timeout:        params.Timeout,
		maxInputChars:  params.MaxInputChars,
		expansionLevel: params.ExpansionLevel,
		repairJSON:     params.RepairJSON,
		schema:         schema,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultModelTimeout
	}
	if c.maxInputChars <= 0 {
		c.maxInputChars = DefaultMaxInputChars
	}
	if c.expansionLevel < 2 {
		c.expansionLevel = DefaultExpansionLevel
	}
	return c, nil
}

// Metrics returns the accumulated usage of the underlying model client.
func (c *GraphClient) Metrics() ai.ModelMetrics {
	return c.aiClient.GetMetrics()
}
