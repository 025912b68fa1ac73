package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
)

// ErrorKind classifies a failed Extraction.
type ErrorKind string

const (
	// ErrorKindModel is a transport or backend failure of the model call.
	ErrorKindModel ErrorKind = "model"
	// ErrorKindMalformed is an answer that is not a graph after sanitization.
	ErrorKindMalformed ErrorKind = "malformed"
	// ErrorKindInternal is a recovered panic.
	ErrorKindInternal ErrorKind = "internal"
)

// Extraction is the outcome of a model call: a graph, or an empty graph
// tagged with an error kind and a diagnostic.
type Extraction struct {
	Graph     Graph
	ErrorKind ErrorKind
	Error     string
}

func (e Extraction) Failed() bool {
	return e.ErrorKind != ""
}

func failedExtraction(kind ErrorKind, err error) Extraction {
	return Extraction{
		Graph:     Graph{Nodes: []Node{}, Edges: []Edge{}},
		ErrorKind: kind,
		Error:     err.Error(),
	}
}

// StripCodeFence removes a leading ```json or ``` fence and a trailing ```
// fence, then trims surrounding whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 7 && strings.EqualFold(s[:7], "```json"):
		s = s[7:]
	case strings.HasPrefix(s, "```"):
		s = s[3:]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractGraph derives a graph of root concepts from a document's text.
// It never returns an error: failures come back as a tagged Extraction.
func (c *GraphClient) ExtractGraph(ctx context.Context, text string) Extraction {
	text = util.TruncateRunes(text, c.maxInputChars)
	prompt := fmt.Sprintf(ai.ExtractGraphPrompt, text)
	return c.generate(ctx, "extract", prompt, 1)
}

// ExpandGraph derives child concepts of parentID from reference text.
func (c *GraphClient) ExpandGraph(ctx context.Context, text string, parentID string) Extraction {
	text = util.TruncateRunes(text, c.maxInputChars)
	prompt := fmt.Sprintf(ai.ExpandGraphPrompt, parentID, c.expansionLevel, text)
	return c.generate(ctx, "expand", prompt, c.expansionLevel)
}

func (c *GraphClient) generate(ctx context.Context, mode string, prompt string, defaultLevel int) (res Extraction) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Extractor] Recovered from panic", "mode", mode, "panic", r)
			res = failedExtraction(ErrorKindInternal, fmt.Errorf("extraction panicked: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithTemperature(c.temperature),
	}
	if c.model != "" {
		opts = append(opts, ai.WithModel(c.model))
	}
	if c.maxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(c.maxTokens))
	}

	start := time.Now()
	raw, err := c.aiClient.GenerateCompletion(callCtx, prompt, opts...)
	if err != nil {
		logger.Error("[Extractor] Model call failed", "mode", mode, "duration", time.Since(start), "err", err)
		return failedExtraction(ErrorKindModel, fmt.Errorf("model call failed: %w", err))
	}

	g, err := c.ParseResponse(raw, defaultLevel)
	if err != nil {
		logger.Warn("[Extractor] Unusable model response", "mode", mode, "err", err)
		return failedExtraction(ErrorKindMalformed, err)
	}

	logger.Debug("[Extractor] Graph extracted",
		"mode", mode,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"duration", time.Since(start),
	)
	return Extraction{Graph: g}
}

// ParseResponse sanitizes a raw model answer and decodes it into a Graph.
// Nodes without a level >= 1 get defaultLevel.
func (c *GraphClient) ParseResponse(raw string, defaultLevel int) (Graph, error) {
	body := StripCodeFence(raw)
	if body == "" {
		return Graph{}, errors.New("model response is empty")
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		if !c.repairJSON {
			return Graph{}, fmt.Errorf("model response is not valid JSON: %w", err)
		}
		repaired, rerr := ai.RepairJSON(body)
		if rerr != nil {
			return Graph{}, fmt.Errorf("model response is not valid JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
			return Graph{}, fmt.Errorf("model response is not valid JSON after repair: %w", err)
		}
		body = repaired
	}

	if err := c.schema.Validate(doc); err != nil {
		return Graph{}, fmt.Errorf("model response does not match the graph shape: %w", err)
	}

	var res extractResponse
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return Graph{}, fmt.Errorf("failed to decode graph: %w", err)
	}
	return res.toGraph(defaultLevel), nil
}
