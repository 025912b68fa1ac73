package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
)

var (
	// ErrNothingScraped is returned when the topic yields no reference text.
	ErrNothingScraped = errors.New("no reference text found for topic")
	// ErrExpansionFailed is returned when the model produced no usable graph.
	ErrExpansionFailed = errors.New("graph expansion failed")
)

type ExpandResult struct {
	NewNodes      int
	NewEdges      int
	ReplacedNodes int
}

// Expand scrapes reference text for topic, derives a sub-graph rooted at
// nodeID and merges it into the stored graph of the document. Nothing is
// persisted unless every step succeeds. A missing document is reported with
// store.ErrDocumentNotFound.
func (p *DocumentPipeline) Expand(ctx context.Context, documentID, nodeID, topic string) (res ExpandResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Pipeline] Expand panicked",
				"document_id", documentID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res, err = ExpandResult{}, fmt.Errorf("expand panicked: %v", r)
		}
		p.logModelMetrics(documentID)
	}()
	logger.Info("[Pipeline] Expand started", "document_id", documentID, "node_id", nodeID, "topic", topic)

	text := p.scrape(ctx, topic)
	if strings.TrimSpace(text) == "" {
		return ExpandResult{}, fmt.Errorf("%w: %q", ErrNothingScraped, topic)
	}

	extraction := p.graphs.ExpandGraph(ctx, text, nodeID)
	if extraction.Failed() {
		return ExpandResult{}, fmt.Errorf("%w: %s", ErrExpansionFailed, extraction.Error)
	}

	doc, err := p.getDocument(ctx, documentID)
	if err != nil {
		return ExpandResult{}, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	existing := graph.Graph{}
	if doc.Graph != nil {
		existing = *doc.Graph
	}

	merged, stats, err := graph.Merge(existing, extraction.Graph, p.mergeStrategy)
	if err != nil {
		return ExpandResult{}, err
	}

	saveCtx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.store.SaveGraph(saveCtx, documentID, merged); err != nil {
		return ExpandResult{}, fmt.Errorf("failed to save graph for %s: %w", documentID, err)
	}

	logger.Info("[Pipeline] Expand finished",
		"document_id", documentID,
		"new_nodes", stats.AddedNodes,
		"new_edges", stats.AddedEdges,
		"replaced_nodes", stats.ReplacedNodes,
	)
	return ExpandResult{
		NewNodes:      stats.AddedNodes,
		NewEdges:      stats.AddedEdges,
		ReplacedNodes: stats.ReplacedNodes,
	}, nil
}

func (p *DocumentPipeline) scrape(ctx context.Context, topic string) string {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.scraper.Scrape(ctx, topic)
}
