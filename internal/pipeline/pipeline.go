package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/loader"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"
)

const (
	DefaultMinTextChars = 50
	DefaultCallTimeout  = 60 * time.Second
)

// GraphExtractor derives graphs from text. Failures are reported inside the
// returned Extraction, never as panics or errors.
type GraphExtractor interface {
	ExtractGraph(ctx context.Context, text string) graph.Extraction
	ExpandGraph(ctx context.Context, text string, parentID string) graph.Extraction
}

// DocumentPipeline drives the ingest and expand flows. Each call runs its
// stages strictly in order; independent calls may run concurrently.
type DocumentPipeline struct {
	store   store.DocumentStorage
	blobs   loader.BlobLoader
	text    loader.TextExtractor
	scraper loader.TopicScraper
	graphs  GraphExtractor

	minTextChars  int
	mergeStrategy graph.MergeStrategy
	callTimeout   time.Duration
	tempDir       string
}

// NewDocumentPipelineParams wires the collaborators of a DocumentPipeline.
//
// MinTextChars is the minimum number of non-whitespace characters a document
// must yield. CallTimeout bounds every store, blob and scrape call. TempDir
// holds the short-lived local copy of a document, empty means os.TempDir.
type NewDocumentPipelineParams struct {
	Store   store.DocumentStorage
	Blobs   loader.BlobLoader
	Text    loader.TextExtractor
	Scraper loader.TopicScraper
	Graphs  GraphExtractor

	MinTextChars  int
	MergeStrategy graph.MergeStrategy
	CallTimeout   time.Duration
	TempDir       string
}

func NewDocumentPipeline(params NewDocumentPipelineParams) (*DocumentPipeline, error) {
	switch {
	case params.Store == nil:
		return nil, errors.New("pipeline requires a document store")
	case params.Blobs == nil:
		return nil, errors.New("pipeline requires a blob loader")
	case params.Text == nil:
		return nil, errors.New("pipeline requires a text extractor")
	case params.Scraper == nil:
		return nil, errors.New("pipeline requires a topic scraper")
	case params.Graphs == nil:
		return nil, errors.New("pipeline requires a graph extractor")
	}

	p := &DocumentPipeline{
		store:         params.Store,
		blobs:         params.Blobs,
		text:          params.Text,
		scraper:       params.Scraper,
		graphs:        params.Graphs,
		minTextChars:  params.MinTextChars,
		mergeStrategy: params.MergeStrategy,
		callTimeout:   params.CallTimeout,
		tempDir:       params.TempDir,
	}
	if p.minTextChars <= 0 {
		p.minTextChars = DefaultMinTextChars
	}
	if p.mergeStrategy == "" {
		p.mergeStrategy = graph.MergeAppend
	}
	if p.callTimeout <= 0 {
		p.callTimeout = DefaultCallTimeout
	}
	return p, nil
}

func (p *DocumentPipeline) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.callTimeout)
}

func (p *DocumentPipeline) logModelMetrics(documentID string) {
	m, ok := p.graphs.(interface{ Metrics() ai.ModelMetrics })
	if !ok {
		return
	}
	metrics := m.Metrics()
	logger.Debug("[Pipeline] Model usage",
		"document_id", documentID,
		"requests", metrics.Requests,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"tokens_per_second", metrics.TokenPerSecond,
	)
}
