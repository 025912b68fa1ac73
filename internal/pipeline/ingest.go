package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"
)

const (
	statusWriteTries   = 3
	statusWriteBackoff = 200 * time.Millisecond
)

// Outcome is the summary of an ingest run.
type Outcome string

const (
	OutcomeDocumentNotFound Outcome = "document_not_found"
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
)

type IngestResult struct {
	DocumentID string
	Outcome    Outcome
	Status     store.Status
	Reason     store.FailureReason
	Nodes      int
	Edges      int
}

// Ingest runs pending -> processing -> completed|failed for one document.
// It never returns an error: every failure ends in a persisted failed status
// and is described by the result.
func (p *DocumentPipeline) Ingest(ctx context.Context, documentID string) (res IngestResult) {
	start := time.Now()
	logger.Info("[Pipeline] Ingest started", "document_id", documentID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Pipeline] Ingest panicked",
				"document_id", documentID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res = p.fail(ctx, documentID, failStage("panic", store.ReasonInternal, fmt.Errorf("%v", r)))
		}
		p.logModelMetrics(documentID)
		logger.Info("[Pipeline] Ingest finished",
			"document_id", documentID,
			"outcome", res.Outcome,
			"reason", res.Reason,
			"duration", time.Since(start),
		)
	}()

	g, err := p.ingest(ctx, documentID)
	if err != nil {
		return p.fail(ctx, documentID, err)
	}
	return IngestResult{
		DocumentID: documentID,
		Outcome:    OutcomeCompleted,
		Status:     store.StatusCompleted,
		Nodes:      len(g.Nodes),
		Edges:      len(g.Edges),
	}
}

func (p *DocumentPipeline) ingest(ctx context.Context, documentID string) (graph.Graph, error) {
	if err := p.setStatus(ctx, documentID, store.StatusProcessing, store.ReasonNone); err != nil {
		// an unknown id is reported by the fetch below
		if !errors.Is(err, store.ErrDocumentNotFound) {
			return graph.Graph{}, failStage("set_processing", store.ReasonInternal, err)
		}
	}

	doc, err := p.getDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return graph.Graph{}, failStage("fetch_document", store.ReasonNotFound, err)
		}
		return graph.Graph{}, failStage("fetch_document", store.ReasonInternal, err)
	}
	if doc.StoragePath == "" {
		return graph.Graph{}, failStage("download", store.ReasonDownloadFailed, errors.New("document has no storage path"))
	}

	data, err := p.download(ctx, doc.StoragePath)
	if err != nil {
		return graph.Graph{}, failStage("download", store.ReasonDownloadFailed, err)
	}
	logger.Debug("[Pipeline] Downloaded document", "document_id", documentID, "bytes", len(data))

	tmp, cleanup, err := p.materialize(documentID, data)
	if err != nil {
		return graph.Graph{}, failStage("materialize", store.ReasonInternal, err)
	}
	defer cleanup()

	text := p.text.ExtractText(ctx, tmp, tmp.size)
	if n := util.CountNonSpace(text); n < p.minTextChars {
		return graph.Graph{}, failStage("extract_text", store.ReasonExtractionFailed,
			fmt.Errorf("extracted %d non-whitespace characters, need at least %d", n, p.minTextChars))
	}

	extraction := p.graphs.ExtractGraph(ctx, text)
	if extraction.Failed() {
		return graph.Graph{}, failStage("extract_graph", extractionReason(extraction.ErrorKind), errors.New(extraction.Error))
	}
	if len(extraction.Graph.Nodes) == 0 {
		return graph.Graph{}, failStage("extract_graph", store.ReasonModelFailed, errors.New("model returned an empty graph"))
	}

	saveCtx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.store.SaveGraphAndStatus(saveCtx, documentID, extraction.Graph, store.StatusCompleted); err != nil {
		return graph.Graph{}, failStage("save_graph", store.ReasonInternal, err)
	}
	return extraction.Graph, nil
}

// fail persists the failed status for err. The write uses a context detached
// from ctx so that a cancelled request still leaves a terminal status behind.
func (p *DocumentPipeline) fail(ctx context.Context, documentID string, err error) IngestResult {
	status, reason := terminalStatus(err)
	logger.Warn("[Pipeline] Ingest failed", "document_id", documentID, "reason", reason, "err", err)

	werr := util.RetryErrWithContext(context.WithoutCancel(ctx), statusWriteTries, statusWriteBackoff, func(ctx context.Context) error {
		err := p.setStatus(ctx, documentID, status, reason)
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil
		}
		return err
	})
	if werr != nil {
		logger.Error("[Pipeline] Failed to persist failed status", "document_id", documentID, "err", werr)
	}

	outcome := OutcomeFailed
	if reason == store.ReasonNotFound {
		outcome = OutcomeDocumentNotFound
	}
	return IngestResult{
		DocumentID: documentID,
		Outcome:    outcome,
		Status:     status,
		Reason:     reason,
	}
}

func (p *DocumentPipeline) setStatus(ctx context.Context, id string, status store.Status, reason store.FailureReason) error {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.store.SetStatus(ctx, id, status, reason)
}

func (p *DocumentPipeline) getDocument(ctx context.Context, id string) (*store.Document, error) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.store.GetDocument(ctx, id)
}

func (p *DocumentPipeline) download(ctx context.Context, location string) ([]byte, error) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.blobs.Download(ctx, location)
}
