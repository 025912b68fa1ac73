package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
)

// ErrDocumentNotFound is returned when no document has the given id.
var ErrDocumentNotFound = errors.New("document not found")

// Status is the persisted processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether an ingest run ends in s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureReason is the diagnostic stored next to StatusFailed.
type FailureReason string

const (
	ReasonNone             FailureReason = ""
	ReasonNotFound         FailureReason = "not_found"
	ReasonDownloadFailed   FailureReason = "download_failed"
	ReasonExtractionFailed FailureReason = "extraction_failed"
	ReasonModelFailed      FailureReason = "model_failed"
	ReasonMalformedOutput  FailureReason = "malformed_output"
	ReasonInternal         FailureReason = "internal"
)

// Document is the metadata row of an uploaded document.
type Document struct {
	ID            string        `json:"id"`
	StoragePath   string        `json:"storage_path"`
	Status        Status        `json:"status"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	// Graph is nil until a graph has been stored.
	Graph     *graph.Graph `json:"graph"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// DocumentStorage persists document metadata, status and graph. Every write
// returns ErrDocumentNotFound when the id matches no row.
type DocumentStorage interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	SetStatus(ctx context.Context, id string, status Status, reason FailureReason) error
	SaveGraph(ctx context.Context, id string, g graph.Graph) error
	SaveGraphAndStatus(ctx context.Context, id string, g graph.Graph, status Status) error
}
