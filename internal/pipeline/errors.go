package pipeline

import (
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"
)

// stageError carries the failure reason of the ingest stage that detected it.
type stageError struct {
	stage  string
	reason store.FailureReason
	err    error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

func failStage(stage string, reason store.FailureReason, err error) error {
	return &stageError{stage: stage, reason: reason, err: err}
}

// terminalStatus maps the outcome of an ingest run onto the status and reason
// that get persisted.
func terminalStatus(err error) (store.Status, store.FailureReason) {
	if err == nil {
		return store.StatusCompleted, store.ReasonNone
	}
	var se *stageError
	if errors.As(err, &se) {
		return store.StatusFailed, se.reason
	}
	return store.StatusFailed, store.ReasonInternal
}

func extractionReason(kind graph.ErrorKind) store.FailureReason {
	switch kind {
	case graph.ErrorKindModel:
		return store.ReasonModelFailed
	case graph.ErrorKindMalformed:
		return store.ReasonMalformedOutput
	}
	return store.ReasonInternal
}
