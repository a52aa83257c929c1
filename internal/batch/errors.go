package batch

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
)

// Sentinel errors for batch writer operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, batch.ErrBatchingDisabled) {
//	    // FlushNow called without EnableBatching
//	}
var (
	// ErrBatchingDisabled indicates an operation that needs an active pipeline.
	ErrBatchingDisabled = errors.New("batch: batching not enabled")

	// ErrAlreadyEnabled indicates EnableBatching was called twice.
	ErrAlreadyEnabled = errors.New("batch: batching already enabled")

	// ErrInvalidConfig indicates a Config failed validation.
	ErrInvalidConfig = errors.New("batch: invalid configuration")

	// ErrWriteFailed indicates a synchronous (non-batched) write failed.
	ErrWriteFailed = errors.New("batch: write failed")
)

// WriteError is returned by synchronous writes. It carries the classified
// outcome of the transport failure and unwraps to both ErrWriteFailed and the
// transport error.
type WriteError struct {
	Outcome classify.Outcome
	Err     error
}

// Error implements error.
func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %s (retryable=%t): %v", ErrWriteFailed, e.Outcome.Kind, e.Outcome.Retryable, e.Err)
}

// Unwrap exposes ErrWriteFailed and the underlying transport error.
func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}
