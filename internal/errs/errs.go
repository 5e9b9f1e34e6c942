package errs

import (
	"errors"
	"fmt"
)

// Extraction failure reasons reported by the insight extractor.
const (
	ReasonNoJSON        = "no JSON structure located"
	ReasonMalformedJSON = "malformed JSON"
	ReasonBadStructure  = "unexpected structure"
)

// ConversionError means the uploaded bytes are not a decodable image. The
// same bytes will always fail the same way, so it is never retried.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Retryable() bool { return false }

// StorageError is a transient object-store failure (network, auth).
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storing object %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Retryable() bool { return true }

// AnalysisError is a failure of the expense-structuring service, including
// throttling and unreachable-service conditions. The stored object is
// durable, so a retry is a pure re-read.
type AnalysisError struct {
	Key string
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzing object %s: %v", e.Key, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func (e *AnalysisError) Retryable() bool { return true }

// ExtractionError means the generated text could not be turned into a
// candidate insight. A regenerated response may differ, so the job as a
// whole is retryable.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting insights: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting insights: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Retryable() bool { return true }

// PersistenceError is a record-store write failure. It is propagated to the
// caller and not retried by the pipeline.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting receipt: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Retryable() bool { return false }

type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether the queue may re-run a job that failed with
// err. Unclassified errors default to retryable.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}
