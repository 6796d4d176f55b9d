package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine. Caller-input errors are returned
// immediately and are never retried.
var (
	ErrInvalidQuery      = errors.New("invalid query")
	ErrQueryTooLong      = errors.New("query too long")
	ErrQueryInjection    = errors.New("query contains suspicious content")
	ErrInvalidDimension  = errors.New("vector dimension mismatch")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrDuplicateNode     = errors.New("duplicate node")
	ErrDanglingReference = errors.New("edge references missing node")
	ErrSelfLoop          = errors.New("self-loop edge")
	ErrInvalidWeight     = errors.New("edge weight out of range")
	ErrInvalidNodeKind   = errors.New("invalid node kind")

	// Embedding failures are fatal for the current answer call only.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrEmbeddingFailed      = errors.New("embedding failed")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
