package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument indicates a stored document could not be decoded.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrStoreUnavailable indicates the store answered but refused the operation.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DocumentError wraps document-related errors with additional context.
type DocumentError struct {
	Op       string // Operation being performed (e.g., "Load", "Save")
	Document string // Document name
	Err      error  // Underlying error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s operation failed for document %s: %v", e.Op, e.Document, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for document errors.
func (e *DocumentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDocumentError creates a new document error with context.
func NewDocumentError(op, document string, err error) *DocumentError {
	return &DocumentError{
		Op:       op,
		Document: document,
		Err:      err,
	}
}

// IsInvalidDocument checks if an error indicates a stored document is corrupt.
func IsInvalidDocument(err error) bool {
	return errors.Is(err, ErrInvalidDocument)
}

// IsStoreUnavailable checks if an error indicates the store refused the operation.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
