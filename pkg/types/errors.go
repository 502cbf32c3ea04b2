package types

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped inside IndexingError
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoPages          = errors.New("document has no pages")
	ErrBuildInProgress  = errors.New("index is already being built")
)

// IndexingError is the only fatal, propagated error kind from the indexing
// pipeline. Search-path failures never surface as errors to callers.
type IndexingError struct {
	Op    string // operation that failed, e.g. "index_document"
	DocID int64  // 0 when the failure is not tied to one document
	Err   error
}

func (e *IndexingError) Error() string {
	if e.DocID != 0 {
		return fmt.Sprintf("indexing %s: document %d: %v", e.Op, e.DocID, e.Err)
	}
	return fmt.Sprintf("indexing %s: %v", e.Op, e.Err)
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}

// NewIndexingError wraps err with pipeline context
func NewIndexingError(op string, docID int64, err error) *IndexingError {
	return &IndexingError{Op: op, DocID: docID, Err: err}
}
