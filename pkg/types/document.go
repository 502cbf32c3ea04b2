package types

import (
	"errors"
	"time"
)

// DocumentStatus tracks a document through the indexing pipeline
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Document represents a source file's metadata. Created by an upstream
// ingestion collaborator; mutated exclusively by the indexing pipeline
// after creation.
type Document struct {
	ID                int64
	Filename          string
	SizeBytes         int64
	Status            DocumentStatus
	IsLatest          bool
	PreviousVersionID *int64 // Nullable - set when a newer upload supersedes this one
	PageCount         int
	Metadata          map[string]string
	ErrorMessage      *string    // Nullable - set when Status is failed
	IndexedAt         *time.Time // Nullable until the pipeline completes
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Page holds one page's extracted text plus its classification.
// Immutable once created except for classification back-fill.
type Page struct {
	ID             int64
	DocID          int64
	PageNo         int // 1-based
	Text           string
	Classification string
	Confidence     float64
	CreatedAt      time.Time
}

// Item is a structured line item extracted from a document by an
// out-of-scope collaborator. This core only indexes and retrieves items;
// it never creates or mutates them.
type Item struct {
	ID        int64
	DocID     int64
	Text      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// ValidateStatus checks the document status is one of the known states
func (d *Document) ValidateStatus() error {
	switch d.Status {
	case StatusPending, StatusProcessing, StatusIndexed, StatusFailed:
		return nil
	default:
		return errors.New("invalid document status")
	}
}

// MarkFailed records a failure message and flips the status
func (d *Document) MarkFailed(msg string) {
	d.Status = StatusFailed
	d.ErrorMessage = &msg
}

// MarkIndexed stamps the document as fully indexed at the given time
func (d *Document) MarkIndexed(at time.Time) {
	d.Status = StatusIndexed
	d.IndexedAt = &at
	d.ErrorMessage = nil
}
