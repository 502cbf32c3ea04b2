package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/archonlabs/docsearch/pkg/types"
)

// Store defines the persistence boundary consumed by the indexing pipeline
// and the hybrid search engine.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, docID int64) (*types.Document, error)
	UpdateDocument(ctx context.Context, doc *types.Document) error
	DeleteDocument(ctx context.Context, docID int64) error

	// Page operations
	CreatePages(ctx context.Context, pages []*types.Page) error
	GetPages(ctx context.Context, docID int64) ([]*types.Page, error)
	UpdatePageClassification(ctx context.Context, pageID int64, classification string, confidence float64) error

	// Chunk operations
	CreateChunks(ctx context.Context, chunks []*types.Chunk) error
	GetChunks(ctx context.Context, docID int64) ([]*types.Chunk, error)
	GetChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*types.Chunk, error)
	SetChunkVectorID(ctx context.Context, chunkID, vectorID int64) error
	DeleteChunksByDocument(ctx context.Context, docID int64) error

	// GetChunksForIndexing returns chunks with id strictly greater than
	// lastChunkID, ordered by id ascending, up to limit.
	GetChunksForIndexing(ctx context.Context, lastChunkID int64, limit int) ([]*types.Chunk, error)
	CountChunksAfter(ctx context.Context, lastChunkID int64) (int64, error)

	// Item operations
	CreateItems(ctx context.Context, items []*types.Item) error
	GetItemsByIDs(ctx context.Context, itemIDs []int64) ([]*types.Item, error)
	GetItemsForIndexing(ctx context.Context, lastItemID int64, limit int) ([]*types.Item, error)
	CountItemsAfter(ctx context.Context, lastItemID int64) (int64, error)

	// Full-text search. Results are ordered best-first with non-negative
	// scores and sequential FinalRank starting at 0.
	SearchChunksFTS(ctx context.Context, query string, limit int) ([]types.SearchResult, error)
	SearchItemsFTS(ctx context.Context, query string, limit int) ([]types.SearchResult, error)

	// Indexing state operations
	GetState(ctx context.Context, indexName string) (*IndexingState, error)
	UpdateState(ctx context.Context, state *IndexingState) error
	ResetState(ctx context.Context, indexName string) error
	AcquireLease(ctx context.Context, indexName, owner string) (bool, error)
	ReleaseLease(ctx context.Context, indexName string) error

	// Database operations
	DB() *sql.DB
	Close() error
}

// IndexingState is the durable cursor + lease for one logical index name.
// At most one process holds IsBuilding for a given name at any time.
type IndexingState struct {
	IndexName      string
	LastDocID      int64
	LastChunkID    int64
	LastItemID     int64
	TotalIndexed   int64
	PendingCount   int64
	IsBuilding     bool
	LockOwner      string
	LockAcquiredAt *time.Time
	LastError      *string
	LastRunAt      *time.Time
	UpdatedAt      time.Time
}

// Logical index names used by the pipeline
const (
	IndexChunks = "chunks"
	IndexItems  = "items"
)
