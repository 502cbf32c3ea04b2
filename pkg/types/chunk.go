package types

import (
	"errors"
	"time"
)

// Metadata keys every chunk must carry. Both are used for display and to
// prefix the text handed to the embedding provider.
const (
	MetaPageNo   = "page_no"
	MetaPageType = "page_type"
)

// Chunk is the retrievable unit: a bounded span of a page's text.
type Chunk struct {
	ID         int64
	DocID      int64
	PageID     int64
	ChunkIndex int // 0-based within the page
	Text       string
	StartChar  int
	EndChar    int
	Metadata   map[string]string

	// VectorID links the chunk to its row in the vector index once
	// embedded. A non-nil VectorID means the vector is present: the add
	// must succeed before the id is persisted.
	VectorID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the chunk invariants that hold at creation time
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	if c.ChunkIndex < 0 {
		return errors.New("chunk index must be >= 0")
	}
	if c.StartChar < 0 || c.EndChar < c.StartChar {
		return errors.New("invalid character span")
	}
	if c.DocID == 0 || c.PageID == 0 {
		return errors.New("chunk must reference a document and a page")
	}
	if c.Metadata[MetaPageNo] == "" || c.Metadata[MetaPageType] == "" {
		return errors.New("chunk metadata must carry page_no and page_type")
	}
	return nil
}

// EmbeddingText returns the page-type-prefixed text handed to the
// embedding provider, so thematically similar chunks across documents
// cluster better.
func (c *Chunk) EmbeddingText() string {
	pageType := c.Metadata[MetaPageType]
	if pageType == "" {
		return c.Text
	}
	return "[" + pageType + "] " + c.Text
}
