package vectorindex

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the index's established dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch is returned when ids and vectors differ in length
	ErrLengthMismatch = errors.New("ids and vectors length mismatch")
)

// Hit is one nearest-neighbor match, best-first by similarity
type Hit struct {
	ID    int64
	Score float64 // cosine similarity, higher is better
}

// Stats describes the current contents of one named index
type Stats struct {
	IndexName string
	Vectors   int64
	Dimension int
}

// Index stores fixed-length vectors keyed by caller-assigned ids and
// serves similarity search. Add is an upsert: re-adding an id overwrites
// the previous vector, which makes crash-retry of an indexing batch safe.
type Index interface {
	Add(ctx context.Context, indexName string, ids []int64, vectors [][]float32) error
	Remove(ctx context.Context, indexName string, ids []int64) error
	Search(ctx context.Context, indexName string, query []float32, topK int) ([]Hit, error)
	Save(ctx context.Context, indexName string) error
	Load(ctx context.Context, indexName string) error
	Stats(ctx context.Context, indexName string) (*Stats, error)
}
