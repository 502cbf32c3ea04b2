package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archonlabs/docsearch/internal/storage"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewSQLiteIndex(store.DB())
}

func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "empty", vector: []float32{}},
		{name: "single", vector: []float32{1.5}},
		{name: "typical", vector: []float32{0.1, -0.5, 3.25, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeserializeVector(SerializeVector(tt.vector))
			assert.Equal(t, tt.vector, got)
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestAddAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx, storage.IndexChunks,
		[]int64{1, 2, 3},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, storage.IndexChunks, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Exact match first, then the near neighbor
	assert.Equal(t, int64(1), hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.0001)
	assert.Equal(t, int64(3), hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestAddUpsertsByID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, storage.IndexChunks, []int64{7}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, storage.IndexChunks, []int64{7}, [][]float32{{0, 1}}))

	stats, err := idx.Stats(ctx, storage.IndexChunks)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Vectors)

	hits, err := idx.Search(ctx, storage.IndexChunks, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 0.0001)
}

func TestAddValidation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx, storage.IndexChunks, []int64{1, 2}, [][]float32{{1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	err = idx.Add(ctx, storage.IndexChunks, []int64{1, 2}, [][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// Empty batch is a no-op
	assert.NoError(t, idx.Add(ctx, storage.IndexChunks, nil, nil))
}

func TestIndexNamesIsolated(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, storage.IndexChunks, []int64{1}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, storage.IndexItems, []int64{1}, [][]float32{{0, 1}}))

	hits, err := idx.Search(ctx, storage.IndexItems, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 0.0001)

	chunkStats, err := idx.Stats(ctx, storage.IndexChunks)
	require.NoError(t, err)
	assert.Equal(t, int64(1), chunkStats.Vectors)
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, storage.IndexChunks, []int64{1, 2}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Remove(ctx, storage.IndexChunks, []int64{1}))

	stats, err := idx.Stats(ctx, storage.IndexChunks)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Vectors)

	// Removing an absent id is a no-op
	assert.NoError(t, idx.Remove(ctx, storage.IndexChunks, []int64{1, 99}))
	assert.NoError(t, idx.Remove(ctx, storage.IndexChunks, nil))
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := newTestIndex(t)

	hits, err := idx.Search(context.Background(), storage.IndexChunks, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(context.Background(), storage.IndexChunks, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSaveAndLoad(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, storage.IndexChunks, []int64{1}, [][]float32{{1}}))
	assert.NoError(t, idx.Save(ctx, storage.IndexChunks))
	assert.NoError(t, idx.Load(ctx, storage.IndexChunks))
}

func TestStats(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	stats, err := idx.Stats(ctx, storage.IndexChunks)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Vectors)
	assert.Equal(t, 0, stats.Dimension)

	require.NoError(t, idx.Add(ctx, storage.IndexChunks, []int64{1, 2}, [][]float32{{1, 0, 0}, {0, 1, 0}}))

	stats, err = idx.Stats(ctx, storage.IndexChunks)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Vectors)
	assert.Equal(t, 3, stats.Dimension)
}
