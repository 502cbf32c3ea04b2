package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatusTransitions(t *testing.T) {
	doc := &Document{Status: StatusPending}
	require.NoError(t, doc.ValidateStatus())

	doc.MarkFailed("embedding provider down")
	assert.Equal(t, StatusFailed, doc.Status)
	require.NotNil(t, doc.ErrorMessage)
	assert.Equal(t, "embedding provider down", *doc.ErrorMessage)

	// A later successful run clears the failure
	at := time.Now()
	doc.MarkIndexed(at)
	assert.Equal(t, StatusIndexed, doc.Status)
	require.NotNil(t, doc.IndexedAt)
	assert.Equal(t, at, *doc.IndexedAt)
	assert.Nil(t, doc.ErrorMessage)

	doc.Status = "shredded"
	assert.Error(t, doc.ValidateStatus())
}

func validChunk() *Chunk {
	return &Chunk{
		DocID:      1,
		PageID:     2,
		ChunkIndex: 0,
		Text:       "some chunk text",
		StartChar:  0,
		EndChar:    15,
		Metadata: map[string]string{
			MetaPageNo:   "1",
			MetaPageType: "invoice",
		},
	}
}

func TestChunkValidate(t *testing.T) {
	require.NoError(t, validChunk().Validate())

	tests := []struct {
		name   string
		mutate func(*Chunk)
	}{
		{"empty text", func(c *Chunk) { c.Text = "" }},
		{"negative index", func(c *Chunk) { c.ChunkIndex = -1 }},
		{"negative start", func(c *Chunk) { c.StartChar = -1 }},
		{"end before start", func(c *Chunk) { c.StartChar = 10; c.EndChar = 5 }},
		{"missing doc", func(c *Chunk) { c.DocID = 0 }},
		{"missing page", func(c *Chunk) { c.PageID = 0 }},
		{"missing page_no", func(c *Chunk) { delete(c.Metadata, MetaPageNo) }},
		{"missing page_type", func(c *Chunk) { c.Metadata[MetaPageType] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := validChunk()
			tt.mutate(chunk)
			assert.Error(t, chunk.Validate())
		})
	}
}

func TestChunkEmbeddingText(t *testing.T) {
	chunk := validChunk()
	assert.Equal(t, "[invoice] some chunk text", chunk.EmbeddingText())

	chunk.Metadata = nil
	assert.Equal(t, "some chunk text", chunk.EmbeddingText())
}

func TestResultIdentity(t *testing.T) {
	chunk := ChunkIdentity(7)
	assert.Equal(t, IdentityChunk, chunk.Kind)
	assert.Equal(t, int64(7), chunk.ID)
	assert.False(t, chunk.IsNone())

	item := ItemIdentity(7)
	assert.False(t, item.IsNone())
	assert.NotEqual(t, chunk, item, "same id, different kind")

	assert.True(t, ResultIdentity{}.IsNone())
	assert.True(t, ChunkIdentity(0).IsNone(), "zero id carries no identity")

	// Identities are comparable map keys
	seen := map[ResultIdentity]bool{chunk: true}
	assert.True(t, seen[ChunkIdentity(7)])
	assert.False(t, seen[item])
}

func TestIndexingError(t *testing.T) {
	err := NewIndexingError("index_document", 12, ErrNoPages)
	assert.Contains(t, err.Error(), "index_document")
	assert.Contains(t, err.Error(), "document 12")
	assert.ErrorIs(t, err, ErrNoPages)

	var ierr *IndexingError
	require.ErrorAs(t, error(err), &ierr)
	assert.Equal(t, int64(12), ierr.DocID)

	// No document attached
	batch := NewIndexingError("index_pending", 0, errors.New("embed failed"))
	assert.NotContains(t, batch.Error(), "document")
}
