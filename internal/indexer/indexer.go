package indexer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/archonlabs/docsearch/internal/chunker"
	"github.com/archonlabs/docsearch/internal/embedder"
	"github.com/archonlabs/docsearch/internal/storage"
	"github.com/archonlabs/docsearch/internal/vectorindex"
	"github.com/archonlabs/docsearch/pkg/types"
)

// Indexer coordinates the pipeline: chunk -> embed -> store -> vector index
type Indexer struct {
	store    storage.Store
	vectors  vectorindex.Index
	embedder embedder.Embedder
	chunker  *chunker.Chunker

	batchSize    int
	embedWorkers int

	invalidate func()
}

// Config contains tuning knobs for the indexer
type Config struct {
	BatchSize    int // Chunks per embedding call (default: 50)
	EmbedWorkers int // Parallel embedding batches (default: 4)
}

// DocumentStats summarizes one index_document run
type DocumentStats struct {
	DocID    int64
	Pages    int
	Chunks   int
	Vectors  int
	Duration time.Duration
}

// BatchStats summarizes one incremental batch run
type BatchStats struct {
	IndexName string
	Processed int
	LastID    int64
	Remaining int64
	Duration  time.Duration
}

// New creates a new Indexer instance
func New(store storage.Store, vectors vectorindex.Index, emb embedder.Embedder, chk *chunker.Chunker, cfg *Config) *Indexer {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embedder.DefaultBatchSize
	}
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = 4
	}
	return &Indexer{
		store:        store,
		vectors:      vectors,
		embedder:     emb,
		chunker:      chk,
		batchSize:    cfg.BatchSize,
		embedWorkers: cfg.EmbedWorkers,
	}
}

// OnMutation registers a hook invoked after every successful pipeline
// mutation. The searcher wires its cache invalidation here; the cache has
// no version key, so staleness is prevented only by unconditional
// invalidation on write.
func (idx *Indexer) OnMutation(fn func()) {
	idx.invalidate = fn
}

func (idx *Indexer) notifyMutation() {
	if idx.invalidate != nil {
		idx.invalidate()
	}
}

// IndexDocument runs the full pipeline for one document: chunk every page,
// embed all chunk texts in batches, persist chunks, add vectors, and stamp
// the document indexed. On any failure the document is marked failed with
// a human-readable message and an IndexingError is returned; no retry
// happens inside this call.
func (idx *Indexer) IndexDocument(ctx context.Context, docID int64) (*DocumentStats, error) {
	start := time.Now()

	doc, err := idx.store.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = types.ErrDocumentNotFound
		}
		return nil, types.NewIndexingError("index_document", docID, err)
	}

	stats, err := idx.indexDocument(ctx, doc)
	if err != nil {
		doc.MarkFailed(err.Error())
		if uerr := idx.store.UpdateDocument(ctx, doc); uerr != nil {
			log.Printf("failed to mark document %d failed: %v", docID, uerr)
		}
		return nil, types.NewIndexingError("index_document", docID, err)
	}

	idx.notifyMutation()
	stats.Duration = time.Since(start)
	return stats, nil
}

func (idx *Indexer) indexDocument(ctx context.Context, doc *types.Document) (*DocumentStats, error) {
	doc.Status = types.StatusProcessing
	if err := idx.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	pages, err := idx.store.GetPages(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, types.ErrNoPages
	}

	// Reindex is a wholesale recreate: old chunks and their vectors go
	// before new ones are written
	if err := idx.removeDocumentChunks(ctx, doc.ID); err != nil {
		return nil, err
	}

	var chunks []*types.Chunk
	for _, page := range pages {
		chunks = append(chunks, idx.chunker.ChunkPage(page)...)
	}

	// Blank pages produce zero chunks; that is not an error
	if len(chunks) > 0 {
		if err := idx.store.CreateChunks(ctx, chunks); err != nil {
			return nil, err
		}

		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.EmbeddingText()
		}

		vectors, err := idx.embedAll(ctx, texts)
		if err != nil {
			return nil, err
		}

		ids := make([]int64, len(chunks))
		for i, chunk := range chunks {
			ids[i] = chunk.ID
		}

		// Vector add must succeed before the id is persisted on the chunk
		if err := idx.vectors.Add(ctx, storage.IndexChunks, ids, vectors); err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			if err := idx.store.SetChunkVectorID(ctx, chunk.ID, chunk.ID); err != nil {
				return nil, err
			}
		}
		if err := idx.vectors.Save(ctx, storage.IndexChunks); err != nil {
			return nil, err
		}
	}

	doc.PageCount = len(pages)
	doc.MarkIndexed(time.Now())
	if err := idx.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	return &DocumentStats{
		DocID:   doc.ID,
		Pages:   len(pages),
		Chunks:  len(chunks),
		Vectors: len(chunks),
	}, nil
}

// removeDocumentChunks clears a document's chunks and their vectors
func (idx *Indexer) removeDocumentChunks(ctx context.Context, docID int64) error {
	existing, err := idx.store.GetChunks(ctx, docID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		ids := make([]int64, 0, len(existing))
		for _, chunk := range existing {
			if chunk.VectorID != nil {
				ids = append(ids, *chunk.VectorID)
			}
		}
		if err := idx.vectors.Remove(ctx, storage.IndexChunks, ids); err != nil {
			return err
		}
		if err := idx.store.DeleteChunksByDocument(ctx, docID); err != nil {
			return err
		}
	}
	return nil
}

// embedAll embeds texts in parallel batches, preserving position
func (idx *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.embedWorkers)

	for start := 0; start < len(texts); start += idx.batchSize {
		end := min(start+idx.batchSize, len(texts))
		g.Go(func() error {
			batch, err := idx.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// IndexPending embeds and vector-indexes chunks past the durable cursor,
// up to limit (0 means the whole backlog). It holds the "chunks" build
// lease for the duration; a concurrent build fails fast with an
// "already being built" error instead of blocking.
func (idx *Indexer) IndexPending(ctx context.Context, limit int) (*BatchStats, error) {
	return idx.runChunkBuild(ctx, "index_pending", false, limit)
}

// RebuildIndex discards incremental progress and reprocesses the full
// chunk backlog under one lease
func (idx *Indexer) RebuildIndex(ctx context.Context) (*BatchStats, error) {
	return idx.runChunkBuild(ctx, "rebuild_index", true, 0)
}

func (idx *Indexer) runChunkBuild(ctx context.Context, op string, reset bool, limit int) (*BatchStats, error) {
	start := time.Now()

	owner := uuid.NewString()
	acquired, err := idx.store.AcquireLease(ctx, storage.IndexChunks, owner)
	if err != nil {
		return nil, types.NewIndexingError(op, 0, err)
	}
	if !acquired {
		return nil, types.NewIndexingError(op, 0, types.ErrBuildInProgress)
	}
	defer func() {
		if rerr := idx.store.ReleaseLease(ctx, storage.IndexChunks); rerr != nil {
			log.Printf("failed to release %s lease: %v", storage.IndexChunks, rerr)
		}
	}()

	if reset {
		if err := idx.store.ResetState(ctx, storage.IndexChunks); err != nil {
			return nil, types.NewIndexingError(op, 0, err)
		}
	}

	state, err := idx.store.GetState(ctx, storage.IndexChunks)
	if err != nil {
		return nil, types.NewIndexingError(op, 0, err)
	}

	processed := 0
	for limit <= 0 || processed < limit {
		fetch := idx.batchSize
		if limit > 0 {
			fetch = min(fetch, limit-processed)
		}

		chunks, err := idx.store.GetChunksForIndexing(ctx, state.LastChunkID, fetch)
		if err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		if len(chunks) == 0 {
			break
		}

		texts := make([]string, len(chunks))
		ids := make([]int64, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.EmbeddingText()
			ids[i] = chunk.ID
		}

		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		if err := idx.vectors.Add(ctx, storage.IndexChunks, ids, vectors); err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		for _, chunk := range chunks {
			if err := idx.store.SetChunkVectorID(ctx, chunk.ID, chunk.ID); err != nil {
				return nil, idx.failBuild(ctx, op, state, err)
			}
		}
		if err := idx.vectors.Save(ctx, storage.IndexChunks); err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}

		// The cursor advances only after the vectors are durable: a crash
		// before this point reprocesses the same chunks, and re-adding an
		// id overwrites rather than duplicates
		state.LastChunkID = chunks[len(chunks)-1].ID
		state.TotalIndexed += int64(len(chunks))
		if err := idx.flushState(ctx, state); err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		processed += len(chunks)
	}

	if processed > 0 {
		idx.notifyMutation()
	}

	return &BatchStats{
		IndexName: storage.IndexChunks,
		Processed: processed,
		LastID:    state.LastChunkID,
		Remaining: state.PendingCount,
		Duration:  time.Since(start),
	}, nil
}

// IndexPendingItems is the items-index counterpart of IndexPending
func (idx *Indexer) IndexPendingItems(ctx context.Context, limit int) (*BatchStats, error) {
	start := time.Now()
	op := "index_pending_items"

	owner := uuid.NewString()
	acquired, err := idx.store.AcquireLease(ctx, storage.IndexItems, owner)
	if err != nil {
		return nil, types.NewIndexingError(op, 0, err)
	}
	if !acquired {
		return nil, types.NewIndexingError(op, 0, types.ErrBuildInProgress)
	}
	defer func() {
		if rerr := idx.store.ReleaseLease(ctx, storage.IndexItems); rerr != nil {
			log.Printf("failed to release %s lease: %v", storage.IndexItems, rerr)
		}
	}()

	state, err := idx.store.GetState(ctx, storage.IndexItems)
	if err != nil {
		return nil, types.NewIndexingError(op, 0, err)
	}

	processed := 0
	for limit <= 0 || processed < limit {
		fetch := idx.batchSize
		if limit > 0 {
			fetch = min(fetch, limit-processed)
		}

		items, err := idx.store.GetItemsForIndexing(ctx, state.LastItemID, fetch)
		if err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		if len(items) == 0 {
			break
		}

		texts := make([]string, len(items))
		ids := make([]int64, len(items))
		for i, item := range items {
			texts[i] = item.Text
			ids[i] = item.ID
		}

		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		if err := idx.vectors.Add(ctx, storage.IndexItems, ids, vectors); err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		if err := idx.vectors.Save(ctx, storage.IndexItems); err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}

		state.LastItemID = items[len(items)-1].ID
		state.TotalIndexed += int64(len(items))
		if err := idx.flushState(ctx, state); err != nil {
			return nil, idx.failBuild(ctx, op, state, err)
		}
		processed += len(items)
	}

	if processed > 0 {
		idx.notifyMutation()
	}

	return &BatchStats{
		IndexName: storage.IndexItems,
		Processed: processed,
		LastID:    state.LastItemID,
		Remaining: state.PendingCount,
		Duration:  time.Since(start),
	}, nil
}

// flushState recomputes the pending count and persists the cursor
func (idx *Indexer) flushState(ctx context.Context, state *storage.IndexingState) error {
	var pending int64
	var err error
	switch state.IndexName {
	case storage.IndexItems:
		pending, err = idx.store.CountItemsAfter(ctx, state.LastItemID)
	default:
		pending, err = idx.store.CountChunksAfter(ctx, state.LastChunkID)
	}
	if err != nil {
		return err
	}

	now := time.Now()
	state.PendingCount = pending
	state.LastRunAt = &now
	state.LastError = nil
	return idx.store.UpdateState(ctx, state)
}

// failBuild records the failure on the durable state and wraps the error.
// Partial progress already flushed stays; un-flushed work is lost and the
// cursor still points at the last durable batch.
func (idx *Indexer) failBuild(ctx context.Context, op string, state *storage.IndexingState, cause error) error {
	msg := cause.Error()
	state.LastError = &msg
	if err := idx.store.UpdateState(ctx, state); err != nil {
		log.Printf("failed to record %s error on state: %v", op, err)
	}
	return types.NewIndexingError(op, 0, cause)
}

// DeleteDocument removes a document with its pages, chunks, and vectors
func (idx *Indexer) DeleteDocument(ctx context.Context, docID int64) error {
	if _, err := idx.store.GetDocument(ctx, docID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = types.ErrDocumentNotFound
		}
		return types.NewIndexingError("delete_document", docID, err)
	}

	if err := idx.removeDocumentChunks(ctx, docID); err != nil {
		return types.NewIndexingError("delete_document", docID, err)
	}
	if err := idx.store.DeleteDocument(ctx, docID); err != nil {
		return types.NewIndexingError("delete_document", docID, err)
	}

	idx.notifyMutation()
	return nil
}

// Status describes both logical indexes for operational visibility
type Status struct {
	Chunks       *storage.IndexingState
	Items        *storage.IndexingState
	ChunkVectors *vectorindex.Stats
	ItemVectors  *vectorindex.Stats
}

// Status reports the durable cursors and vector counts
func (idx *Indexer) Status(ctx context.Context) (*Status, error) {
	chunks, err := idx.store.GetState(ctx, storage.IndexChunks)
	if err != nil {
		return nil, err
	}
	items, err := idx.store.GetState(ctx, storage.IndexItems)
	if err != nil {
		return nil, err
	}
	chunkVectors, err := idx.vectors.Stats(ctx, storage.IndexChunks)
	if err != nil {
		return nil, err
	}
	itemVectors, err := idx.vectors.Stats(ctx, storage.IndexItems)
	if err != nil {
		return nil, err
	}
	return &Status{
		Chunks:       chunks,
		Items:        items,
		ChunkVectors: chunkVectors,
		ItemVectors:  itemVectors,
	}, nil
}
