// Package indexer coordinates the end-to-end document indexing pipeline.
//
// The indexer orchestrates chunking, embedding, chunk persistence, and
// vector-index population, and owns every mutation of document status.
//
// # Basic Usage
//
//	idx := indexer.New(store, vectors, emb, chunker, nil)
//
//	stats, err := idx.IndexDocument(ctx, docID)
//	fmt.Printf("indexed %d chunks from %d pages in %v\n",
//	    stats.Chunks, stats.Pages, stats.Duration)
//
// # Pipeline Stages
//
//  1. Load the document and its pages (missing document or zero pages fail)
//  2. Chunk each page's text; blank pages contribute zero chunks
//  3. Persist chunks, then embed their page-type-prefixed texts in batches
//  4. Add vectors, record the vector id on each chunk, save the index
//  5. Stamp the document indexed
//
// The ordering matters: chunk persistence happens before vector-index
// population, which happens before the indexed stamp. A crash in between
// leaves the document failed, never falsely indexed.
//
// # Incremental Batches
//
// IndexPending and IndexPendingItems process the backlog past a durable
// cursor under a persisted build lease. Only one build per index name may
// run at a time, across processes; a concurrent attempt fails fast with an
// "already being built" error. The cursor advances only after vectors are
// durably saved, so a crashed batch is reprocessed safely (vector add is
// an upsert by id).
//
// # Failure Semantics
//
// Document-level failures are isolated: the document is marked failed with
// a readable message and an IndexingError returns to the caller, who owns
// the retry decision. Batch failures record last_error on the state, keep
// already-flushed progress, and release the lease.
//
// Every successful mutation fires the OnMutation hook so the search result
// cache is invalidated before a stale entry can be served.
package indexer
