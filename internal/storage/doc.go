// Package storage persists documents, pages, chunks and indexing state in
// SQLite, and serves ranked full-text search over chunk and item text.
//
// # Schema
//
// The schema is managed through semver-ordered migrations applied at open:
//
//	documents -> pages -> chunks (+ chunks_fts) -> items (+ items_fts)
//	indexing_state (one row per logical index name)
//	vectors (float32 blobs, written through the vector index)
//
// FTS5 virtual tables are kept in sync with content tables via triggers, so
// chunk inserts and deletes never need explicit FTS bookkeeping.
//
// # Dual Driver Builds
//
// Two SQLite drivers are supported through build tags:
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite,fts5" ./...   # mattn/go-sqlite3
//	CGO_ENABLED=0 go build ./...                           # modernc.org/sqlite
//
// # Indexing State and the Build Lease
//
// indexing_state carries the durable cursor for incremental indexing plus a
// cooperative lease:
//
//	ok, err := store.AcquireLease(ctx, storage.IndexChunks, owner)
//	if !ok {
//	    // another process is building; fail fast
//	}
//	defer store.ReleaseLease(ctx, storage.IndexChunks)
//
// Acquisition is a single UPDATE ... WHERE is_building = 0 compare-and-set,
// so the lease survives process restarts and is visible to every process
// sharing the database file.
//
// # Search Scoring
//
// bm25() ranks are negative with lower-is-better. SearchChunksFTS and
// SearchItemsFTS store the absolute value so every score in the system is
// non-negative and higher-is-better.
package storage
