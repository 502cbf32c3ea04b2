// Package types provides shared type definitions for the docsearch engine.
//
// This package defines the domain model used across the indexing pipeline
// and the hybrid search engine: documents, pages, chunks, items, indexing
// state, and search results.
//
// # Core Types
//
// Document tracks a source file through the pipeline:
//
//	doc := &types.Document{
//	    Filename: "invoice-2024-031.pdf",
//	    Status:   types.StatusPending,
//	}
//
// Chunk is the retrievable unit, a bounded span of one page's text:
//
//	chunk := &types.Chunk{
//	    DocID:      doc.ID,
//	    PageID:     page.ID,
//	    ChunkIndex: 0,
//	    Text:       "Total amount due...",
//	    Metadata:   map[string]string{"page_no": "1", "page_type": "invoice"},
//	}
//
// # Search Results
//
// SearchResult is transient and never persisted. Its identity is a tagged
// union rather than a sentinel id:
//
//	res := types.SearchResult{
//	    Identity: types.ChunkIdentity(chunk.ID),
//	    Text:     chunk.Text,
//	}
//
// All scores in the family are normalized so that higher is better.
//
// # Errors
//
// IndexingError is the single propagated error kind from the pipeline.
// Callers match on the wrapped sentinels:
//
//	if errors.Is(err, types.ErrBuildInProgress) {
//	    // retry later
//	}
package types
