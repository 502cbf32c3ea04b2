// Package reranker re-scores search candidates with a cross-encoder.
//
// Cross-encoders evaluate the query and a document together, which is far
// more accurate than comparing independent embeddings, at the cost of one
// API round trip per query. Reranking is worth enabling when the top
// candidates cluster around similar fused scores.
//
// The package never fails a search: when no API key is configured, or the
// backend errors, ranking degrades to the incoming order with synthetic
// decreasing scores. Whether a real backend is present is visible through
// Enabled().
package reranker
