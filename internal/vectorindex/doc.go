// Package vectorindex stores embeddings and serves nearest-neighbor search
// by cosine similarity.
//
// Vectors are keyed by caller-assigned ids under a named index, which lets
// chunk and item embeddings share one backend without colliding. Add is an
// upsert, so retrying a crashed indexing batch overwrites half-written
// vectors instead of duplicating them.
//
// The SQLite implementation keeps vectors in the same database file as the
// rest of the corpus: one file to back up, one transaction domain, and no
// external index server to run.
package vectorindex
