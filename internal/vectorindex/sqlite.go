package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// SQLiteIndex implements Index over the shared SQLite database. Vectors are
// stored as little-endian float32 blobs and similarity is computed in Go,
// which keeps the build pure-Go capable at the cost of a full scan per
// query. Corpora in the tens of thousands of chunks stay well under query
// budgets this way.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex creates a vector index backed by an existing database
// handle. The vectors table is created by the storage migrations.
func NewSQLiteIndex(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

// Add upserts vectors by id within one transaction
func (idx *SQLiteIndex) Add(ctx context.Context, indexName string, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids, %d vectors", ErrLengthMismatch, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO vectors (index_name, vector_id, vector, dimension, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(index_name, vector_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	for i, id := range ids {
		blob := serializeVector(vectors[i])
		if _, err := tx.ExecContext(ctx, query, indexName, id, blob, dim, now); err != nil {
			return fmt.Errorf("failed to add vector %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// Remove deletes vectors by id. Missing ids are not an error, so deleting
// a document twice stays idempotent.
func (idx *SQLiteIndex) Remove(ctx context.Context, indexName string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vectors WHERE index_name = ? AND vector_id = ?`, indexName, id); err != nil {
			return fmt.Errorf("failed to remove vector %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// Search scans the named index and returns the topK most similar vectors
// by cosine similarity, best-first.
func (idx *SQLiteIndex) Search(ctx context.Context, indexName string, query []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}

	rows, err := idx.db.QueryContext(ctx,
		`SELECT vector_id, vector FROM vectors WHERE index_name = ?`, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Hit, 0, 1000)
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(query) {
			continue // Dimension mismatch, skip
		}

		candidates = append(candidates, Hit{ID: id, Score: cosineSimilarity(query, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK], nil
}

// Save flushes the WAL so vectors written in this batch are durable before
// the indexing cursor advances past them.
func (idx *SQLiteIndex) Save(ctx context.Context, indexName string) error {
	if _, err := idx.db.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return fmt.Errorf("failed to checkpoint vector index: %w", err)
	}
	return nil
}

// Load verifies the backing table is readable. Vectors live in the shared
// database, so there is nothing to page in.
func (idx *SQLiteIndex) Load(ctx context.Context, indexName string) error {
	var count int64
	err := idx.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vectors WHERE index_name = ?`, indexName).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to load vector index: %w", err)
	}
	return nil
}

// Stats reports vector count and dimension for one named index
func (idx *SQLiteIndex) Stats(ctx context.Context, indexName string) (*Stats, error) {
	stats := &Stats{IndexName: indexName}

	var dim sql.NullInt64
	err := idx.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(dimension) FROM vectors WHERE index_name = ?`, indexName).
		Scan(&stats.Vectors, &dim)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector stats: %w", err)
	}
	if dim.Valid {
		stats.Dimension = int(dim.Int64)
	}
	return stats, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
