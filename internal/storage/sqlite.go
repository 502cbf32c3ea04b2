package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/archonlabs/docsearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so the vector index can share the same
// database file and transaction semantics.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// marshalMeta serializes a metadata map to a nullable JSON column
func marshalMeta(meta map[string]string) (interface{}, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalMeta deserializes a nullable JSON column into a metadata map
func unmarshalMeta(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	meta := make(map[string]string)
	if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// Document operations

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *types.Document) error {
	meta, err := marshalMeta(doc.Metadata)
	if err != nil {
		return err
	}

	if doc.Status == "" {
		doc.Status = types.StatusPending
	}

	query := `
		INSERT INTO documents (filename, size_bytes, status, is_latest, previous_version_id,
		                       page_count, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		doc.Filename, doc.SizeBytes, doc.Status, doc.IsLatest, doc.PreviousVersionID,
		doc.PageCount, meta, now, now)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, docID int64) (*types.Document, error) {
	query := `
		SELECT id, filename, size_bytes, status, is_latest, previous_version_id,
		       page_count, metadata, error_message, indexed_at, created_at, updated_at
		FROM documents
		WHERE id = ?
	`
	var doc types.Document
	var meta sql.NullString
	var errMsg sql.NullString
	var prevID sql.NullInt64
	var indexedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, docID).Scan(
		&doc.ID, &doc.Filename, &doc.SizeBytes, &doc.Status, &doc.IsLatest, &prevID,
		&doc.PageCount, &meta, &errMsg, &indexedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if doc.Metadata, err = unmarshalMeta(meta); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		doc.ErrorMessage = &errMsg.String
	}
	if prevID.Valid {
		doc.PreviousVersionID = &prevID.Int64
	}
	if indexedAt.Valid {
		doc.IndexedAt = &indexedAt.Time
	}
	return &doc, nil
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *types.Document) error {
	meta, err := marshalMeta(doc.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET filename = ?, size_bytes = ?, status = ?, is_latest = ?, previous_version_id = ?,
		    page_count = ?, metadata = ?, error_message = ?, indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		doc.Filename, doc.SizeBytes, doc.Status, doc.IsLatest, doc.PreviousVersionID,
		doc.PageCount, meta, doc.ErrorMessage, doc.IndexedAt, now, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID int64) error {
	// ON DELETE CASCADE removes pages, chunks and items
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID)
	return err
}

// Page operations

func (s *SQLiteStore) CreatePages(ctx context.Context, pages []*types.Page) error {
	if len(pages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO pages (doc_id, page_no, text, classification, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, page := range pages {
		result, err := tx.ExecContext(ctx, query,
			page.DocID, page.PageNo, page.Text, page.Classification, page.Confidence, now)
		if err != nil {
			return fmt.Errorf("failed to create page %d: %w", page.PageNo, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		page.ID = id
		page.CreatedAt = now
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetPages(ctx context.Context, docID int64) ([]*types.Page, error) {
	query := `
		SELECT id, doc_id, page_no, text, classification, confidence, created_at
		FROM pages
		WHERE doc_id = ?
		ORDER BY page_no
	`
	rows, err := s.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pages := make([]*types.Page, 0)
	for rows.Next() {
		var page types.Page
		err := rows.Scan(&page.ID, &page.DocID, &page.PageNo, &page.Text,
			&page.Classification, &page.Confidence, &page.CreatedAt)
		if err != nil {
			return nil, err
		}
		pages = append(pages, &page)
	}
	return pages, rows.Err()
}

func (s *SQLiteStore) UpdatePageClassification(ctx context.Context, pageID int64, classification string, confidence float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE pages SET classification = ?, confidence = ? WHERE id = ?`,
		classification, confidence, pageID)
	if err != nil {
		return fmt.Errorf("failed to update page classification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Chunk operations

// CreateChunks persists all chunks in one transaction so a failed batch
// leaves no partial page behind.
func (s *SQLiteStore) CreateChunks(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO chunks (doc_id, page_id, chunk_index, text, start_char, end_char,
		                    metadata, vector_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, chunk := range chunks {
		meta, err := marshalMeta(chunk.Metadata)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, query,
			chunk.DocID, chunk.PageID, chunk.ChunkIndex, chunk.Text,
			chunk.StartChar, chunk.EndChar, meta, chunk.VectorID, now, now)
		if err != nil {
			return fmt.Errorf("failed to create chunk %d: %w", chunk.ChunkIndex, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		chunk.ID = id
		chunk.CreatedAt = now
		chunk.UpdatedAt = now
	}

	return tx.Commit()
}

// scanChunkRows reads chunk rows produced by the standard column list
func scanChunkRows(rows *sql.Rows) ([]*types.Chunk, error) {
	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		var chunk types.Chunk
		var meta sql.NullString
		var vectorID sql.NullInt64

		err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.PageID, &chunk.ChunkIndex,
			&chunk.Text, &chunk.StartChar, &chunk.EndChar, &meta, &vectorID,
			&chunk.CreatedAt, &chunk.UpdatedAt)
		if err != nil {
			return nil, err
		}

		if chunk.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, err
		}
		if vectorID.Valid {
			id := vectorID.Int64
			chunk.VectorID = &id
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

const chunkColumns = `id, doc_id, page_id, chunk_index, text, start_char, end_char,
	       metadata, vector_id, created_at, updated_at`

func (s *SQLiteStore) GetChunks(ctx context.Context, docID int64) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE doc_id = ? ORDER BY page_id, chunk_index`
	rows, err := s.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanChunkRows(rows)
}

func (s *SQLiteStore) GetChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*types.Chunk, error) {
	if len(chunkIDs) == 0 {
		return []*types.Chunk{}, nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanChunkRows(rows)
}

func (s *SQLiteStore) SetChunkVectorID(ctx context.Context, chunkID, vectorID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET vector_id = ?, updated_at = ? WHERE id = ?`,
		vectorID, time.Now(), chunkID)
	if err != nil {
		return fmt.Errorf("failed to set chunk vector id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteChunksByDocument(ctx context.Context, docID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	return err
}

func (s *SQLiteStore) GetChunksForIndexing(ctx context.Context, lastChunkID int64, limit int) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id > ? ORDER BY id ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, lastChunkID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanChunkRows(rows)
}

func (s *SQLiteStore) CountChunksAfter(ctx context.Context, lastChunkID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE id > ?`, lastChunkID).Scan(&count)
	return count, err
}

// Item operations

func (s *SQLiteStore) CreateItems(ctx context.Context, items []*types.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO items (doc_id, text, metadata, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	for _, item := range items {
		meta, err := marshalMeta(item.Metadata)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, query, item.DocID, item.Text, meta, now)
		if err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = id
		item.CreatedAt = now
	}

	return tx.Commit()
}

func scanItemRows(rows *sql.Rows) ([]*types.Item, error) {
	items := make([]*types.Item, 0)
	for rows.Next() {
		var item types.Item
		var meta sql.NullString
		err := rows.Scan(&item.ID, &item.DocID, &item.Text, &meta, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		if item.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetItemsByIDs(ctx context.Context, itemIDs []int64) ([]*types.Item, error) {
	if len(itemIDs) == 0 {
		return []*types.Item{}, nil
	}

	placeholders := make([]string, len(itemIDs))
	args := make([]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, doc_id, text, metadata, created_at FROM items WHERE id IN (` +
		strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanItemRows(rows)
}

func (s *SQLiteStore) GetItemsForIndexing(ctx context.Context, lastItemID int64, limit int) ([]*types.Item, error) {
	query := `SELECT id, doc_id, text, metadata, created_at FROM items WHERE id > ? ORDER BY id ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, lastItemID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanItemRows(rows)
}

func (s *SQLiteStore) CountItemsAfter(ctx context.Context, lastItemID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id > ?`, lastItemID).Scan(&count)
	return count, err
}
