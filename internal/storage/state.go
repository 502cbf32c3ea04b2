package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// stateColumns is the standard column list for indexing_state reads
const stateColumns = `index_name, last_doc_id, last_chunk_id, last_item_id, total_indexed,
	       pending_count, is_building, lock_owner, lock_acquired_at, last_error, last_run_at, updated_at`

// GetState returns the state row for an index name, creating a zeroed row
// on first use.
func (s *SQLiteStore) GetState(ctx context.Context, indexName string) (*IndexingState, error) {
	// Lazy creation: first run per index name
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO indexing_state (index_name, updated_at) VALUES (?, ?)`,
		indexName, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize indexing state: %w", err)
	}

	query := `SELECT ` + stateColumns + ` FROM indexing_state WHERE index_name = ?`
	return scanState(s.db.QueryRowContext(ctx, query, indexName))
}

func scanState(row *sql.Row) (*IndexingState, error) {
	var state IndexingState
	var lockAcquiredAt sql.NullTime
	var lastError sql.NullString
	var lastRunAt sql.NullTime

	err := row.Scan(
		&state.IndexName, &state.LastDocID, &state.LastChunkID, &state.LastItemID,
		&state.TotalIndexed, &state.PendingCount, &state.IsBuilding, &state.LockOwner,
		&lockAcquiredAt, &lastError, &lastRunAt, &state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lockAcquiredAt.Valid {
		state.LockAcquiredAt = &lockAcquiredAt.Time
	}
	if lastError.Valid {
		state.LastError = &lastError.String
	}
	if lastRunAt.Valid {
		state.LastRunAt = &lastRunAt.Time
	}
	return &state, nil
}

// UpdateState persists cursor and bookkeeping fields. The lease flag is
// managed exclusively through AcquireLease/ReleaseLease so a cursor update
// can never clobber another process's lock.
func (s *SQLiteStore) UpdateState(ctx context.Context, state *IndexingState) error {
	query := `
		UPDATE indexing_state
		SET last_doc_id = ?, last_chunk_id = ?, last_item_id = ?, total_indexed = ?,
		    pending_count = ?, last_error = ?, last_run_at = ?, updated_at = ?
		WHERE index_name = ?
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		state.LastDocID, state.LastChunkID, state.LastItemID, state.TotalIndexed,
		state.PendingCount, state.LastError, state.LastRunAt, now, state.IndexName)
	if err != nil {
		return fmt.Errorf("failed to update indexing state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	state.UpdatedAt = now
	return nil
}

// ResetState zeroes the cursors for an index name, discarding incremental
// progress. The lease flag is left untouched.
func (s *SQLiteStore) ResetState(ctx context.Context, indexName string) error {
	query := `
		UPDATE indexing_state
		SET last_doc_id = 0, last_chunk_id = 0, last_item_id = 0, total_indexed = 0,
		    pending_count = 0, last_error = NULL, updated_at = ?
		WHERE index_name = ?
	`
	_, err := s.db.ExecContext(ctx, query, time.Now(), indexName)
	if err != nil {
		return fmt.Errorf("failed to reset indexing state: %w", err)
	}
	return nil
}

// AcquireLease attempts to take the build lock for an index name. The
// acquisition is a single compare-and-set statement so two processes that
// both observe an unlocked state cannot both proceed. Returns false when
// another holder has the lease.
func (s *SQLiteStore) AcquireLease(ctx context.Context, indexName, owner string) (bool, error) {
	// Ensure the row exists before the CAS
	if _, err := s.GetState(ctx, indexName); err != nil {
		return false, err
	}

	query := `
		UPDATE indexing_state
		SET is_building = 1, lock_owner = ?, lock_acquired_at = ?, updated_at = ?
		WHERE index_name = ? AND is_building = 0
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query, owner, now, now, indexName)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseLease clears the build lock. Called on both success and failure
// paths so no orphaned lock survives a completed run.
func (s *SQLiteStore) ReleaseLease(ctx context.Context, indexName string) error {
	query := `
		UPDATE indexing_state
		SET is_building = 0, lock_owner = '', lock_acquired_at = NULL, updated_at = ?
		WHERE index_name = ?
	`
	_, err := s.db.ExecContext(ctx, query, time.Now(), indexName)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
