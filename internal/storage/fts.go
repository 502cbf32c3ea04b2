package storage

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/archonlabs/docsearch/pkg/types"
)

// SearchChunksFTS performs ranked full-text search over chunk text.
// FTS5's bm25 rank is negative with lower-is-better; the absolute value is
// stored so "higher is better" holds uniformly across the system.
func (s *SQLiteStore) SearchChunksFTS(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return []types.SearchResult{}, nil
	}

	sqlQuery := `
		SELECT c.id, c.doc_id, c.text, c.metadata, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.id
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery, sanitized, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, limit)
	for rows.Next() {
		var chunkID, docID int64
		var text string
		var meta sql.NullString
		var score float64

		if err := rows.Scan(&chunkID, &docID, &text, &meta, &score); err != nil {
			return nil, err
		}

		res := types.SearchResult{
			Identity:   types.ChunkIdentity(chunkID),
			DocID:      docID,
			Text:       text,
			FTSScore:   math.Abs(score),
			VectorRank: -1,
			FinalRank:  len(results),
		}
		res.FinalScore = res.FTSScore

		metadata, err := unmarshalMeta(meta)
		if err != nil {
			return nil, err
		}
		fillPageFields(&res, metadata)

		results = append(results, res)
	}
	return results, rows.Err()
}

// SearchItemsFTS performs ranked full-text search over item text
func (s *SQLiteStore) SearchItemsFTS(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return []types.SearchResult{}, nil
	}

	sqlQuery := `
		SELECT i.id, i.doc_id, i.text, bm25(items_fts) AS score
		FROM items_fts
		INNER JOIN items i ON items_fts.rowid = i.id
		WHERE items_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery, sanitized, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, limit)
	for rows.Next() {
		var itemID, docID int64
		var text string
		var score float64

		if err := rows.Scan(&itemID, &docID, &text, &score); err != nil {
			return nil, err
		}

		res := types.SearchResult{
			Identity:   types.ItemIdentity(itemID),
			DocID:      docID,
			Text:       text,
			FTSScore:   math.Abs(score),
			VectorRank: -1,
			FinalRank:  len(results),
		}
		res.FinalScore = res.FTSScore
		results = append(results, res)
	}
	return results, rows.Err()
}

// fillPageFields denormalizes page metadata onto a search result
func fillPageFields(res *types.SearchResult, metadata map[string]string) {
	if metadata == nil {
		return
	}
	if no, err := strconv.Atoi(metadata[types.MetaPageNo]); err == nil {
		res.PageNo = no
	}
	res.PageType = metadata[types.MetaPageType]
}

// sanitizeFTSQuery turns free text into a safe FTS5 query. Every
// whitespace-separated term becomes a quoted phrase (doubling embedded
// quotes, the FTS5 escape), which neutralizes operators and punctuation
// like "85.36.20.00" that would otherwise be a syntax error. Phrases are
// OR-joined; bm25 still ranks multi-term matches first.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	phrases := make([]string, 0, len(fields))
	for _, f := range fields {
		phrases = append(phrases, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(phrases, " OR ")
}
