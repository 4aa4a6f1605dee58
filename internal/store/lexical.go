package store

import (
	"context"
	"log/slog"
)

// DefaultSearchLimit is used when SearchLexical is given a non-positive limit.
const DefaultSearchLimit = 20

// SearchLexical ranks documents by BM25 over title, content and summary.
// Input is reduced to quoted terms, so any string is a valid query; input
// with no terms returns no documents. Ties break on insertion order so the
// same query always yields the same order.
func (s *SQLiteStore) SearchLexical(ctx context.Context, query string, limit int) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	match := BuildMatchQuery(query, s.stopWords)
	if match == "" {
		return []*Document{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	slog.Debug("lexical_search",
		slog.String("query", query),
		slog.String("match", match),
		slog.Int("limit", limit))

	return queryDocuments(ctx, s.db, `
		SELECT `+documentColumns+`
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts), d.rowid
		LIMIT ?`, match, limit)
}
