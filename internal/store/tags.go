package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// replaceTags swaps the tag set of a document for tags. Tag rows are
// created on demand and never deleted, since other documents may share them.
func replaceTags(ctx context.Context, tx *sql.Tx, docID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_tags WHERE document_id = ?`, docID); err != nil {
		return amerrors.StorageError("failed to clear tags", err)
	}

	for _, name := range normalizeTags(tags) {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return amerrors.StorageError("failed to create tag", err).WithDetail("tag", name)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO document_tags (document_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?`, docID, name); err != nil {
			return amerrors.StorageError("failed to tag document", err).WithDetail("tag", name)
		}
	}
	return nil
}

// attachTags loads the tags of docs with one query.
func attachTags(ctx context.Context, q queryer, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	byID := make(map[string]*Document, len(docs))
	args := make([]any, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
		args = append(args, d.ID)
	}

	// SQLite caps host parameters; page through large sets.
	const batch = 500
	for start := 0; start < len(args); start += batch {
		end := min(start+batch, len(args))
		placeholders := strings.TrimSuffix(strings.Repeat("?,", end-start), ",")

		rows, err := q.QueryContext(ctx, `
			SELECT dt.document_id, t.name FROM document_tags dt
			JOIN tags t ON dt.tag_id = t.id
			WHERE dt.document_id IN (`+placeholders+`)`, args[start:end]...)
		if err != nil {
			return amerrors.StorageError("failed to load tags", err)
		}
		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				_ = rows.Close()
				return amerrors.StorageError("failed to scan tag", err)
			}
			if d, ok := byID[id]; ok {
				d.Tags = append(d.Tags, name)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return amerrors.StorageError("failed to iterate tags", err)
		}
	}

	for _, d := range docs {
		sort.Strings(d.Tags)
	}
	return nil
}

// AllTags returns every tag with its document count, most used first and
// then by name. Tags no longer attached to any document report zero.
func (s *SQLiteStore) AllTags(ctx context.Context) ([]TagCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, COUNT(dt.document_id) AS count
		FROM tags t
		LEFT JOIN document_tags dt ON t.id = dt.tag_id
		GROUP BY t.id, t.name
		ORDER BY count DESC, t.name ASC`)
	if err != nil {
		return nil, amerrors.StorageError("failed to query tags", err)
	}
	defer rows.Close()

	tags := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, amerrors.StorageError("failed to scan tag", err)
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}
