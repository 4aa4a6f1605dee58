package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// DefaultListLimit is used when ListOptions.Limit is not positive.
const DefaultListLimit = 50

const documentColumns = `d.id, d.url, d.title, d.author, d.published_date, d.source_type,
	d.content, d.summary, d.read_status, d.created_at, d.updated_at`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts doc and its tags in one transaction. The URL must not be
// stored yet. Empty ID, Summary and SourceType get defaults.
func (s *SQLiteStore) Create(ctx context.Context, doc *Document) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if doc == nil || strings.TrimSpace(doc.URL) == "" {
		return nil, amerrors.ValidationError("document url is required", nil)
	}

	d := *doc
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.Summary == "" {
		d.Summary = PendingSummary
	}
	if d.SourceType == "" {
		d.SourceType = SourceWebArticle
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "Untitled"
	}
	now := formatTime(s.now())

	var published any
	if d.PublishedDate != nil {
		published = formatTime(*d.PublishedDate)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE url = ?`, d.URL).Scan(&exists)
		if err == nil {
			return amerrors.ConflictError(d.URL)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return amerrors.StorageError("failed to check url", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, url, title, author, published_date, source_type,
			                       content, summary, read_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.URL, d.Title, nullString(d.Author), published, string(d.SourceType),
			d.Content, d.Summary, boolToInt(d.ReadStatus), now, now)
		if err != nil {
			return amerrors.StorageError("failed to insert document", err)
		}

		return replaceTags(ctx, tx, d.ID, d.Tags)
	})
	if err != nil {
		return nil, err
	}

	return s.get(ctx, `d.id = ?`, d.ID)
}

// Get returns the document with id, or a not-found error.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.get(ctx, `d.id = ?`, id)
}

// GetByURL returns the document stored under url, or a not-found error.
func (s *SQLiteStore) GetByURL(ctx context.Context, url string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.get(ctx, `d.url = ?`, url)
}

func (s *SQLiteStore) get(ctx context.Context, where string, key string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE `+where, key)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, amerrors.NotFoundError(key)
	}
	if err != nil {
		return nil, amerrors.StorageError("failed to read document", err)
	}

	if err := attachTags(ctx, s.db, []*Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns a page of documents, newest first, and the total matching
// the same filters.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any
	if opts.ReadStatus != nil {
		where = append(where, "d.read_status = ?")
		args = append(args, boolToInt(*opts.ReadStatus))
	}
	if tags := normalizeTags(opts.Tags); len(tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
		where = append(where, `d.id IN (
			SELECT dt.document_id FROM document_tags dt
			JOIN tags t ON dt.tag_id = t.id
			WHERE t.name IN (`+placeholders+`))`)
		for _, t := range tags {
			args = append(args, t)
		}
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents d`+clause, args...).Scan(&total); err != nil {
		return nil, amerrors.StorageError("failed to count documents", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	docs, err := queryDocuments(ctx, s.db,
		`SELECT `+documentColumns+` FROM documents d`+clause+
			` ORDER BY d.created_at DESC, d.rowid DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, err
	}

	return &ListResult{Documents: docs, Total: total}, nil
}

// Update applies the non-nil fields of patch in one transaction and returns
// the updated document. A tags patch replaces the tag set.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch DocumentPatch) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return amerrors.NotFoundError(id)
		}
		if err != nil {
			return amerrors.StorageError("failed to read document", err)
		}

		if patch.Empty() {
			return nil
		}

		sets := []string{"updated_at = ?"}
		args := []any{formatTime(s.now())}
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return amerrors.ValidationError("title must not be empty", nil)
			}
			sets = append(sets, "title = ?")
			args = append(args, title)
		}
		if patch.ReadStatus != nil {
			sets = append(sets, "read_status = ?")
			args = append(args, boolToInt(*patch.ReadStatus))
		}
		args = append(args, id)

		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return amerrors.StorageError("failed to update document", err)
		}

		if patch.Tags != nil {
			return replaceTags(ctx, tx, id, *patch.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.get(ctx, `d.id = ?`, id)
}

// UpdateSummary stores the enrichment summary. It does not touch updated_at,
// which tracks user edits.
func (s *SQLiteStore) UpdateSummary(ctx context.Context, id, summary string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE documents SET summary = ? WHERE id = ?`, summary, id)
		if err != nil {
			return amerrors.StorageError("failed to update summary", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return amerrors.NotFoundError(id)
		}
		return nil
	})
}

// Delete removes the document; tag associations cascade. Reports whether a
// row was removed, so a repeated delete returns false without error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var removed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return amerrors.StorageError("failed to delete document", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

// AllIDs returns every document id, oldest first.
func (s *SQLiteStore) AllIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY created_at, rowid`)
	if err != nil {
		return nil, amerrors.StorageError("failed to query ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, amerrors.StorageError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllDocuments returns every document with its tags, oldest first.
func (s *SQLiteStore) AllDocuments(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return queryDocuments(ctx, s.db,
		`SELECT `+documentColumns+` FROM documents d ORDER BY d.created_at, d.rowid`)
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, amerrors.StorageError("failed to count documents", err)
	}
	return n, nil
}

// queryDocuments runs a documentColumns query and attaches tags. Rows are
// drained before the tag query: the pool has a single connection.
func queryDocuments(ctx context.Context, q queryer, query string, args ...any) ([]*Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, amerrors.StorageError("failed to query documents", err)
	}

	docs := []*Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			_ = rows.Close()
			return nil, amerrors.StorageError("failed to scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, amerrors.StorageError("failed to iterate documents", err)
	}
	_ = rows.Close()

	if err := attachTags(ctx, q, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		author     sql.NullString
		published  sql.NullString
		sourceType string
		readStatus int
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&doc.ID, &doc.URL, &doc.Title, &author, &published, &sourceType,
		&doc.Content, &doc.Summary, &readStatus, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.Author = author.String
	doc.SourceType = SourceType(sourceType)
	doc.ReadStatus = readStatus != 0
	doc.Tags = []string{}

	var err error
	if published.Valid && published.String != "" {
		t, perr := parseTime(published.String)
		if perr == nil {
			doc.PublishedDate = &t
		}
	}
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at %q: %w", updatedAt, err)
	}
	return &doc, nil
}

// normalizeTags trims, drops empties, deduplicates and sorts.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
