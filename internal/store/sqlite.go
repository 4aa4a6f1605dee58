package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// CurrentSchemaVersion is the database schema version written by this build.
const CurrentSchemaVersion = 1

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements DocumentStore on SQLite with an FTS5 external
// content table kept in sync by triggers, so the lexical index commits in
// the same transaction as the row it mirrors.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	stopWords map[string]struct{}
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

var _ DocumentStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	url            TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL,
	author         TEXT,
	published_date TEXT,
	source_type    TEXT NOT NULL DEFAULT 'web_article',
	content        TEXT NOT NULL,
	summary        TEXT NOT NULL DEFAULT '',
	read_status    INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id TEXT NOT NULL,
	tag_id      INTEGER NOT NULL,
	PRIMARY KEY (document_id, tag_id),
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
	FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_document_tags_tag ON document_tags(tag_id);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	title, content, summary,
	content='documents',
	content_rowid='rowid',
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, title, content, summary)
	VALUES (new.rowid, new.title, new.content, new.summary);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content, summary)
	VALUES ('delete', old.rowid, old.title, old.content, old.summary);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF title, content, summary ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content, summary)
	VALUES ('delete', old.rowid, old.title, old.content, old.summary);
	INSERT INTO documents_fts(rowid, title, content, summary)
	VALUES (new.rowid, new.title, new.content, new.summary);
END;

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// validateSQLiteIntegrity checks an existing database before it is opened
// for writing. A missing file is fine; it will be created.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens (creating if needed) the document database at path.
// An empty path opens an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeDataDir,
				fmt.Sprintf("failed to create directory %s", filepath.Dir(path)), err)
		}

		// Unlike a derived index, the document store cannot be cleared and
		// rebuilt, so corruption is fatal.
		if err := validateSQLiteIntegrity(path); err != nil {
			slog.Error("document_store_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("document database at %s failed its integrity check", path), err).
				WithSuggestion("Restore amanread.db from a backup")
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, amerrors.StorageError("failed to open database", err)
	}

	// Single connection: SQLite serialises writers anyway, and per-connection
	// pragmas such as foreign_keys then hold for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16384",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, amerrors.StorageError("failed to set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, amerrors.StorageError("failed to initialize schema", err)
	}

	return &SQLiteStore{
		db:        db,
		path:      path,
		stopWords: BuildStopWordMap(DefaultStopWords),
		now:       time.Now,
	}, nil
}

// Path returns the database file path ("" for in-memory).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return amerrors.StorageError("document store is closed", nil)
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return amerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return amerrors.StorageError("failed to commit transaction", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
