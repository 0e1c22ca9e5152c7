package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldjudge/internal/verdict"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists verdicts in a single-file SQLite database so an
// interrupted batch run resumes without re-paying for judged fingerprints.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteStore creates or opens the cache database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	store := &SQLiteStore{db: db, path: path, logger: logger}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verdicts (
		fingerprint TEXT PRIMARY KEY,
		classification TEXT NOT NULL,
		explanation TEXT NOT NULL,
		provenance TEXT NOT NULL,
		prompt_version TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verdicts_prompt_version ON verdicts(prompt_version);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT classification, explanation, provenance, prompt_version, created_at
		 FROM verdicts WHERE fingerprint = ?`, fingerprint)

	var entry Entry
	var classification, provenance string
	err := row.Scan(&classification, &entry.Verdict.Explanation, &provenance, &entry.PromptVersion, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	entry.Fingerprint = fingerprint
	entry.Verdict.Classification = verdict.Classification(classification)
	entry.Verdict.Provenance = verdict.Provenance(provenance)

	return &entry, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT classification FROM verdicts WHERE fingerprint = ?`, entry.Fingerprint)

	var existing string
	err = row.Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO verdicts (fingerprint, classification, explanation, provenance, prompt_version, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entry.Fingerprint,
			string(entry.Verdict.Classification),
			entry.Verdict.Explanation,
			string(entry.Verdict.Provenance),
			entry.PromptVersion,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert cache entry: %w", err)
		}
		return tx.Commit()
	case err != nil:
		return fmt.Errorf("check cache entry: %w", err)
	}

	// Entries are write-once. A diverging write indicates nondeterminism
	// upstream; keep the original and report it.
	if existing != string(entry.Verdict.Classification) {
		s.logger.Warn("cache consistency violation: diverging verdict for existing fingerprint, keeping original",
			zap.String("fingerprint", entry.Fingerprint),
			zap.String("existing", existing),
			zap.String("rejected", string(entry.Verdict.Classification)),
		)
	}

	return nil
}
