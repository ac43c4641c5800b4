// Package sqlite is the durable store.Store backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quarryhq/quarry/pkg/quarry/store"
)

type sqliteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database with WAL mode enabled and the
// schema initialized.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency between a crawl and a reader.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS manifest (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT,
	status TEXT NOT NULL,
	error TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_manifest_run ON manifest(run_id);

CREATE TABLE IF NOT EXISTS checkpoints (
	start_url TEXT PRIMARY KEY,
	visited TEXT NOT NULL,
	pending TEXT NOT NULL,
	saved_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	source TEXT,
	keywords TEXT NOT NULL,
	docs_processed INTEGER NOT NULL,
	docs_skipped INTEGER NOT NULL,
	total_findings INTEGER NOT NULL,
	findings_truncated INTEGER NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// AppendManifest records one document outcome.
func (s *sqliteStore) AppendManifest(ctx context.Context, e store.ManifestEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manifest (run_id, url, title, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.URL, e.Title, string(e.Status), e.Error, createdAt.UTC().Format(time.RFC3339))
	return err
}

// ManifestByRun returns entries for a run in append order.
func (s *sqliteStore) ManifestByRun(ctx context.Context, runID string) ([]store.ManifestEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, status, error, created_at FROM manifest WHERE run_id=? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ManifestEntry
	for rows.Next() {
		var e store.ManifestEntry
		var status, createdAt string
		if err := rows.Scan(&e.URL, &e.Title, &status, &e.Error, &createdAt); err != nil {
			return nil, err
		}
		e.RunID = runID
		e.Status = store.Status(status)
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = ts
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveCheckpoint upserts the crawl frontier for a start URL.
func (s *sqliteStore) SaveCheckpoint(ctx context.Context, c store.Checkpoint) error {
	visited, err := json.Marshal(c.Visited)
	if err != nil {
		return err
	}
	pending, err := json.Marshal(c.Pending)
	if err != nil {
		return err
	}
	savedAt := c.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO checkpoints (start_url, visited, pending, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(start_url) DO UPDATE SET
	visited=excluded.visited,
	pending=excluded.pending,
	saved_at=excluded.saved_at`,
		c.StartURL, string(visited), string(pending), savedAt.UTC().Format(time.RFC3339))
	return err
}

// LoadCheckpoint returns the checkpoint for a start URL if one exists.
func (s *sqliteStore) LoadCheckpoint(ctx context.Context, startURL string) (store.Checkpoint, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT visited, pending, saved_at FROM checkpoints WHERE start_url=?`, startURL)

	var visited, pending, savedAt string
	switch err := row.Scan(&visited, &pending, &savedAt); err {
	case nil:
	case sql.ErrNoRows:
		return store.Checkpoint{}, false, nil
	default:
		return store.Checkpoint{}, false, err
	}

	c := store.Checkpoint{StartURL: startURL}
	if err := json.Unmarshal([]byte(visited), &c.Visited); err != nil {
		return store.Checkpoint{}, false, err
	}
	if err := json.Unmarshal([]byte(pending), &c.Pending); err != nil {
		return store.Checkpoint{}, false, err
	}
	if ts, err := time.Parse(time.RFC3339, savedAt); err == nil {
		c.SavedAt = ts
	}
	return c, true, nil
}

// ClearCheckpoint removes a checkpoint after a completed crawl.
func (s *sqliteStore) ClearCheckpoint(ctx context.Context, startURL string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE start_url=?`, startURL)
	return err
}

// SaveRun upserts a run summary.
func (s *sqliteStore) SaveRun(ctx context.Context, r store.RunSummary) error {
	keywords, err := json.Marshal(r.Keywords)
	if err != nil {
		return err
	}
	startedAt := r.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at, source, keywords, docs_processed, docs_skipped, total_findings, findings_truncated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	started_at=excluded.started_at,
	source=excluded.source,
	keywords=excluded.keywords,
	docs_processed=excluded.docs_processed,
	docs_skipped=excluded.docs_skipped,
	total_findings=excluded.total_findings,
	findings_truncated=excluded.findings_truncated`,
		r.ID, startedAt.UTC().Format(time.RFC3339), r.Source, string(keywords),
		r.DocsProcessed, r.DocsSkipped, r.TotalFindings, r.FindingsTruncated)
	return err
}

// GetRun returns a run summary by ID.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.RunSummary, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT started_at, source, keywords, docs_processed, docs_skipped, total_findings, findings_truncated
FROM runs WHERE id=?`, id)

	var r store.RunSummary
	var startedAt, keywords string
	switch err := row.Scan(&startedAt, &r.Source, &keywords, &r.DocsProcessed, &r.DocsSkipped, &r.TotalFindings, &r.FindingsTruncated); err {
	case nil:
	case sql.ErrNoRows:
		return store.RunSummary{}, false, nil
	default:
		return store.RunSummary{}, false, err
	}

	r.ID = id
	if ts, err := time.Parse(time.RFC3339, startedAt); err == nil {
		r.StartedAt = ts
	}
	if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
		return store.RunSummary{}, false, err
	}
	return r, true, nil
}
