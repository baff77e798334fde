// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog records persisted articles and their media in a SQLite
// database under the docs directory.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/article-grab/pkg/types"
)

const (
	catalogDir = ".article-grab"
	dbFile     = "catalog.db"
)

// Store manages the catalog database.
type Store struct {
	db      *sql.DB
	docsDir string
}

// Path returns the catalog database path for docsDir.
func Path(docsDir string) string {
	return filepath.Join(docsDir, catalogDir, dbFile)
}

// Open opens or creates the catalog at docsDir/.article-grab/catalog.db.
func Open(docsDir string) (*Store, error) {
	dbPath := Path(docsDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, docsDir: docsDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			total INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			path TEXT NOT NULL,
			published_at TEXT,
			keywords TEXT,
			run_id TEXT REFERENCES runs(id),
			grabbed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_path ON articles(path)`,
		`CREATE TABLE IF NOT EXISTS media (
			article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			original_url TEXT NOT NULL,
			local_path TEXT NOT NULL,
			PRIMARY KEY (article_id, original_url)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run is one batch invocation.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
	Total      int       `json:"total" yaml:"total"`
	Failed     int       `json:"failed" yaml:"failed"`
}

// BeginRun records the start of a batch and returns its id.
func (s *Store) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome counts of a batch.
func (s *Store) FinishRun(ctx context.Context, runID string, total, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), total, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, failed FROM runs
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Total, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Record upserts one persisted article and replaces its media rows. When
// another article was previously written to the same path, its id is
// returned as prev.
func (s *Store) Record(ctx context.Context, runID string, r types.RenderedArticle, a types.ExtractedArticle) (prev string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	path := s.relPath(r.Path)

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM articles WHERE path = ? AND id <> ? ORDER BY grabbed_at DESC LIMIT 1`,
		path, r.Locator.ID,
	).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("checking title collision: %w", err)
	}

	keywordsJSON, _ := json.Marshal(a.Keywords)
	var published sql.NullString
	if a.PublishedAt != nil {
		published = sql.NullString{String: *a.PublishedAt, Valid: true}
	}
	var run sql.NullString
	if runID != "" {
		run = sql.NullString{String: runID, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO articles (id, url, title, path, published_at, keywords, run_id, grabbed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			url=excluded.url, title=excluded.title, path=excluded.path,
			published_at=excluded.published_at, keywords=excluded.keywords,
			run_id=excluded.run_id, grabbed_at=excluded.grabbed_at`,
		r.Locator.ID, r.Locator.URL, r.Title, path, published, string(keywordsJSON),
		run, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("upserting article %s: %w", r.Locator.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE article_id = ?`, r.Locator.ID); err != nil {
		return "", fmt.Errorf("deleting old media: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO media (article_id, original_url, local_path) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range r.Media {
		if _, err := stmt.ExecContext(ctx, r.Locator.ID, m.OriginalURL, m.LocalPath); err != nil {
			return "", fmt.Errorf("inserting media %s: %w", m.OriginalURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return prev, nil
}

// relPath returns p relative to the docs directory, slash separated.
func (s *Store) relPath(p string) string {
	if rel, err := filepath.Rel(s.docsDir, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}
