// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/article-grab/internal/assemble"
)

// ErrMediaMissing marks a catalogued image whose local file is gone.
var ErrMediaMissing = errors.New("media missing")

// Entry is one catalogued article.
type Entry struct {
	ID          string    `json:"id" yaml:"id"`
	URL         string    `json:"url" yaml:"url"`
	Title       string    `json:"title" yaml:"title"`
	Path        string    `json:"path" yaml:"path"`
	PublishedAt string    `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	Keywords    []string  `json:"keywords" yaml:"keywords"`
	Media       int       `json:"media" yaml:"media"`
	RunID       string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	GrabbedAt   time.Time `json:"grabbed_at" yaml:"grabbed_at"`
}

// QueryOptions filters List.
type QueryOptions struct {
	// Query matches a substring of the title or keywords.
	Query string

	// RunID restricts results to one run.
	RunID string

	// Limit caps the result count. Zero means no limit.
	Limit int
}

// List returns catalogued articles ordered by title.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT a.id, a.url, a.title, a.path, a.published_at, a.keywords, a.run_id, a.grabbed_at,
			(SELECT count(*) FROM media m WHERE m.article_id = a.id)
		FROM articles a
		WHERE 1=1`)

	if opts.Query != "" {
		qb.WriteString(` AND (a.title LIKE ? OR a.keywords LIKE ?)`)
		like := "%" + opts.Query + "%"
		args = append(args, like, like)
	}
	if opts.RunID != "" {
		qb.WriteString(` AND a.run_id = ?`)
		args = append(args, opts.RunID)
	}
	qb.WriteString(` ORDER BY a.title, a.id`)
	if opts.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                          Entry
			published, keywords, runID sql.NullString
			grabbed                    string
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.Title, &e.Path, &published, &keywords, &runID, &grabbed, &e.Media); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		e.PublishedAt = published.String
		e.RunID = runID.String
		if keywords.Valid && keywords.String != "" {
			json.Unmarshal([]byte(keywords.String), &e.Keywords)
		}
		e.GrabbedAt, _ = time.Parse(time.RFC3339Nano, grabbed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Media returns the local references recorded for one article.
func (s *Store) Media(ctx context.Context, articleID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT original_url, local_path FROM media WHERE article_id = ?`, articleID)
	if err != nil {
		return nil, fmt.Errorf("querying media: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		var orig, local string
		if err := rows.Scan(&orig, &local); err != nil {
			return nil, fmt.Errorf("scanning media: %w", err)
		}
		refs[orig] = local
	}
	return refs, rows.Err()
}

// Verify checks that the entry's document exists, carries a readable
// front-matter and still has the catalogued title, and that every image
// recorded for it is present under the docs directory.
func (s *Store) Verify(ctx context.Context, e Entry) error {
	path := filepath.Join(s.docsDir, filepath.FromSlash(e.Path))
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", e.Path, err)
	}
	fm, _, err := assemble.ParseFrontMatter(data)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Path, err)
	}
	if fm.Title != e.Title {
		return fmt.Errorf("%s: title %q was overwritten by %q", e.Path, e.Title, fm.Title)
	}

	refs, err := s.Media(ctx, e.ID)
	if err != nil {
		return err
	}
	var missing []string
	for _, local := range refs {
		if _, err := os.Stat(filepath.Join(s.docsDir, filepath.FromSlash(local))); err != nil {
			missing = append(missing, local)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s: %w: %s", e.Path, ErrMediaMissing, strings.Join(missing, ", "))
	}
	return nil
}
