// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one article, or a batch of them, from page fetch
// to a saved Markdown document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-grab/internal/assemble"
	"github.com/pdiddy/article-grab/internal/convert"
	"github.com/pdiddy/article-grab/internal/extract"
	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/internal/media"
	"github.com/pdiddy/article-grab/pkg/types"
)

// ErrFetch marks failures to retrieve the article page.
var ErrFetch = errors.New("fetch failed")

// StageError records the stage an article was in when it failed.
type StageError struct {
	Stage types.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Catalog records persisted articles. *catalog.Store implements it.
type Catalog interface {
	BeginRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID string, total, failed int) error
	Record(ctx context.Context, runID string, r types.RenderedArticle, a types.ExtractedArticle) (string, error)
}

// Grabber runs the article pipeline with one shared configuration, HTTP
// client and converter.
type Grabber struct {
	cfg       types.GrabConfig
	client    *httputil.Client
	localizer *media.Localizer
	converter convert.Converter
	catalog   Catalog

	// mu serializes status lines from concurrent articles.
	mu sync.Mutex
	w  io.Writer
}

// Option customizes a Grabber.
type Option func(*Grabber)

// WithCatalog records every persisted article in c.
func WithCatalog(c Catalog) Option {
	return func(g *Grabber) { g.catalog = c }
}

// WithConverter replaces the default html-to-markdown converter.
func WithConverter(c convert.Converter) Option {
	return func(g *Grabber) { g.converter = c }
}

// New returns a Grabber that writes status lines to w.
func New(client *httputil.Client, cfg types.GrabConfig, w io.Writer, opts ...Option) *Grabber {
	if w == nil {
		w = io.Discard
	}
	g := &Grabber{cfg: cfg, client: client, w: w}
	g.localizer = media.NewLocalizer(client, media.Options{
		ImagesDir:   cfg.ImagesDir(),
		Concurrency: cfg.ImageConcurrency,
		OnError:     cfg.OnImageError,
		Status:      lockedWriter{g},
	})
	for _, opt := range opts {
		opt(g)
	}
	if g.converter == nil {
		g.converter = convert.New(convert.Options{Sanitize: cfg.Sanitize})
	}
	return g
}

// GrabArticle fetches, extracts, localizes, converts and saves one article.
// Any failure is returned as a *StageError naming the stage it happened
// in; nothing is written to the docs directory for an article that fails
// before the assembling stage completes.
func (g *Grabber) GrabArticle(ctx context.Context, loc types.ArticleLocator, runID string) (*types.RenderedArticle, error) {
	g.printf("downloading: %s\n", loc.ID)

	stage := types.StageFetching
	fail := func(err error) (*types.RenderedArticle, error) {
		return nil, &StageError{Stage: stage, Err: err}
	}

	resp, err := g.client.Get(ctx, loc.URL, "text/html")
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrFetch, err))
	}

	stage = types.StageExtracting
	doc, article, err := extract.Extract(resp.Body, resp.Header.Get("Content-Type"), extract.OptionsFrom(g.cfg.Platform))
	resp.Body.Close()
	if err != nil {
		return fail(err)
	}
	region, _ := doc.SelectContentRegion()

	stage = types.StageLocalizingMedia
	urls := media.ImageURLs(region)
	refs, err := g.localizer.LocalizeAll(ctx, urls)
	if err != nil {
		return fail(err)
	}
	media.Rewrite(region, refs)
	contentHTML, err := region.HTML()
	if err != nil {
		return fail(fmt.Errorf("rendering content region: %w", err))
	}

	stage = types.StageConverting
	body, err := g.converter.Convert(contentHTML)
	if err != nil {
		return fail(err)
	}

	stage = types.StageAssembling
	rendered := assemble.Assemble(article, body, g.cfg.DocsDir)
	rendered.Locator = loc
	rendered.Media = orderedRefs(urls, refs)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := assemble.Persist(rendered); err != nil {
		return fail(err)
	}

	g.printf("saved:   %s -> %s (%d images)\n", loc.ID, rendered.Path, len(rendered.Media))
	g.record(ctx, runID, rendered, article)
	return &rendered, nil
}

// record stores the article in the catalog. Catalog problems are reported
// as warnings since the document itself is already on disk.
func (g *Grabber) record(ctx context.Context, runID string, r types.RenderedArticle, a types.ExtractedArticle) {
	if g.catalog == nil {
		return
	}
	prev, err := g.catalog.Record(ctx, runID, r, a)
	if err != nil {
		g.printf("  warning: catalog: %v\n", err)
		return
	}
	if prev != "" {
		g.printf("  warning: %s overwrote article %s (same title)\n", r.Path, prev)
	}
}

// orderedRefs lists the localized references in document order, once each.
func orderedRefs(urls []string, refs map[string]types.MediaReference) []types.MediaReference {
	var out []types.MediaReference
	seen := make(map[string]bool, len(refs))
	for _, u := range urls {
		ref, ok := refs[u]
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, ref)
	}
	return out
}

// Failure is one article that did not make it to disk.
type Failure struct {
	Locator types.ArticleLocator
	Stage   types.Stage
	Err     error
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	RunID    string
	Saved    int
	Failed   int
	Articles []*types.RenderedArticle
	Failures []Failure

	// Stages holds the final stage of every locator, in input order:
	// persisted for saved articles, the failing stage otherwise.
	Stages []types.Stage
}

// Total returns the number of articles processed.
func (r BatchResult) Total() int {
	return r.Saved + r.Failed
}

// HasFailures reports whether any article failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// GrabBatch processes every locator concurrently. Each article's failure
// is printed and counted without affecting the others. Results keep the
// order of locs.
func (g *Grabber) GrabBatch(ctx context.Context, locs []types.ArticleLocator) BatchResult {
	var result BatchResult
	if g.catalog != nil {
		runID, err := g.catalog.BeginRun(ctx)
		if err != nil {
			g.printf("  warning: catalog: %v\n", err)
		}
		result.RunID = runID
	}

	articles := make([]*types.RenderedArticle, len(locs))
	errs := make([]error, len(locs))
	result.Stages = make([]types.Stage, len(locs))

	var eg errgroup.Group
	if g.cfg.Concurrency > 0 {
		eg.SetLimit(g.cfg.Concurrency)
	}
	for i, loc := range locs {
		eg.Go(func() error {
			actx := ctx
			if g.cfg.ArticleTimeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, g.cfg.ArticleTimeout)
				defer cancel()
			}
			articles[i], errs[i] = g.GrabArticle(actx, loc, result.RunID)
			if errs[i] != nil {
				g.printf("failed:  %s (%v)\n", loc.ID, errs[i])
			}
			return nil
		})
	}
	eg.Wait()

	for i, loc := range locs {
		if err := errs[i]; err != nil {
			stage := types.StageFailed
			var se *StageError
			if errors.As(err, &se) {
				stage = se.Stage
			}
			result.Stages[i] = stage
			result.Failures = append(result.Failures, Failure{Locator: loc, Stage: stage, Err: err})
			result.Failed++
			continue
		}
		result.Stages[i] = types.StagePersisted
		result.Articles = append(result.Articles, articles[i])
		result.Saved++
	}

	if g.catalog != nil && result.RunID != "" {
		if err := g.catalog.FinishRun(ctx, result.RunID, result.Total(), result.Failed); err != nil {
			g.printf("  warning: catalog: %v\n", err)
		}
	}

	g.printf("\nBatch summary: %d saved, %d failed (total: %d)\n",
		result.Saved, result.Failed, result.Total())
	return result
}

func (g *Grabber) printf(format string, args ...any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fmt.Fprintf(g.w, format, args...)
}

// lockedWriter routes writes through the Grabber's status lock.
type lockedWriter struct{ g *Grabber }

func (l lockedWriter) Write(p []byte) (int, error) {
	l.g.mu.Lock()
	defer l.g.mu.Unlock()
	return l.g.w.Write(p)
}
