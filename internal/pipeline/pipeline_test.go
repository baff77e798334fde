// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-grab/internal/assemble"
	"github.com/pdiddy/article-grab/internal/catalog"
	"github.com/pdiddy/article-grab/internal/extract"
	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/internal/media"
	"github.com/pdiddy/article-grab/pkg/types"
)

const articlePage = `<!doctype html>
<html><head>
<meta charset="utf-8">
<title>%[2]s - 掘金</title>
<meta name="description" content="A tour of queue designs">
<meta name="keywords" content="a,b,c">
<meta itemprop="datePublished" content="2023-05-01T10:00:00.000Z">
</head><body>
<div class="markdown-body"><style>.markdown-body{color:red}</style>
<h2>Intro</h2>
<p>Queues are <strong>everywhere</strong>.</p>
<p><img src="%[1]s/img/photo_v2.awebp?w=100" alt="photo"></p>
<p><img src="%[1]s/img/%[3]s" alt="diagram"></p>
<pre><code class="hljs language-go">q := make(chan int)<span class="copy-code-btn">复制代码</span></code></pre>
</div>
</body></html>`

// newSite serves article pages under /post/ and images under /img/.
//
//	/post/<id>         article titled "Understanding Queues"
//	/post/other-<id>   article titled "Other <id>"
//	/post/twin         a second article titled "Understanding Queues"
//	/post/badimg       article whose second image 404s
//	/post/noheadimg    article whose second image rejects HEAD with 405
//	/post/empty        page without a content region
//	/post/slow         responds after 300ms
//	anything else      404
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		if img, ok := strings.CutPrefix(r.URL.Path, "/img/"); ok {
			if strings.Contains(img, "missing") {
				http.NotFound(w, r)
				return
			}
			if strings.Contains(img, "nohead") && r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			ct := "image/png"
			if strings.HasSuffix(img, ".awebp") {
				ct = "image/webp"
			}
			w.Header().Set("Content-Type", ct)
			if r.Method == http.MethodGet {
				fmt.Fprintf(w, "bytes of %s", img)
			}
			return
		}

		id, ok := strings.CutPrefix(r.URL.Path, "/post/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case id == "empty":
			fmt.Fprint(w, `<html><head><title>Empty - 掘金</title></head><body><p>nothing</p></body></html>`)
		case id == "slow":
			time.Sleep(300 * time.Millisecond)
			fmt.Fprintf(w, articlePage, base, "Slow", "diagram.png")
		case id == "noheadimg":
			fmt.Fprintf(w, articlePage, base, "No Head", "nohead-diagram")
		case id == "badimg":
			fmt.Fprintf(w, articlePage, base, "Bad Image", "missing.png")
		case id == "twin":
			fmt.Fprintf(w, articlePage, base, "Understanding Queues", "diagram.png")
		case strings.HasPrefix(id, "other-"):
			fmt.Fprintf(w, articlePage, base, "Other "+strings.TrimPrefix(id, "other-"), "diagram.png")
		case strings.HasPrefix(id, "73"):
			fmt.Fprintf(w, articlePage, base, "Understanding Queues", "diagram.png")
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(t *testing.T, ts *httptest.Server) types.GrabConfig {
	t.Helper()
	cfg := types.DefaultGrabConfig()
	cfg.DocsDir = filepath.Join(t.TempDir(), "docs")
	cfg.Platform.PostURLTemplate = ts.URL + "/post/%s"
	cfg.UserAgent = "test"
	return cfg
}

func newTestGrabber(ts *httptest.Server, cfg types.GrabConfig, w *bytes.Buffer, opts ...Option) *Grabber {
	client := httputil.NewWithClient(ts.Client(), cfg.HTTPConfig)
	return New(client, cfg, w, opts...)
}

func locator(cfg types.GrabConfig, id string) types.ArticleLocator {
	return types.PostLocator(id, cfg.Platform.PostURLTemplate)
}

func markdownFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	require.NoError(t, err)
	return matches
}

func TestGrabArticle(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)

	var out bytes.Buffer
	g := newTestGrabber(ts, cfg, &out)

	r, err := g.GrabArticle(context.Background(), locator(cfg, "7300"), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.DocsDir, "Understanding Queues.md"), r.Path)
	assert.Equal(t, "Understanding Queues", r.Title)
	require.Len(t, r.Media, 2)
	assert.Equal(t, "./images/photo.webp", r.Media[0].LocalPath)
	assert.Equal(t, "./images/diagram.png.png", r.Media[1].LocalPath)

	data, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	fm, body, err := assemble.ParseFrontMatter(data)
	require.NoError(t, err)

	assert.Equal(t, "Understanding Queues", fm.Title)
	assert.Equal(t, "2023-05-01T10:00:00.000Z", fm.Date)
	assert.Equal(t, []string{"a", "b", "c"}, fm.Tags)
	assert.Equal(t, "A tour of queue designs", fm.Meta["description"])
	assert.Contains(t, string(data), "tags: \n  - a\n  - b\n  - c\n")

	assert.Contains(t, body, "## Intro")
	assert.Contains(t, body, "**everywhere**")
	assert.Contains(t, body, "![photo](./images/photo.webp)")
	assert.Contains(t, body, "![diagram](./images/diagram.png.png)")
	assert.Contains(t, body, "```go\nq := make(chan int)\n```")
	assert.NotContains(t, body, "复制代码")
	assert.NotContains(t, body, "color:red")
	assert.NotContains(t, body, ts.URL, "no remote references remain")

	for _, m := range r.Media {
		assert.FileExists(t, filepath.Join(cfg.DocsDir, filepath.FromSlash(m.LocalPath)))
	}

	assert.Contains(t, out.String(), "downloading: 7300")
	assert.Contains(t, out.String(), "saved:   7300")
}

func TestGrabArticle_Idempotent(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)
	g := newTestGrabber(ts, cfg, &bytes.Buffer{})

	r1, err := g.GrabArticle(context.Background(), locator(cfg, "7300"), "")
	require.NoError(t, err)
	first, err := os.ReadFile(r1.Path)
	require.NoError(t, err)

	r2, err := g.GrabArticle(context.Background(), locator(cfg, "7300"), "")
	require.NoError(t, err)
	second, err := os.ReadFile(r2.Path)
	require.NoError(t, err)

	assert.Equal(t, r1.Path, r2.Path)
	assert.Equal(t, first, second)
}

func TestGrabArticle_Failures(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()

	tests := []struct {
		name  string
		id    string
		stage types.Stage
		check func(t *testing.T, err error)
	}{
		{
			name:  "page not found",
			id:    "nope",
			stage: types.StageFetching,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrFetch)
				var se *httputil.StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusNotFound, se.StatusCode)
			},
		},
		{
			name:  "content region missing",
			id:    "empty",
			stage: types.StageExtracting,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, extract.ErrContentNotFound)
			},
		},
		{
			name:  "image fails under abort policy",
			id:    "badimg",
			stage: types.StageLocalizingMedia,
			check: func(t *testing.T, err error) {
				var ife *media.ImageFetchError
				assert.True(t, errors.As(err, &ife))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, ts)
			g := newTestGrabber(ts, cfg, &bytes.Buffer{})

			r, err := g.GrabArticle(context.Background(), locator(cfg, tt.id), "")
			require.Error(t, err)
			assert.Nil(t, r)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.stage, se.Stage)
			tt.check(t, err)

			assert.Empty(t, markdownFiles(t, cfg.DocsDir), "failed article must not produce a document")
		})
	}
}

func TestGrabArticle_SkipPolicyKeepsRemoteReference(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)
	cfg.OnImageError = types.ImageErrorSkip

	var out bytes.Buffer
	r, err := newTestGrabber(ts, cfg, &out).GrabArticle(context.Background(), locator(cfg, "badimg"), "")
	require.NoError(t, err)

	require.Len(t, r.Media, 1)
	assert.Contains(t, string(r.Content), "./images/photo.webp")
	assert.Contains(t, string(r.Content), ts.URL+"/img/missing.png")
	assert.Contains(t, out.String(), "warning:")
}

func TestGrabArticle_ImageRejectingHead(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)

	r, err := newTestGrabber(ts, cfg, &bytes.Buffer{}).GrabArticle(context.Background(), locator(cfg, "noheadimg"), "")
	require.NoError(t, err)

	require.Len(t, r.Media, 2)
	assert.Contains(t, string(r.Content), "![diagram](./images/nohead-diagram)")
	assert.FileExists(t, filepath.Join(cfg.ImagesDir(), "nohead-diagram"))
	assert.FileExists(t, r.Path)
}

func TestGrabBatch(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)
	cfg.Concurrency = 2

	var out bytes.Buffer
	g := newTestGrabber(ts, cfg, &out)

	locs := []types.ArticleLocator{
		locator(cfg, "other-1"),
		locator(cfg, "empty"),
		locator(cfg, "other-2"),
		locator(cfg, "nope"),
	}
	result := g.GrabBatch(context.Background(), locs)

	assert.Equal(t, 4, result.Total())
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, 2, result.Failed)
	assert.True(t, result.HasFailures())
	assert.Empty(t, result.RunID, "no catalog, no run id")

	require.Len(t, result.Articles, 2)
	assert.Equal(t, "Other 1", result.Articles[0].Title)
	assert.Equal(t, "Other 2", result.Articles[1].Title)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, "empty", result.Failures[0].Locator.ID)
	assert.Equal(t, types.StageExtracting, result.Failures[0].Stage)
	assert.Equal(t, "nope", result.Failures[1].Locator.ID)
	assert.Equal(t, types.StageFetching, result.Failures[1].Stage)

	assert.Equal(t, []types.Stage{
		types.StagePersisted,
		types.StageExtracting,
		types.StagePersisted,
		types.StageFetching,
	}, result.Stages)

	s := out.String()
	assert.Contains(t, s, "failed:  empty (extracting: content region not found)")
	assert.Contains(t, s, "failed:  nope (fetching: ")
	assert.Contains(t, s, "Batch summary: 2 saved, 2 failed (total: 4)")

	assert.Len(t, markdownFiles(t, cfg.DocsDir), 2)
}

func TestGrabBatch_ArticleTimeout(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)
	cfg.ArticleTimeout = 50 * time.Millisecond

	result := newTestGrabber(ts, cfg, &bytes.Buffer{}).GrabBatch(context.Background(), []types.ArticleLocator{
		locator(cfg, "slow"),
		locator(cfg, "other-1"),
	})

	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "slow", result.Failures[0].Locator.ID)
	assert.ErrorIs(t, result.Failures[0].Err, context.DeadlineExceeded)
}

// fakeCatalog records calls in memory.
type fakeCatalog struct {
	mu       sync.Mutex
	recorded []string
	finished [2]int
}

func (f *fakeCatalog) BeginRun(context.Context) (string, error) { return "run-1", nil }

func (f *fakeCatalog) FinishRun(_ context.Context, _ string, total, failed int) error {
	f.finished = [2]int{total, failed}
	return nil
}

func (f *fakeCatalog) Record(_ context.Context, runID string, r types.RenderedArticle, _ types.ExtractedArticle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, runID+"/"+r.Locator.ID)
	return "", nil
}

func TestGrabBatch_RecordsInCatalog(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)

	fc := &fakeCatalog{}
	result := newTestGrabber(ts, cfg, &bytes.Buffer{}, WithCatalog(fc)).GrabBatch(context.Background(), []types.ArticleLocator{
		locator(cfg, "other-1"),
		locator(cfg, "empty"),
	})

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, []string{"run-1/other-1"}, fc.recorded)
	assert.Equal(t, [2]int{2, 1}, fc.finished)
}

func TestGrabBatch_TitleCollisionWarning(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)

	store, err := catalog.Open(cfg.DocsDir)
	require.NoError(t, err)
	defer store.Close()

	var out bytes.Buffer
	g := newTestGrabber(ts, cfg, &out, WithCatalog(store))

	result := g.GrabBatch(context.Background(), []types.ArticleLocator{locator(cfg, "7300")})
	require.False(t, result.HasFailures())
	result = g.GrabBatch(context.Background(), []types.ArticleLocator{locator(cfg, "twin")})
	require.False(t, result.HasFailures())

	assert.Contains(t, out.String(), "overwrote article 7300 (same title)")
	assert.Len(t, markdownFiles(t, cfg.DocsDir), 1)

	entries, err := store.List(context.Background(), catalog.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

type fixedConverter string

func (c fixedConverter) Convert(string) (string, error) { return string(c), nil }

func TestWithConverter(t *testing.T) {
	ts := newSite(t)
	defer ts.Close()
	cfg := testConfig(t, ts)

	r, err := newTestGrabber(ts, cfg, &bytes.Buffer{}, WithConverter(fixedConverter("CONVERTED"))).
		GrabArticle(context.Background(), locator(cfg, "7300"), "")
	require.NoError(t, err)
	_, body, err := assemble.ParseFrontMatter(r.Content)
	require.NoError(t, err)
	assert.Equal(t, "CONVERTED", body)
}
