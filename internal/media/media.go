// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package media downloads the images embedded in an article and rewrites
// their references to local copies.
package media

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-grab/internal/extract"
	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/pkg/types"
)

// maxNameLen caps the base filename, excluding the extension.
const maxNameLen = 200

// ErrEmptyURL is returned for an image without a usable src. Callers skip it.
var ErrEmptyURL = errors.New("empty image url")

// ImageFetchError reports an image that could not be retrieved or stored.
type ImageFetchError struct {
	URL string
	Err error
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("image %s: %v", e.URL, e.Err)
}

func (e *ImageFetchError) Unwrap() error { return e.Err }

// Options configures a Localizer.
type Options struct {
	// ImagesDir receives the downloaded files.
	ImagesDir string

	// Concurrency bounds parallel downloads in LocalizeAll. Zero means unbounded.
	Concurrency int

	// OnError selects abort (default) or skip for failed images.
	OnError types.ImageErrorPolicy

	// Status receives warnings for skipped images. Nil discards them.
	Status io.Writer
}

// Localizer fetches images and stores them under ImagesDir.
type Localizer struct {
	client *httputil.Client
	opts   Options
}

// NewLocalizer returns a Localizer that downloads through client.
func NewLocalizer(client *httputil.Client, opts Options) *Localizer {
	if opts.OnError == "" {
		opts.OnError = types.ImageErrorAbort
	}
	if opts.Status == nil {
		opts.Status = io.Discard
	}
	return &Localizer{client: client, opts: opts}
}

// Localize downloads one image and returns its local reference. The
// extension comes from the Content-Type reported by a HEAD request; a HEAD
// answered with a non-200 status leaves the extension empty. Only a HEAD
// transport error or a failed GET fails the image.
func (l *Localizer) Localize(ctx context.Context, imageURL string) (types.MediaReference, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return types.MediaReference{}, ErrEmptyURL
	}

	contentType, err := l.contentType(ctx, imageURL)
	if err != nil {
		return types.MediaReference{}, &ImageFetchError{URL: imageURL, Err: err}
	}

	name := FileName(imageURL, contentType)
	if err := os.MkdirAll(l.opts.ImagesDir, 0o755); err != nil {
		return types.MediaReference{}, fmt.Errorf("creating directory %s: %w", l.opts.ImagesDir, err)
	}
	destPath := filepath.Join(l.opts.ImagesDir, name)

	if err := l.download(ctx, imageURL, destPath); err != nil {
		return types.MediaReference{}, &ImageFetchError{URL: imageURL, Err: err}
	}

	return types.MediaReference{
		OriginalURL: imageURL,
		LocalPath:   "./images/" + name,
		FilePath:    destPath,
	}, nil
}

// LocalizeAll downloads every distinct non-empty URL concurrently and
// returns the references keyed by original URL. Under the abort policy the
// first failure cancels the remaining downloads and is returned; under the
// skip policy failures are reported to Status and left out of the map.
func (l *Localizer) LocalizeAll(ctx context.Context, urls []string) (map[string]types.MediaReference, error) {
	g, gctx := errgroup.WithContext(ctx)
	if l.opts.Concurrency > 0 {
		g.SetLimit(l.opts.Concurrency)
	}

	var mu sync.Mutex
	refs := make(map[string]types.MediaReference, len(urls))
	seen := make(map[string]bool, len(urls))

	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true

		g.Go(func() error {
			ref, err := l.Localize(gctx, u)
			if err != nil {
				if l.opts.OnError == types.ImageErrorSkip {
					mu.Lock()
					fmt.Fprintf(l.opts.Status, "  warning: %v (keeping remote reference)\n", err)
					mu.Unlock()
					return nil
				}
				return err
			}
			mu.Lock()
			refs[u] = ref
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// contentType asks for the Content-Type of imageURL with a HEAD request.
func (l *Localizer) contentType(ctx context.Context, imageURL string) (string, error) {
	header, err := l.client.Head(ctx, imageURL)
	var statusErr *httputil.StatusError
	switch {
	case errors.As(err, &statusErr):
		return "", nil
	case err != nil:
		return "", err
	}
	return header.Get("Content-Type"), nil
}

// download streams url to destPath through a temporary file so a failed
// transfer never leaves a partial file under the final name.
func (l *Localizer) download(ctx context.Context, url, destPath string) error {
	resp, err := l.client.Get(ctx, url, "image/*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".media-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// unsafeChars matches everything outside [A-Za-z0-9.-].
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// FileName derives the local filename for imageURL. The base is the last
// URL segment with unsafe characters turned into underscores and cut at
// the first underscore; the extension is the Content-Type subtype. Names
// containing ".awebp" always become ".webp" files.
func FileName(imageURL, contentType string) string {
	ext := Extension(contentType)

	name := unsafeChars.ReplaceAllString(path.Base(imageURL), "_")
	name, _, _ = strings.Cut(name, "_")

	if strings.Contains(name, ".awebp") {
		ext = ".webp"
		name = strings.Replace(name, ".awebp", "", 1)
	}

	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" || name == "." || name == ".." {
		name = urlHashName(imageURL)
	}
	return name + ext
}

// Extension returns "." plus the subtype of contentType, or "" when the
// type is missing or has no subtype.
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || subtype == "" {
		return ""
	}
	return "." + subtype
}

func urlHashName(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("img-%x", h[:8])
}

// ImageURLs returns the src of every image in region, in document order,
// skipping images without one.
func ImageURLs(region extract.ContentRegion) []string {
	var urls []string
	for _, img := range region.SelectImages() {
		if src, ok := img.Src(); ok {
			urls = append(urls, src)
		}
	}
	return urls
}

// Rewrite points every image whose src has a reference at its local copy,
// in a single pass over region. It returns the number of rewritten images.
func Rewrite(region extract.ContentRegion, refs map[string]types.MediaReference) int {
	n := 0
	for _, img := range region.SelectImages() {
		src, ok := img.Src()
		if !ok {
			continue
		}
		if ref, found := refs[src]; found {
			img.SetSrc(ref.LocalPath)
			n++
		}
	}
	return n
}
