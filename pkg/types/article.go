// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ArticleLocator identifies one article to grab.
type ArticleLocator struct {
	// ID is the platform's article id, or the last URL path segment for
	// locators built from a bare URL.
	ID string `json:"id" yaml:"id"`

	// URL is the article page to fetch.
	URL string `json:"url" yaml:"url"`
}

// PostLocator builds a locator from an article id and a URL template with a
// single %s verb.
func PostLocator(id, template string) ArticleLocator {
	id = strings.TrimSpace(id)
	return ArticleLocator{ID: id, URL: fmt.Sprintf(template, id)}
}

// ParseLocator accepts either a full http(s) URL or a bare article id.
func ParseLocator(s, template string) ArticleLocator {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		id := path.Base(strings.TrimSuffix(u.Path, "/"))
		if id == "." || id == "/" {
			id = u.Host
		}
		return ArticleLocator{ID: id, URL: s}
	}
	return PostLocator(s, template)
}

// String returns the locator URL.
func (l ArticleLocator) String() string { return l.URL }

// ExtractedArticle holds the content region and metadata pulled from one
// article page.
type ExtractedArticle struct {
	// ContentHTML is the inner markup of the content region. Never empty.
	ContentHTML string `json:"content_html" yaml:"-"`

	// Title is the page title with the platform suffix stripped and trimmed.
	Title string `json:"title" yaml:"title"`

	// Description is nil when the page has no description meta tag.
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`

	// Keywords lists the comma-separated keywords meta entries in order.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// PublishedAt is the raw datePublished meta value, nil when absent.
	PublishedAt *string `json:"published_at,omitempty" yaml:"published_at,omitempty"`
}

// MediaReference maps one remote image to its localized copy.
type MediaReference struct {
	// OriginalURL is the src attribute as found in the content region.
	OriginalURL string `json:"original_url" yaml:"original_url"`

	// LocalPath is the reference written back into the document ("./images/x.png").
	LocalPath string `json:"local_path" yaml:"local_path"`

	// FilePath is where the bytes were written on disk.
	FilePath string `json:"file_path" yaml:"file_path"`
}

// RenderedArticle is the final document for one article.
type RenderedArticle struct {
	Locator ArticleLocator   `json:"locator"`
	Title   string           `json:"title"`
	Path    string           `json:"path"`
	Content []byte           `json:"-"`
	Media   []MediaReference `json:"media"`
}

// Stage names the step an article pipeline is in.
type Stage string

const (
	StageFetching        Stage = "fetching"
	StageExtracting      Stage = "extracting"
	StageLocalizingMedia Stage = "localizing_media"
	StageConverting      Stage = "converting"
	StageAssembling      Stage = "assembling"
	StagePersisted       Stage = "persisted"
	StageFailed          Stage = "failed"
)
