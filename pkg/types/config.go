// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// HTTPConfig holds shared HTTP settings used by every stage that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout applied by the shared client.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429. Zero disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// PlatformConfig describes where articles live on the content platform and
// how their pages are laid out.
type PlatformConfig struct {
	// PostURLTemplate builds an article URL from its id (e.g. "https://juejin.cn/post/%s").
	PostURLTemplate string `json:"post_url_template" yaml:"post_url_template" mapstructure:"post_url_template"`

	// ListURL is the article listing endpoint used in user mode.
	ListURL string `json:"list_url" yaml:"list_url" mapstructure:"list_url"`

	// ListSortType is sent as sort_type in listing requests.
	ListSortType int `json:"list_sort_type" yaml:"list_sort_type" mapstructure:"list_sort_type"`

	// ContentSelector locates the article's content region.
	ContentSelector string `json:"content_selector" yaml:"content_selector" mapstructure:"content_selector"`

	// TitleSuffix is stripped from the page title (e.g. " - 掘金").
	TitleSuffix string `json:"title_suffix" yaml:"title_suffix" mapstructure:"title_suffix"`
}

// ImageErrorPolicy selects what happens to an article when one of its
// images cannot be localized.
type ImageErrorPolicy string

const (
	// ImageErrorAbort fails the whole article on the first image failure.
	ImageErrorAbort ImageErrorPolicy = "abort"
	// ImageErrorSkip keeps the remote reference for failed images.
	ImageErrorSkip ImageErrorPolicy = "skip"
)

// GrabConfig holds every setting of a grab run. It is built once by the CLI
// and passed down the pipeline by value.
type GrabConfig struct {
	HTTPConfig `json:"http" yaml:"http" mapstructure:"http"`

	Platform PlatformConfig `json:"platform" yaml:"platform" mapstructure:"platform"`

	// DocsDir receives one Markdown file per article; images go to DocsDir/images.
	DocsDir string `json:"docs_dir" yaml:"docs_dir" mapstructure:"docs_dir"`

	// Concurrency bounds the number of articles processed at once. Zero means unbounded.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// ImageConcurrency bounds image downloads per article. Zero means unbounded.
	ImageConcurrency int `json:"image_concurrency" yaml:"image_concurrency" mapstructure:"image_concurrency"`

	// OnImageError is "abort" (default) or "skip".
	OnImageError ImageErrorPolicy `json:"on_image_error" yaml:"on_image_error" mapstructure:"on_image_error"`

	// ArticleTimeout is an optional deadline for one article's pipeline. Zero means none.
	ArticleTimeout time.Duration `json:"article_timeout" yaml:"article_timeout" mapstructure:"article_timeout"`

	// Sanitize runs the content region through an HTML sanitizer before conversion.
	Sanitize bool `json:"sanitize" yaml:"sanitize" mapstructure:"sanitize"`

	// Catalog enables the SQLite catalog under DocsDir.
	Catalog bool `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
}

// DefaultGrabConfig returns the settings for juejin.cn.
func DefaultGrabConfig() GrabConfig {
	return GrabConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "article-grab/0.1",
		},
		Platform: PlatformConfig{
			PostURLTemplate: "https://juejin.cn/post/%s",
			ListURL:         "https://api.juejin.cn/content_api/v1/article/query_list",
			ListSortType:    2,
			ContentSelector: ".markdown-body",
			TitleSuffix:     " - 掘金",
		},
		DocsDir:      "docs",
		OnImageError: ImageErrorAbort,
		Catalog:      true,
	}
}

// ImagesDir returns the directory that receives localized media.
func (c GrabConfig) ImagesDir() string {
	return filepath.Join(c.DocsDir, "images")
}
