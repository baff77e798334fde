// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract isolates an article's content region and metadata from a
// fetched page.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/pdiddy/article-grab/pkg/types"
)

// ErrContentNotFound is returned when the page has no content region, or
// the region is empty.
var ErrContentNotFound = errors.New("content region not found")

// Options selects the page structure to extract from.
type Options struct {
	// ContentSelector is a CSS selector for the content region.
	ContentSelector string

	// TitleSuffix is stripped from the end of the page title.
	TitleSuffix string
}

// OptionsFrom builds extraction options from the platform settings.
func OptionsFrom(p types.PlatformConfig) Options {
	return Options{ContentSelector: p.ContentSelector, TitleSuffix: p.TitleSuffix}
}

// Document is a parsed article page.
type Document struct {
	doc  *goquery.Document
	opts Options
}

// Parse decodes r to UTF-8 using contentType and any in-document charset
// declaration, then parses it into a Document.
func Parse(r io.Reader, contentType string, opts Options) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("decoding page: %w", err)
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	if opts.ContentSelector == "" {
		opts.ContentSelector = types.DefaultGrabConfig().Platform.ContentSelector
	}
	return &Document{doc: doc, opts: opts}, nil
}

// Extract parses the page and returns both the Document (for image
// rewriting) and the extracted article.
func Extract(r io.Reader, contentType string, opts Options) (*Document, types.ExtractedArticle, error) {
	d, err := Parse(r, contentType, opts)
	if err != nil {
		return nil, types.ExtractedArticle{}, err
	}
	a, err := d.Article()
	if err != nil {
		return nil, types.ExtractedArticle{}, err
	}
	return d, a, nil
}

// SelectContentRegion returns the first element matching the content
// selector.
func (d *Document) SelectContentRegion() (ContentRegion, bool) {
	sel := d.doc.Find(d.opts.ContentSelector).First()
	if sel.Length() == 0 {
		return ContentRegion{}, false
	}
	return ContentRegion{sel: sel}, true
}

// Article collects the content region markup and the page metadata.
func (d *Document) Article() (types.ExtractedArticle, error) {
	region, ok := d.SelectContentRegion()
	if !ok {
		return types.ExtractedArticle{}, ErrContentNotFound
	}
	content, err := region.HTML()
	if err != nil {
		return types.ExtractedArticle{}, fmt.Errorf("reading content region: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return types.ExtractedArticle{}, ErrContentNotFound
	}

	a := types.ExtractedArticle{
		ContentHTML: content,
		Title:       d.Title(),
		Description: d.meta(`meta[name="description"]`),
		PublishedAt: d.meta(`meta[itemprop="datePublished"]`),
	}
	if kw := d.meta(`meta[name="keywords"]`); kw != nil {
		a.Keywords = SplitKeywords(*kw)
	}
	return a, nil
}

// Title returns the document title with the platform suffix removed and
// surrounding whitespace trimmed.
func (d *Document) Title() string {
	sel := d.doc.Find("head > title").First()
	if sel.Length() == 0 {
		sel = d.doc.Find("title").First()
	}
	return CleanTitle(sel.Text(), d.opts.TitleSuffix)
}

func (d *Document) meta(selector string) *string {
	v, ok := d.doc.Find(selector).First().Attr("content")
	if !ok {
		return nil
	}
	return &v
}

// CleanTitle strips suffix from the end of title and trims whitespace.
func CleanTitle(title, suffix string) string {
	title = strings.TrimSpace(title)
	if suffix != "" {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}

// SplitKeywords splits a comma-separated keywords value, trimming entries
// and dropping empty ones. Order is preserved.
func SplitKeywords(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ContentRegion is the subtree holding the article body.
type ContentRegion struct {
	sel *goquery.Selection
}

// SelectImages returns every img element inside the region in document
// order.
func (c ContentRegion) SelectImages() []ImageElement {
	var imgs []ImageElement
	c.sel.Find("img").Each(func(_ int, s *goquery.Selection) {
		imgs = append(imgs, ImageElement{sel: s})
	})
	return imgs
}

// HTML renders the region's inner markup, reflecting any SetSrc calls.
func (c ContentRegion) HTML() (string, error) {
	return c.sel.Html()
}

// ImageElement is one img element inside a content region.
type ImageElement struct {
	sel *goquery.Selection
}

// Src returns the src attribute and whether it is present and non-empty.
func (i ImageElement) Src() (string, bool) {
	src, ok := i.sel.Attr("src")
	src = strings.TrimSpace(src)
	return src, ok && src != ""
}

// SetSrc replaces the src attribute.
func (i ImageElement) SetSrc(src string) {
	i.sel.SetAttr("src", src)
}
