// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"bytes"
	"errors"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// ErrNoFrontMatter is returned by ParseFrontMatter for documents that do
// not start with a "---" header.
var ErrNoFrontMatter = errors.New("document has no front-matter")

// FrontMatter is the header of a saved article.
type FrontMatter struct {
	Title string            `yaml:"title"`
	Date  string            `yaml:"date"`
	Tags  []string          `yaml:"tags"`
	Meta  map[string]string `yaml:"-"`
}

type rawFrontMatter struct {
	Title string        `yaml:"title"`
	Date  string        `yaml:"date"`
	Tags  []string      `yaml:"tags"`
	Head  [][]yaml.Node `yaml:"head"`
}

type metaEntry struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

var (
	fmOpen  = []byte("---\n")
	fmClose = []byte("\n---\n")
)

// ParseFrontMatter splits a saved document into its header and body. Meta
// holds the head entries keyed by name.
func ParseFrontMatter(data []byte) (FrontMatter, string, error) {
	if !bytes.HasPrefix(data, fmOpen) {
		return FrontMatter{}, "", ErrNoFrontMatter
	}
	rest := data[len(fmOpen):]
	end := bytes.Index(rest, fmClose)
	if end < 0 {
		return FrontMatter{}, "", ErrNoFrontMatter
	}

	var raw rawFrontMatter
	if err := yaml.Unmarshal(rest[:end], &raw); err != nil {
		return FrontMatter{}, "", fmt.Errorf("parsing front-matter: %w", err)
	}

	fm := FrontMatter{
		Title: raw.Title,
		Date:  raw.Date,
		Tags:  raw.Tags,
		Meta:  make(map[string]string, len(raw.Head)),
	}
	for _, entry := range raw.Head {
		if len(entry) < 2 {
			continue
		}
		var m metaEntry
		if err := entry[1].Decode(&m); err != nil {
			return FrontMatter{}, "", fmt.Errorf("parsing head entry: %w", err)
		}
		if m.Name != "" {
			fm.Meta[m.Name] = m.Content
		}
	}

	body := rest[end+len(fmClose):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	body = bytes.TrimSuffix(body, []byte("\n"))
	return fm, string(body), nil
}
