// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble builds the final Markdown document for an article and
// writes it under the docs directory.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-grab/pkg/types"
)

// maxFileNameLen caps the document filename in bytes, excluding ".md".
const maxFileNameLen = 200

// Assemble renders the document for a and computes its path under docsDir.
func Assemble(a types.ExtractedArticle, body, docsDir string) types.RenderedArticle {
	return types.RenderedArticle{
		Title:   a.Title,
		Path:    Path(docsDir, a.Title),
		Content: Render(a, body),
	}
}

// Render prepends the front-matter header to body. The head block repeats
// title, description, keywords and date as meta entries for consumers that
// read those instead of the top-level fields.
func Render(a types.ExtractedArticle, body string) []byte {
	date := deref(a.PublishedAt)
	keywords := strings.Join(a.Keywords, ",")

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", quoted(a.Title))
	fmt.Fprintf(&b, "date: %s\n", scalar(date))
	b.WriteString("tags: ")
	for _, tag := range a.Keywords {
		fmt.Fprintf(&b, "\n  - %s", scalar(tag))
	}
	b.WriteString("\n")
	b.WriteString("head:\n")
	for _, m := range []struct{ name, content string }{
		{"headline", a.Title},
		{"description", deref(a.Description)},
		{"keywords", keywords},
		{"datePublished", date},
	} {
		b.WriteString("  - - meta\n")
		fmt.Fprintf(&b, "    - name: %s\n", m.name)
		fmt.Fprintf(&b, "      content: %s\n", scalar(m.content))
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	return []byte(b.String())
}

// Path returns docsDir/<FileName(title)>.md.
func Path(docsDir, title string) string {
	return filepath.Join(docsDir, FileName(title)+".md")
}

// Persist writes r.Content to r.Path through a temporary file, replacing
// any existing document of the same name.
func Persist(r types.RenderedArticle) error {
	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".article-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(r.Content)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing document: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, r.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// FileName makes title safe to use as a filename: path separators,
// characters reserved on common filesystems and control characters become
// "-". A leading "." also becomes "-" so the document is never hidden.
// Empty titles become "untitled".
func FileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if unicode.IsControl(r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))

	name = strings.TrimSpace(name)
	if len(name) > maxFileNameLen {
		cut := maxFileNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}
	if rest, ok := strings.CutPrefix(name, "."); ok {
		name = "-" + rest
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// quoted encodes s as a YAML double-quoted scalar.
func quoted(s string) string {
	return encodeNode(&yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: s})
}

// scalar writes s verbatim when it reads back as the same plain string,
// and double-quoted otherwise.
func scalar(s string) string {
	if s == "" || isPlain(s) {
		return s
	}
	return quoted(s)
}

func encodeNode(n *yaml.Node) string {
	out, err := yaml.Marshal(n)
	if err != nil {
		return fmt.Sprintf("%q", n.Value)
	}
	return strings.TrimSuffix(string(out), "\n")
}

// isPlain reports whether s can be emitted as an unquoted YAML scalar
// without changing meaning or breaking the surrounding block.
func isPlain(s string) bool {
	if strings.TrimSpace(s) != s {
		return false
	}
	if strings.ContainsAny(s, "\n\r\t") || strings.Contains(s, ": ") || strings.Contains(s, " #") || strings.HasSuffix(s, ":") {
		return false
	}
	if strings.ContainsRune("-?:,[]{}#&*!|>'\"%@`", rune(s[0])) {
		return false
	}
	switch strings.ToLower(s) {
	case "null", "~", "true", "false", "yes", "no", "on", "off":
		return false
	}
	return true
}
