// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns an article's content region into Markdown.
package convert

import (
	"fmt"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Converter transforms content-region HTML into a Markdown body.
type Converter interface {
	Convert(contentHTML string) (string, error)
}

// Options configures an HTMLConverter.
type Options struct {
	// Sanitize passes the markup through a UGC sanitizer before conversion.
	Sanitize bool
}

// HTMLConverter is the html-to-markdown backed Converter with the code
// and style rules installed.
type HTMLConverter struct {
	mu     sync.Mutex
	conv   *md.Converter
	policy *bluemonday.Policy
}

// New builds an HTMLConverter. ATX headings and fenced code blocks are
// used throughout.
func New(opts Options) *HTMLConverter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		BulletListMarker: "-",
	})
	conv.AddRules(codeRule(), styleRule())

	c := &HTMLConverter{conv: conv}
	if opts.Sanitize {
		c.policy = sanitizePolicy()
	}
	return c
}

// Convert renders contentHTML as Markdown. Image references are taken as
// they appear, so callers rewrite them before converting.
func (c *HTMLConverter) Convert(contentHTML string) (string, error) {
	if c.policy != nil {
		contentHTML = c.policy.Sanitize(contentHTML)
	}
	c.mu.Lock()
	out, err := c.conv.ConvertString(contentHTML)
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("converting to markdown: %w", err)
	}
	return out, nil
}

// codeChrome matches the copy buttons and headers the platform injects into
// code blocks.
const codeChrome = ".copy-code-btn, .code-block-extension-header, .code-block-extension"

// codeRule renders pre elements as fenced blocks, keeping the language
// annotation and the exact text of the code.
func codeRule() md.Rule {
	return md.Rule{
		Filter: []string{"pre"},
		Replacement: func(_ string, selec *goquery.Selection, _ *md.Options) *string {
			code := selec.Find("code").First()
			if code.Length() == 0 {
				code = selec
			}
			lang := codeLanguage(code)
			if lang == "" {
				lang = codeLanguage(selec)
			}

			clean := code.Clone()
			clean.Find(codeChrome).Remove()
			text := strings.TrimRight(clean.Text(), "\n")

			fence := fenceFor(text)
			return md.String("\n\n" + fence + lang + "\n" + text + "\n" + fence + "\n\n")
		},
	}
}

// styleRule drops style elements so their CSS never reaches the body.
func styleRule() md.Rule {
	return md.Rule{
		Filter: []string{"style"},
		Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
			return md.String("")
		},
	}
}

// codeLanguage reads the language from a lang attribute or a
// language-xxx / lang-xxx class.
func codeLanguage(s *goquery.Selection) string {
	if lang, ok := s.Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		return strings.TrimSpace(lang)
	}
	class, _ := s.Attr("class")
	for _, c := range strings.Fields(class) {
		for _, prefix := range []string{"language-", "lang-"} {
			if lang, ok := strings.CutPrefix(c, prefix); ok && lang != "" {
				return lang
			}
		}
	}
	return ""
}

// fenceFor returns a backtick fence longer than any backtick run in text.
func fenceFor(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

func sanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("pre", "code", "span")
	p.AllowAttrs("lang").OnElements("code", "pre")
	return p
}
