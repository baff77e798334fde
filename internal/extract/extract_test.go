// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head>
<meta charset="utf-8">
<title>Understanding Queues - 掘金</title>
<meta name="description" content="A tour of queue designs">
<meta name="keywords" content="a,b,c">
<meta itemprop="datePublished" content="2023-05-01T10:00:00.000Z">
</head><body>
<nav>menu <img src="https://x.com/logo.png"></nav>
<div class="article">
  <div class="markdown-body"><style>.markdown-body{color:red}</style><h2>Intro</h2>
    <p>Queues are everywhere.</p>
    <img src="https://x.com/img/photo_v2.awebp?w=100" alt="photo">
    <img alt="no source">
    <pre><code class="hljs language-go">fmt.Println("hi")</code></pre>
  </div>
</div>
</body></html>`

func defaultOptions() Options {
	return Options{ContentSelector: ".markdown-body", TitleSuffix: " - 掘金"}
}

func TestExtract(t *testing.T) {
	doc, a, err := Extract(strings.NewReader(samplePage), "text/html; charset=utf-8", defaultOptions())
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "Understanding Queues", a.Title)
	require.NotNil(t, a.Description)
	assert.Equal(t, "A tour of queue designs", *a.Description)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, "2023-05-01T10:00:00.000Z", *a.PublishedAt)
	assert.Equal(t, []string{"a", "b", "c"}, a.Keywords)

	assert.Contains(t, a.ContentHTML, "<h2>Intro</h2>")
	assert.NotContains(t, a.ContentHTML, "menu", "content must be limited to the region")
}

func TestExtract_MissingMeta(t *testing.T) {
	page := `<html><head><title>Bare</title></head><body><div class="markdown-body"><p>x</p></div></body></html>`

	_, a, err := Extract(strings.NewReader(page), "text/html", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Bare", a.Title)
	assert.Nil(t, a.Description)
	assert.Nil(t, a.PublishedAt)
	assert.Empty(t, a.Keywords)
}

func TestExtract_ContentNotFound(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"no region", `<html><head><title>T</title></head><body><p>x</p></body></html>`},
		{"empty region", `<html><body><div class="markdown-body">   </div></body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(strings.NewReader(tt.page), "text/html", defaultOptions())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrContentNotFound))
		})
	}
}

func TestExtract_DecodesDeclaredCharset(t *testing.T) {
	// "café" in ISO-8859-1.
	page := "<html><head><meta charset=\"iso-8859-1\"><title>caf\xe9</title></head>" +
		"<body><div class=\"markdown-body\"><p>caf\xe9</p></div></body></html>"

	_, a, err := Extract(strings.NewReader(page), "text/html", defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "café", a.Title)
	assert.Contains(t, a.ContentHTML, "café")
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, suffix, want string
	}{
		{"Understanding Queues - 掘金", " - 掘金", "Understanding Queues"},
		{"  Spaced Out - 掘金  ", " - 掘金", "Spaced Out"},
		{"No Suffix", " - 掘金", "No Suffix"},
		{"Tight- 掘金", " - 掘金", "Tight- 掘金"},
		{"Only Trim  ", "", "Only Trim"},
		{"Title -掘金", " -掘金", "Title"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.in, tt.suffix))
		})
	}
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitKeywords("a,b,c"))
	assert.Equal(t, []string{"前端", "Go"}, SplitKeywords(" 前端 , Go ,"))
	assert.Empty(t, SplitKeywords(""))
}

func TestContentRegion_Images(t *testing.T) {
	doc, err := Parse(strings.NewReader(samplePage), "text/html", defaultOptions())
	require.NoError(t, err)

	region, ok := doc.SelectContentRegion()
	require.True(t, ok)

	imgs := region.SelectImages()
	require.Len(t, imgs, 2, "images outside the region are not selected")

	src, ok := imgs[0].Src()
	assert.True(t, ok)
	assert.Equal(t, "https://x.com/img/photo_v2.awebp?w=100", src)

	_, ok = imgs[1].Src()
	assert.False(t, ok, "img without src reports absent")

	imgs[0].SetSrc("./images/photo.webp")
	html, err := region.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, `src="./images/photo.webp"`)
	assert.NotContains(t, html, "awebp")
}
