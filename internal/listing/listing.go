// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package listing pages over the platform's article-list API and yields
// the article ids of one user.
package listing

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/pkg/types"
)

// firstCursor is the cursor of the first page.
const firstCursor = "0"

// RequestError reports a listing page that could not be fetched or decoded,
// or that the API answered with a non-zero err_no.
type RequestError struct {
	Cursor string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("listing request at cursor %s: %v", e.Cursor, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// APIError is the platform's own error envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

type listRequest struct {
	Cursor   string `json:"cursor"`
	SortType int    `json:"sort_type"`
	UserID   string `json:"user_id"`
}

type listResponse struct {
	ErrNo   int           `json:"err_no"`
	ErrMsg  string        `json:"err_msg"`
	Data    []listArticle `json:"data"`
	HasMore bool          `json:"has_more"`
	Cursor  string        `json:"cursor"`
}

type listArticle struct {
	ArticleID string `json:"article_id"`
}

// Lister fetches listing pages through a shared client.
type Lister struct {
	client   *httputil.Client
	url      string
	sortType int
}

// New returns a Lister for the endpoint described by cfg.
func New(client *httputil.Client, cfg types.PlatformConfig) *Lister {
	return &Lister{client: client, url: cfg.ListURL, sortType: cfg.ListSortType}
}

// Articles yields the article ids of userID page by page. A failed page
// yields one *RequestError and ends the sequence; ids yielded before it
// remain valid.
func (l *Lister) Articles(ctx context.Context, userID string) iter.Seq2[string, error] {
	return l.ArticlesFrom(ctx, userID, firstCursor)
}

// ArticlesFrom is Articles starting at cursor, e.g. the Cursor of a
// RequestError from an earlier attempt.
func (l *Lister) ArticlesFrom(ctx context.Context, userID, cursor string) iter.Seq2[string, error] {
	if cursor == "" {
		cursor = firstCursor
	}
	return func(yield func(string, error) bool) {
		cursor := cursor
		for {
			page, err := l.fetchPage(ctx, userID, cursor)
			if err != nil {
				yield("", err)
				return
			}
			for _, a := range page.Data {
				id := strings.TrimSpace(a.ArticleID)
				if id == "" {
					continue
				}
				if !yield(id, nil) {
					return
				}
			}
			if !page.HasMore || page.Cursor == "" || page.Cursor == cursor {
				return
			}
			cursor = page.Cursor
		}
	}
}

// Collect drains Articles. It returns every id found before the first
// error together with that error.
func (l *Lister) Collect(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for id, err := range l.Articles(ctx, userID) {
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *Lister) fetchPage(ctx context.Context, userID, cursor string) (*listResponse, error) {
	req := listRequest{Cursor: cursor, SortType: l.sortType, UserID: userID}
	var resp listResponse
	if err := l.client.PostJSON(ctx, l.url, req, &resp); err != nil {
		return nil, &RequestError{Cursor: cursor, Err: err}
	}
	if resp.ErrNo != 0 {
		return nil, &RequestError{Cursor: cursor, Err: &APIError{Code: resp.ErrNo, Message: resp.ErrMsg}}
	}
	return &resp, nil
}
