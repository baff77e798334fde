// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/article-grab/internal/catalog"
	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/internal/pipeline"
	"github.com/pdiddy/article-grab/pkg/types"
)

// addGrabFlags registers the flags shared by post and user.
func addGrabFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "articles processed at once (0 = all)")
	cmd.Flags().Int("image-concurrency", 0, "image downloads per article at once (0 = all)")
	cmd.Flags().String("on-image-error", "", `"abort" fails the article, "skip" keeps the remote reference`)
	cmd.Flags().Duration("article-timeout", 0, "deadline for one article (0 = none)")
	cmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	cmd.Flags().Int("max-retries", 0, "retries on HTTP 429 (default 0)")
	cmd.Flags().Bool("sanitize", false, "sanitize article HTML before conversion")
	cmd.Flags().Bool("no-catalog", false, "do not record articles in the catalog")
}

// bindGrabFlags binds the flags of the running command to their config
// keys. Binding happens at run time because post and user share key names.
func bindGrabFlags(cmd *cobra.Command) {
	for flag, key := range map[string]string{
		"concurrency":       "concurrency",
		"image-concurrency": "image_concurrency",
		"on-image-error":    "on_image_error",
		"article-timeout":   "article_timeout",
		"timeout":           "http.timeout",
		"max-retries":       "http.max_retries",
		"sanitize":          "sanitize",
	} {
		viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

// grabConfig loads the configuration for a grab command.
func grabConfig(cmd *cobra.Command) (types.GrabConfig, error) {
	bindGrabFlags(cmd)
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	if noCatalog, _ := cmd.Flags().GetBool("no-catalog"); noCatalog {
		cfg.Catalog = false
	}
	return cfg, nil
}

// runGrab processes locs and reports whether any article failed.
func runGrab(ctx context.Context, cfg types.GrabConfig, client *httputil.Client, locs []types.ArticleLocator, w io.Writer) (pipeline.BatchResult, error) {
	var opts []pipeline.Option
	if cfg.Catalog {
		store, err := catalog.Open(cfg.DocsDir)
		if err != nil {
			return pipeline.BatchResult{}, err
		}
		defer store.Close()
		opts = append(opts, pipeline.WithCatalog(store))
	}

	g := pipeline.New(client, cfg, w, opts...)
	result := g.GrabBatch(ctx, locs)
	if result.HasFailures() {
		return result, fmt.Errorf("%d of %d article(s) failed", result.Failed, result.Total())
	}
	return result, nil
}
