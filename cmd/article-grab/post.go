// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/pkg/types"
)

var postCmd = &cobra.Command{
	Use:   "post [post ids or urls...]",
	Short: "Grab articles by post id or URL",
	Long: `Post fetches each article, downloads its images into docs/images/ and
writes docs/<title>.md. Arguments are post ids (7234567890123456789) or full
article URLs. Articles are processed concurrently; one failing article does
not stop the others.`,
	RunE: runPost,
}

func init() {
	addGrabFlags(postCmd)
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more post ids or article URLs")
	}

	cfg, err := grabConfig(cmd)
	if err != nil {
		return err
	}

	locs := make([]types.ArticleLocator, 0, len(args))
	for _, arg := range args {
		locs = append(locs, types.ParseLocator(arg, cfg.Platform.PostURLTemplate))
	}

	_, err = runGrab(cmd.Context(), cfg, httputil.New(cfg.HTTPConfig), locs, cmd.OutOrStdout())
	return err
}
