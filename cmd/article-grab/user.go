// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-grab/internal/httputil"
	"github.com/pdiddy/article-grab/internal/listing"
	"github.com/pdiddy/article-grab/pkg/types"
)

var userCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Grab every article of a user",
	Long: `User pages through the platform's article list for the given user id and
grabs every article found. If a listing page fails, pagination stops and the
articles found so far are still grabbed.`,
	Args: cobra.ExactArgs(1),
	RunE: runUser,
}

func init() {
	addGrabFlags(userCmd)
	rootCmd.AddCommand(userCmd)
}

func runUser(cmd *cobra.Command, args []string) error {
	cfg, err := grabConfig(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	client := httputil.New(cfg.HTTPConfig)

	ids, listErr := listing.New(client, cfg.Platform).Collect(cmd.Context(), args[0])
	if listErr != nil {
		fmt.Fprintf(w, "failed:  listing %s (%v)\n", args[0], listErr)
	}
	fmt.Fprintf(w, "found: %d article(s) for user %s\n", len(ids), args[0])
	if len(ids) == 0 {
		return listErr
	}

	locs := make([]types.ArticleLocator, 0, len(ids))
	for _, id := range ids {
		locs = append(locs, types.PostLocator(id, cfg.Platform.PostURLTemplate))
	}

	_, grabErr := runGrab(cmd.Context(), cfg, client, locs, w)
	return errors.Join(listErr, grabErr)
}
