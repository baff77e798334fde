// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-grab/internal/catalog"
)

// maxTitleWidth caps the TITLE column in terminal cells.
const maxTitleWidth = 48

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles recorded in the catalog",
	Long: `List prints the articles recorded in docs/.article-grab/catalog.db. Use
--verify to check that every document still exists and carries the
catalogued title with its images in place. Use --runs to list past grab
runs instead.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "print entries as JSON")
	listCmd.Flags().Bool("yaml", false, "print entries as YAML")
	listCmd.Flags().String("query", "", "only entries whose title or keywords contain this text")
	listCmd.Flags().String("run", "", "only entries grabbed by this run id")
	listCmd.Flags().Int("limit", 0, "maximum number of entries (0 = all)")
	listCmd.Flags().Bool("verify", false, "check each document on disk")
	listCmd.Flags().Bool("runs", false, "list grab runs instead of articles")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.DocsDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	limit, _ := cmd.Flags().GetInt("limit")

	if runs, _ := cmd.Flags().GetBool("runs"); runs {
		list, err := store.Runs(ctx, limit)
		if err != nil {
			return err
		}
		switch {
		case asJSON:
			return writeJSON(w, list)
		case asYAML:
			return yaml.NewEncoder(w).Encode(list)
		}
		writeRunTable(w, list)
		return nil
	}

	query, _ := cmd.Flags().GetString("query")
	runID, _ := cmd.Flags().GetString("run")
	entries, err := store.List(ctx, catalog.QueryOptions{Query: query, RunID: runID, Limit: limit})
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		return writeJSON(w, entries)
	case asYAML:
		return yaml.NewEncoder(w).Encode(entries)
	}

	var problems []error
	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		problems = make([]error, len(entries))
		for i, e := range entries {
			problems[i] = store.Verify(ctx, e)
		}
	}
	writeEntryTable(w, entries, problems)

	bad := 0
	for _, p := range problems {
		if p != nil {
			fmt.Fprintf(w, "  warning: %v\n", p)
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d document(s) failed verification", bad)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeEntryTable prints entries as aligned columns. Widths are measured
// in terminal cells so CJK titles line up. A STATUS column is added when
// problems is non-nil.
func writeEntryTable(w io.Writer, entries []catalog.Entry, problems []error) {
	header := []string{"ID", "TITLE", "MEDIA", "PATH"}
	if problems != nil {
		header = append(header, "STATUS")
	}

	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		row := []string{
			e.ID,
			runewidth.Truncate(e.Title, maxTitleWidth, "..."),
			strconv.Itoa(e.Media),
			e.Path,
		}
		if problems != nil {
			status := "ok"
			if problems[i] != nil {
				status = "FAILED"
			}
			row = append(row, status)
		}
		rows = append(rows, row)
	}
	writeTable(w, header, rows)
	fmt.Fprintf(w, "\n%d article(s)\n", len(entries))
}

func writeRunTable(w io.Writer, runs []catalog.Run) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Local().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			finished,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Failed),
		})
	}
	writeTable(w, []string{"RUN", "STARTED", "FINISHED", "TOTAL", "FAILED"}, rows)
}

// writeTable pads every column but the last to its widest cell.
func writeTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	line := func(row []string) {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(w, b.String())
	}

	line(header)
	for _, row := range rows {
		line(row)
	}
}
