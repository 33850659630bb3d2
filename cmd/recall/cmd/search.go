package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type searchOptions struct {
	limit       int
	format      string // "text", "json"
	chunks      bool   // return individual chunks instead of one per document
	lexicalOnly bool
	vectorOnly  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Run a hybrid search over the indexed documents.

Keyword (BM25) and semantic (embedding) rankings are merged with
Reciprocal Rank Fusion. By default results are grouped to the best
chunk per document.

Examples:
  recall search "kubernetes ingress setup"
  recall search "東京 ラーメン" --limit 5
  recall search "tax deadline" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.chunks, "chunks", false, "Return every matching chunk instead of one per document")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Search the keyword index only")
	cmd.Flags().BoolVar(&opts.vectorOnly, "vector-only", false, "Search the embedding index only")
	cmd.MarkFlagsMutuallyExclusive("lexical-only", "vector-only")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	limit := opts.limit
	if limit <= 0 {
		limit = a.cfg.Search.MaxResults
	}

	engineOpts := a.searchOptions(limit, !opts.chunks)
	engineOpts.LexicalOnly = opts.lexicalOnly
	engineOpts.VectorOnly = opts.vectorOnly

	results, err := a.engine.Search(ctx, query, engineOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		fmt.Fprintf(out, "%2d. %s (score %.3f", i+1, title, r.Score)
		if r.BM25Rank > 0 && r.VectorRank > 0 {
			fmt.Fprintf(out, ", bm25 #%d, vector #%d", r.BM25Rank, r.VectorRank)
		}
		fmt.Fprintln(out, ")")
		fmt.Fprintf(out, "    %s\n", snippet(r.Text, 160))
	}
	return nil
}

// snippet truncates text to max runes on a single line.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
