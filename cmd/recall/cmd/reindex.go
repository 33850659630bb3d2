package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/omniclipper/recall/internal/item"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [file]",
		Short: "Bulk re-index documents from a JSON Lines stream",
		Long: `Re-index a batch of documents, replacing any existing chunks.

Input is JSON Lines, one document per line, read from the given file or
stdin:

  {"id":"note-1","text":"...","metadata":{"title":"...","tags":["a"]}}

Per-document failures are reported and skipped; the batch keeps going.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd, args)
		},
	}
}

func runReindex(ctx context.Context, cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	docs, err := readDocuments(in)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to index.")
		return nil
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	clean, err := a.manager.ReindexAll(ctx, docs, func(done, total int, docID string) {
		fmt.Fprintf(out, "\r[%d/%d] %s", done, total, docID)
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Re-indexed %d/%d documents without warnings\n", clean, len(docs))
	return nil
}

func readDocuments(in io.Reader) ([]*item.Document, error) {
	var docs []*item.Document
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc item.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("line %d: missing document id", line)
		}
		docs = append(docs, &doc)
	}
	return docs, scanner.Err()
}
