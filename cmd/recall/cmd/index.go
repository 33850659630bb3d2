package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/omniclipper/recall/internal/item"
)

// indexOptions holds metadata flags for one document.
type indexOptions struct {
	title    string
	docType  string
	tags     []string
	folder   string
	category string
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <doc-id> [file]",
		Short: "Index a document into both search indexes",
		Long: `Index a document into the lexical and embedding indexes.

Content is read from the given file, or from stdin when no file is
given. Re-indexing an existing document replaces its chunks.

Examples:
  recall index note-42 notes/meeting.md --title "Weekly sync" --tag work
  cat article.txt | recall index article-7 --folder reading --category tech`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Document title")
	cmd.Flags().StringVar(&opts.docType, "type", "", "Document type (e.g. note, article)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&opts.folder, "folder", "", "Folder name")
	cmd.Flags().StringVar(&opts.category, "category", "", "Category")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, opts indexOptions) error {
	var text []byte
	var err error
	if len(args) == 2 {
		text, err = os.ReadFile(args[1])
	} else {
		text, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	doc := &item.Document{
		ID:   args[0],
		Text: string(text),
		Metadata: item.Metadata{
			Title:      opts.title,
			Type:       opts.docType,
			Tags:       opts.tags,
			FolderName: opts.folder,
			Category:   opts.category,
			CreatedAt:  time.Now(),
		},
	}

	res, err := a.manager.Index(ctx, doc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "Skipped %s: content too short\n", doc.ID)
		return nil
	}
	fmt.Fprintf(out, "Indexed %s: %d lexical chunks, %d vector chunks\n",
		doc.ID, res.LexicalChunks, res.VectorChunks)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
	return nil
}
