package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			lexical, vector, err := a.manager.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"lexical": lexical,
					"vector":  vector,
					"model":   a.embedder.ModelName(),
				})
			}

			fmt.Fprintf(out, "Lexical index:   %d documents, %d chunks (%s)\n",
				lexical.TotalDocs, lexical.TotalChunks, lexical.Path)
			fmt.Fprintf(out, "Embedding index: %d documents, %d chunks (%s)\n",
				vector.TotalDocs, vector.TotalChunks, vector.Path)
			fmt.Fprintf(out, "Embedding model: %s (%d dimensions)\n",
				a.embedder.ModelName(), a.embedder.Dimensions())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
