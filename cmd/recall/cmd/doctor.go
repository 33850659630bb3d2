package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniclipper/recall/internal/index"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check index health and cross-index consistency",
		Long: `Verify that the embedding provider is reachable and that the two
indexes agree on which documents exist. Documents present in only one
index come from partial indexing failures; re-index or delete them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()

			if a.embedder.Available(cmd.Context()) {
				fmt.Fprintf(out, "✓ embedding provider available (%s, %d dimensions)\n",
					a.embedder.ModelName(), a.embedder.Dimensions())
			} else {
				fmt.Fprintf(out, "✗ embedding provider unavailable (%s)\n", a.embedder.ModelName())
			}

			checker := index.NewConsistencyChecker(a.lexical, a.vector)
			result, err := checker.Check(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "  lexical index: %d documents\n", result.LexicalDocs)
			fmt.Fprintf(out, "  embedding index: %d documents\n", result.VectorDocs)

			if result.Healthy() {
				fmt.Fprintf(out, "✓ indexes consistent (checked in %s)\n", result.Duration.Round(0))
				return nil
			}

			fmt.Fprintf(out, "✗ %d inconsistencies found:\n", len(result.Inconsistencies))
			for _, inc := range result.Inconsistencies {
				fmt.Fprintf(out, "  %s: %s\n", inc.Type, inc.DocID)
			}
			return fmt.Errorf("indexes are inconsistent")
		},
	}
}
