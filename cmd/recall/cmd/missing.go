package cmd

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
)

func newMissingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "missing [doc-id]...",
		Short: "List documents with no vectors under the active model",
		Long: `Diff the given document IDs against the embedding index and print
the ones that have no vectors under the active model. Useful after
switching embedding models or bulk-importing documents.

IDs come from the arguments, or from stdin (one per line) when no
arguments are given. Output order follows input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if len(ids) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if line := scanner.Text(); line != "" {
						ids = append(ids, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return fmt.Errorf("no document IDs given")
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			missing, err := a.manager.CheckMissing(cmd.Context(), ids)
			if err != nil {
				return err
			}
			for _, id := range missing {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
