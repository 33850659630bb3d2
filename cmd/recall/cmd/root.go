// Package cmd provides the CLI commands for Recall.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omniclipper/recall/pkg/version"
)

var (
	configPath string
	dataDir    string
	debugMode  bool
)

// NewRootCmd creates the root command for the recall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Local hybrid search over your saved items",
		Long: `Recall indexes your saved documents into a lexical (BM25) index and a
semantic (embedding) index, and answers queries by fusing both rankings
with Reciprocal Rank Fusion.

It runs entirely locally. Embeddings come from a local Ollama server or
a deterministic offline fallback.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("recall version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: <data-dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.recall)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newMissingCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
