// Package cli implements the ragsync command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ragsync",
	Short: "Keep folders synchronized with a vector store for semantic search",
	Long: `ragsync watches directories and keeps their files mirrored as embedded
text chunks in a vector store (Qdrant or PostgreSQL/pgvector).

Files are split into overlapping word windows, embedded with a local or
cloud provider, and updated incrementally as they change on disk. Each
watched folder maps to its own collection, so search stays scoped to
the folder you ask about.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(forgetCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
