// Command indexsync (re-)populates the candidate vector index.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "indexsync",
	Short: "Bulk embed resumes into the vector index",
	Long:  "indexsync loads every resume's consolidated text from Postgres (or a YAML fixture), embeds it in batches and upserts it into the Qdrant collection, creating the collection when absent.",
	RunE:  runSync,
	// Errors are printed once by main.
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
