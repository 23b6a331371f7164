// Package cmd implements the lodestone CLI.
package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lodestone-data/lodestone/internal/log"
)

var (
	verbose bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "lodestone",
	Short: "Lodestone - RAG assistant for the bronze ingestion framework",
	Long: `Lodestone answers questions about a metadata-driven data lakehouse:
source configurations, ingestion run history, and framework documentation.

Run "lodestone serve" to start the HTTP API, or "lodestone ask" for a
one-shot question from the terminal.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; config falls back to real env vars.
		_ = godotenv.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: logJSON})
}
