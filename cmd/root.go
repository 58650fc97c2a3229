// Package cmd provides the faqhub CLI commands.
//
// Commands:
//   - serve: HTTP API server (chat, knowledge base, pending queue)
//   - migrate: apply database migrations and exit
//   - version: show version information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/faqhub/faqhub/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "faqhub",
	Short: "faqhub - semantic FAQ answering service",
	Long: `faqhub answers user questions against a curated knowledge base.

Questions are matched by embedding similarity; answered ones get an
AI-generated response grounded in the matching entries, unanswered ones are
queued for the team to resolve.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the faqhub CLI application.
func Execute() error {
	// Initialize the default logger once at entry point. Components still
	// receive loggers by injection; the default covers early startup paths.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}
