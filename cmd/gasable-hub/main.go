// Package main provides the CLI entry point for the Gasable Hub RAG and
// orchestration service.
//
// Gasable Hub serves hybrid retrieval, structured answering, a tool
// registry, multi-agent orchestration, and a workflow runtime behind one
// HTTP/SSE surface, backed by Postgres+pgvector.
//
// # Basic Usage
//
// Start the server:
//
//	gasable-hub serve --http-addr :8080
//
// Apply pending database migrations:
//
//	gasable-hub migrate
//
// Check system health:
//
//	gasable-hub health
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached. This
// is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gasable-hub",
		Short: "Gasable Hub - hybrid RAG and multi-agent orchestration service",
		Long: `Gasable Hub serves hybrid dense+lexical retrieval, structured answering,
a credentialed tool registry, multi-agent orchestration, and a declarative
workflow runtime behind one HTTP/SSE surface, backed by Postgres+pgvector.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildHealthCmd(),
	)

	return rootCmd
}
