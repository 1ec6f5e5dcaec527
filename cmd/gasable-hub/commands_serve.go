package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the HTTP/SSE server.
// This is the primary command for running Gasable Hub in production.
func buildServeCmd() *cobra.Command {
	var (
		httpAddr      string
		debug         bool
		runMigrations bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Gasable Hub HTTP server",
		Long: `Start the Gasable Hub HTTP server.

The server will:
1. Load configuration from the process environment
2. Open the Postgres+pgvector connection pool (applying migrations if requested)
3. Wire the retriever, answerer, tool registry, orchestrator and workflow runtime
4. Serve the documented HTTP/SSE route table

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with defaults from the environment
  gasable-hub serve

  # Start on a custom address with debug logging
  gasable-hub serve --http-addr :9090 --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, httpAddr, debug, runMigrations)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "Address to serve HTTP on")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	cmd.Flags().BoolVar(&runMigrations, "migrate", true, "Apply pending database migrations before serving")

	return cmd
}

// buildMigrateCmd creates the "migrate" command for applying pending schema
// migrations without starting the server.
func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}
	return cmd
}

// buildHealthCmd creates the "health" command, a one-shot health probe
// useful for container liveness checks and operator debugging.
func buildHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report component health and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd)
		},
	}
	return cmd
}
