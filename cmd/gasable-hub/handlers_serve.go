package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gasable/hub/internal/config"
)

const shutdownTimeout = 30 * time.Second

// runServe implements the serve command: wire dependencies, start the HTTP
// server, and shut down gracefully on SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, httpAddr string, debug bool, runMigrations bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := config.Load()
	slog.Info("starting gasable-hub", "version", version, "commit", commit, "http_addr", httpAddr, "debug", debug)

	d, err := buildDeps(cfg, runMigrations)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer d.Close()

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: d.Server.Routes(),
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := d.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start workflow scheduler: %w", err)
	}
	defer d.Scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("gasable-hub started", "http_addr", httpAddr)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("gasable-hub stopped gracefully")
	return nil
}

// runMigrate applies pending migrations and exits. store.New already applies
// migrations when RunMigrations is true, so this command's body is just that
// call plus a confirmation message.
func runMigrate(cmd *cobra.Command) error {
	cfg := config.Load()
	d, err := buildDeps(cfg, true)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	defer d.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

// runHealth probes every component and prints the result as JSON, exiting
// non-zero if any component is unhealthy. Useful for container liveness
// checks and manual operator debugging.
func runHealth(cmd *cobra.Command) error {
	cfg := config.Load()
	d, err := buildDeps(cfg, false)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	health := d.Server.StatusRep.Health(ctx)
	payload, _ := json.MarshalIndent(health, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))

	if !health.OK {
		return fmt.Errorf("one or more components unhealthy")
	}
	return nil
}
