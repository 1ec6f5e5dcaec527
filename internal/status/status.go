// Package status implements the health/status/recent-errors surface the
// HTTP layer exposes at /health and /api/status: cheap liveness probes over
// Store and Embedder, a snapshot of build/runtime facts, and a read-only
// window into the in-process error ring.
package status

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/gasable/hub/internal/audit"
	"github.com/gasable/hub/internal/retriever"
)

// DB is the subset of *sql.DB the health probe needs.
type DB interface {
	PingContext(ctx context.Context) error
}

// Reporter exposes the read-only status surface over a store, embedder, and
// in-process error ring.
type Reporter struct {
	DB        DB
	Embedder  retriever.Embedder
	Dimension int
	Errors    *audit.ErrorRing
	StartedAt time.Time
}

// ComponentHealth is the health of a single dependency.
type ComponentHealth struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// Health is the aggregate result of health().
type Health struct {
	OK         bool              `json:"ok"`
	Components []ComponentHealth `json:"components"`
}

// Health probes Store and Embedder and reports whether the service is ready
// to serve traffic. A nil Embedder is treated as "not configured", not a
// failure, since some deployments run retrieval in lexical-only mode.
func (r *Reporter) Health(ctx context.Context) Health {
	var components []ComponentHealth
	ok := true

	components = append(components, probe("store", func(ctx context.Context) error {
		if r.DB == nil {
			return sql.ErrConnDone
		}
		return r.DB.PingContext(ctx)
	}, ctx))

	if r.Embedder != nil {
		components = append(components, probe("embedder", func(ctx context.Context) error {
			_, err := r.Embedder.Embed(ctx, []string{"healthcheck"})
			return err
		}, ctx))
	}

	for _, c := range components {
		if !c.OK {
			ok = false
		}
	}

	return Health{OK: ok, Components: components}
}

func probe(name string, fn func(ctx context.Context) error, ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := fn(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return ComponentHealth{Name: name, OK: false, Error: err.Error(), Latency: latency}
	}
	return ComponentHealth{Name: name, OK: true, Latency: latency}
}

// Status is the response of status(): static facts plus the last-applied
// migration version, useful for confirming a deploy landed.
type Status struct {
	Pid             int    `json:"pid"`
	EmbeddingColumn string `json:"embedding_column"`
	Dimension       int    `json:"dimension"`
	LastMigration   string `json:"last_migration"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

// LastMigrationFunc lets tests stub the store's embedded-migration lookup
// without depending on the store package directly.
type LastMigrationFunc func() string

// Status reports process and schema facts. lastMigration is injected rather
// than imported directly so this package does not need to depend on store
// for a single string lookup.
func (r *Reporter) Status(lastMigration LastMigrationFunc) Status {
	var migration string
	if lastMigration != nil {
		migration = lastMigration()
	}
	return Status{
		Pid:             os.Getpid(),
		EmbeddingColumn: "embedding",
		Dimension:       r.Dimension,
		LastMigration:   migration,
		UptimeSeconds:   int64(time.Since(r.StartedAt).Seconds()),
	}
}

// RecentErrors returns up to n of the most recently recorded error events,
// newest first. A nil ring returns an empty slice rather than panicking.
func (r *Reporter) RecentErrors(n int) []audit.Event {
	if r.Errors == nil {
		return nil
	}
	return r.Errors.Recent(n)
}
