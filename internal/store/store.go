// Package store is the typed gateway over Postgres+pgvector: the corpus,
// agents, tools, workflows, secrets and run log all live behind this one
// connection pool, opened once and migrated via embedded SQL files.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/gasable/hub/internal/errkind"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a connection pool plus the embedding dimension it was opened
// with; every vector column write is validated against this dimension.
type Store struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

// Config configures Store.
type Config struct {
	// DSN is the PostgreSQL connection string. If empty, DB must be set.
	DSN string
	// DB reuses an existing connection; DSN is ignored when set and the
	// store will not close the connection on Close.
	DB *sql.DB
	// Dimension is the embedding column's vector dimension.
	Dimension int
	// RunMigrations applies pending migrations on New.
	RunMigrations bool
}

// New opens (or adopts) a Postgres connection and optionally migrates it.
func New(cfg Config) (*Store, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	var db *sql.DB
	var ownsDB bool
	var err error

	switch {
	case cfg.DB != nil:
		db = cfg.DB
	case cfg.DSN != "":
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, errkind.New(errkind.UpstreamUnavailable, "store.New", fmt.Errorf("open database: %w", err))
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, errkind.New(errkind.UpstreamUnavailable, "store.New", fmt.Errorf("ping database: %w", err))
		}
	default:
		return nil, errkind.Newf(errkind.BadRequest, "store.New", "either DSN or DB must be provided")
	}

	s := &Store{db: db, dimension: cfg.Dimension, ownsDB: ownsDB}

	if cfg.RunMigrations {
		if err := s.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the underlying connection if Store opened it itself.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the raw pool for components (status health checks) that only
// need to ping, not go through Store's typed operations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS hub_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create hub_schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO hub_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM hub_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query hub_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan hub_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// Migration is one embedded up/down SQL pair.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

// LastMigrationID returns the lexicographically last embedded migration id,
// used by the status component to report the schema version without a
// round trip to the database.
func LastMigrationID() string {
	migrations, err := loadMigrations()
	if err != nil || len(migrations) == 0 {
		return ""
	}
	return migrations[len(migrations)-1].ID
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		var suffix string
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}

func (s *Store) validateEmbedding(embedding []float32, allowEmpty bool) error {
	if len(embedding) == 0 {
		if allowEmpty {
			return nil
		}
		return errkind.Newf(errkind.BadRequest, "store.validateEmbedding", "embedding is empty")
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return errkind.Newf(errkind.BadRequest, "store.validateEmbedding", "embedding dimension mismatch: got %d, want %d", len(embedding), s.dimension)
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return errkind.Newf(errkind.BadRequest, "store.validateEmbedding", "embedding contains invalid values")
		}
	}
	return nil
}

// encodeEmbedding renders a vector as the pgvector literal form "[a,b,c]".
func encodeEmbedding(embedding []float32) sql.NullString {
	if len(embedding) == 0 {
		return sql.NullString{}
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sql.NullString{String: sb.String(), Valid: true}
}

func decodeEmbedding(raw string) []float32 {
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		var f float64
		fmt.Sscanf(strings.TrimSpace(p), "%f", &f)
		out[i] = float32(f)
	}
	return out
}
