package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// ListTools returns every installed node (tool) spec ordered by name. The
// tool catalog has no table of its own; it is the installed rows of nodes.
func (s *Store) ListTools(ctx context.Context) ([]models.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, title, category, spec, version, installed_at
		FROM nodes ORDER BY name
	`)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.ListTools", err)
	}
	defer rows.Close()

	var out []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errkind.New(errkind.Internal, "store.ListTools", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetTool fetches a single installed node by name.
func (s *Store) GetTool(ctx context.Context, name string) (models.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, title, category, spec, version, installed_at
		FROM nodes WHERE name = $1
	`, name)

	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Node{}, errkind.Newf(errkind.NotFound, "store.GetTool", "tool %q not found", name)
		}
		return models.Node{}, errkind.New(errkind.Internal, "store.GetTool", err)
	}
	return n, nil
}

// UpsertTool installs or updates a node spec.
func (s *Store) UpsertTool(ctx context.Context, n models.Node) error {
	if n.Name == "" {
		return errkind.Newf(errkind.BadRequest, "store.UpsertTool", "tool name is required")
	}
	spec := n.Spec
	if len(spec) == 0 {
		spec = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (name, title, category, spec, version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			spec = EXCLUDED.spec,
			version = EXCLUDED.version
	`, n.Name, n.Title, n.Category, []byte(spec), n.Version)
	if err != nil {
		return errkind.New(errkind.ConstraintViolation, "store.UpsertTool", err)
	}
	return nil
}

func scanNode(row rowScanner) (models.Node, error) {
	var n models.Node
	var specJSON []byte
	if err := row.Scan(&n.Name, &n.Title, &n.Category, &specJSON, &n.Version, &n.InstalledAt); err != nil {
		return n, err
	}
	n.Spec = json.RawMessage(specJSON)
	return n, nil
}
