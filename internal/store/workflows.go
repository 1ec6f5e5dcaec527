package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// ListWorkflows returns every stored workflow, optionally scoped to namespace.
func (s *Store) ListWorkflows(ctx context.Context, namespace string) ([]models.Workflow, error) {
	query := `SELECT id, display_name, namespace, graph, schedule, created_at, updated_at FROM gasable_workflows`
	args := []any{}
	if namespace != "" {
		query += " WHERE namespace = $1"
		args = append(args, namespace)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.ListWorkflows", err)
	}
	defer rows.Close()

	var out []models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, errkind.New(errkind.Internal, "store.ListWorkflows", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListScheduledWorkflows returns every workflow with an enabled cron
// schedule, for the scheduler to load at startup.
func (s *Store) ListScheduledWorkflows(ctx context.Context) ([]models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, namespace, graph, schedule, created_at, updated_at
		FROM gasable_workflows
		WHERE schedule IS NOT NULL AND (schedule->>'enabled')::boolean IS TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.ListScheduledWorkflows", err)
	}
	defer rows.Close()

	var out []models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, errkind.New(errkind.Internal, "store.ListScheduledWorkflows", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWorkflow fetches a single workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (models.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, namespace, graph, schedule, created_at, updated_at
		FROM gasable_workflows WHERE id = $1
	`, id)

	w, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Workflow{}, errkind.Newf(errkind.NotFound, "store.GetWorkflow", "workflow %q not found", id)
		}
		return models.Workflow{}, errkind.New(errkind.Internal, "store.GetWorkflow", err)
	}
	return w, nil
}

// UpsertWorkflow creates or replaces a workflow's graph definition and
// optional cron schedule.
func (s *Store) UpsertWorkflow(ctx context.Context, w models.Workflow) error {
	if w.ID == "" {
		return errkind.Newf(errkind.BadRequest, "store.UpsertWorkflow", "workflow id is required")
	}
	if w.Namespace == "" {
		w.Namespace = "global"
	}
	graph, err := json.Marshal(w.Graph)
	if err != nil {
		return errkind.New(errkind.Internal, "store.UpsertWorkflow", fmt.Errorf("marshal graph: %w", err))
	}

	var schedule []byte
	if w.Schedule != nil {
		schedule, err = json.Marshal(w.Schedule)
		if err != nil {
			return errkind.New(errkind.Internal, "store.UpsertWorkflow", fmt.Errorf("marshal schedule: %w", err))
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gasable_workflows (id, display_name, namespace, graph, schedule, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			namespace = EXCLUDED.namespace,
			graph = EXCLUDED.graph,
			schedule = EXCLUDED.schedule,
			updated_at = now()
	`, w.ID, w.DisplayName, w.Namespace, graph, schedule)
	if err != nil {
		return errkind.New(errkind.ConstraintViolation, "store.UpsertWorkflow", err)
	}
	return nil
}

func scanWorkflow(row rowScanner) (models.Workflow, error) {
	var w models.Workflow
	var graphJSON []byte
	var scheduleJSON []byte
	if err := row.Scan(&w.ID, &w.DisplayName, &w.Namespace, &graphJSON, &scheduleJSON, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return w, err
	}
	if len(graphJSON) > 0 {
		if err := json.Unmarshal(graphJSON, &w.Graph); err != nil {
			return w, fmt.Errorf("unmarshal graph: %w", err)
		}
	}
	if len(scheduleJSON) > 0 {
		var sched models.Schedule
		if err := json.Unmarshal(scheduleJSON, &sched); err != nil {
			return w, fmt.Errorf("unmarshal schedule: %w", err)
		}
		w.Schedule = &sched
	}
	return w, nil
}
