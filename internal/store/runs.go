package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// AppendRun persists one orchestrator run for audit and cost/usage reporting.
// Runs are append-only; there is no UpdateRun.
func (s *Store) AppendRun(ctx context.Context, r models.RunRecord) error {
	if r.RunID == "" {
		return errkind.Newf(errkind.BadRequest, "store.AppendRun", "run_id is required")
	}
	toolCalls, err := json.Marshal(r.ToolCalls)
	if err != nil {
		return errkind.New(errkind.Internal, "store.AppendRun", fmt.Errorf("marshal tool_calls: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_runs (run_id, user_id, namespace, selected_agent, user_message,
			tool_calls, result_summary, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.RunID, r.UserID, r.Namespace, r.SelectedAgent, r.UserMessage, toolCalls, r.ResultSummary, r.ElapsedMS)
	if err != nil {
		return errkind.New(errkind.ConstraintViolation, "store.AppendRun", err)
	}
	return nil
}

// RecentRuns returns the n most recently appended runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, n int) ([]models.RunRecord, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, user_id, namespace, selected_agent, user_message,
			tool_calls, result_summary, elapsed_ms, created_at
		FROM agent_runs ORDER BY created_at DESC LIMIT $1
	`, n)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.RecentRuns", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var toolCallsJSON []byte
		if err := rows.Scan(&r.RunID, &r.UserID, &r.Namespace, &r.SelectedAgent, &r.UserMessage,
			&toolCallsJSON, &r.ResultSummary, &r.ElapsedMS, &r.CreatedAt); err != nil {
			return nil, errkind.New(errkind.Internal, "store.RecentRuns", err)
		}
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &r.ToolCalls); err != nil {
				return nil, errkind.New(errkind.Internal, "store.RecentRuns", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
