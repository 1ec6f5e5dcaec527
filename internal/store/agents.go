package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// ListAgents returns every registered agent ordered by id.
func (s *Store) ListAgents(ctx context.Context, namespace string) ([]models.Agent, error) {
	query := `
		SELECT id, display_name, namespace, system_prompt, tool_allowlist,
			answer_model, rerank_model, top_k, assistant_id, api_key,
			rag_settings, created_at, updated_at
		FROM gasable_agents
	`
	args := []any{}
	if namespace != "" {
		query += " WHERE namespace = $1"
		args = append(args, namespace)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.ListAgents", err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, errkind.New(errkind.Internal, "store.ListAgents", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgent fetches a single agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (models.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, namespace, system_prompt, tool_allowlist,
			answer_model, rerank_model, top_k, assistant_id, api_key,
			rag_settings, created_at, updated_at
		FROM gasable_agents WHERE id = $1
	`, id)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Agent{}, errkind.Newf(errkind.NotFound, "store.GetAgent", "agent %q not found", id)
		}
		return models.Agent{}, errkind.New(errkind.Internal, "store.GetAgent", err)
	}
	return a, nil
}

// UpsertAgent creates or replaces an agent row, bumping updated_at.
func (s *Store) UpsertAgent(ctx context.Context, a models.Agent) error {
	if a.ID == "" {
		return errkind.Newf(errkind.BadRequest, "store.UpsertAgent", "agent id is required")
	}
	if a.Namespace == "" {
		a.Namespace = "global"
	}
	if a.TopK == 0 {
		a.TopK = 6
	}
	settings, err := json.Marshal(a.RAGSettings)
	if err != nil {
		return errkind.New(errkind.Internal, "store.UpsertAgent", fmt.Errorf("marshal rag_settings: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gasable_agents (id, display_name, namespace, system_prompt, tool_allowlist,
			answer_model, rerank_model, top_k, assistant_id, api_key, rag_settings, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			namespace = EXCLUDED.namespace,
			system_prompt = EXCLUDED.system_prompt,
			tool_allowlist = EXCLUDED.tool_allowlist,
			answer_model = EXCLUDED.answer_model,
			rerank_model = EXCLUDED.rerank_model,
			top_k = EXCLUDED.top_k,
			assistant_id = EXCLUDED.assistant_id,
			api_key = EXCLUDED.api_key,
			rag_settings = EXCLUDED.rag_settings,
			updated_at = now()
	`, a.ID, a.DisplayName, a.Namespace, a.SystemPrompt, pq.Array(a.ToolAllowlist),
		a.AnswerModel, a.RerankModel, a.TopK, a.AssistantID, a.APIKey, settings)
	if err != nil {
		return errkind.New(errkind.ConstraintViolation, "store.UpsertAgent", err)
	}
	return nil
}

func scanAgent(row rowScanner) (models.Agent, error) {
	var a models.Agent
	var settingsJSON []byte
	if err := row.Scan(&a.ID, &a.DisplayName, &a.Namespace, &a.SystemPrompt, pq.Array(&a.ToolAllowlist),
		&a.AnswerModel, &a.RerankModel, &a.TopK, &a.AssistantID, &a.APIKey,
		&settingsJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return a, err
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &a.RAGSettings); err != nil {
			return a, fmt.Errorf("unmarshal rag_settings: %w", err)
		}
	}
	return a, nil
}
