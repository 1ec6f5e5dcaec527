package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// UpsertChunks inserts or replaces rows of gasable_index, keyed by node_id.
// Re-ingestion of the same node_id overwrites text/embedding/metadata in
// place rather than appending a duplicate row.
func (s *Store) UpsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errkind.New(errkind.Internal, "store.UpsertChunks", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gasable_index (node_id, text, embedding, agent_id, namespace, chunk_index, li_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (node_id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			agent_id = EXCLUDED.agent_id,
			namespace = EXCLUDED.namespace,
			chunk_index = EXCLUDED.chunk_index,
			li_metadata = EXCLUDED.li_metadata
	`)
	if err != nil {
		return errkind.New(errkind.Internal, "store.UpsertChunks", fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	for i, c := range chunks {
		if strings.TrimSpace(c.NodeID) == "" {
			return errkind.Newf(errkind.BadRequest, "store.UpsertChunks", "chunk %d missing node_id", i)
		}
		if err := s.validateEmbedding(c.Embedding, true); err != nil {
			return fmt.Errorf("chunk %s: %w", c.NodeID, err)
		}
		agentID := c.AgentID
		if agentID == "" {
			agentID = "default"
		}
		namespace := c.Namespace
		if namespace == "" {
			namespace = "global"
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return errkind.New(errkind.Internal, "store.UpsertChunks", fmt.Errorf("marshal metadata: %w", err))
		}

		if _, err := stmt.ExecContext(ctx, c.NodeID, c.Text, encodeEmbedding(c.Embedding), agentID, namespace, c.ChunkIndex, meta); err != nil {
			return errkind.New(errkind.ConstraintViolation, "store.UpsertChunks", fmt.Errorf("upsert %s: %w", c.NodeID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errkind.New(errkind.Internal, "store.UpsertChunks", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// FetchByIDs re-fetches chunk text/metadata for a set of node ids, used by
// the retriever's backfill step when a selected candidate's text wasn't
// cached from the retrieval query that found it.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT node_id, text, agent_id, namespace, chunk_index, li_metadata
		FROM gasable_index WHERE node_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.FetchByIDs", err)
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, errkind.New(errkind.Internal, "store.FetchByIDs", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (models.Chunk, error) {
	var c models.Chunk
	var metaJSON []byte
	if err := row.Scan(&c.NodeID, &c.Text, &c.AgentID, &c.Namespace, &c.ChunkIndex, &metaJSON); err != nil {
		return c, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return c, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return c, nil
}

// scopeFilter appends the "(agent_id = $agent OR agent_id = 'default') AND
// namespace = $ns" clause every retrieval query must apply.
func scopeFilter(args []any, agentID, namespace string, argNum int) (string, []any, int) {
	clause := fmt.Sprintf(" AND (agent_id = $%d OR agent_id = 'default') AND namespace = $%d", argNum, argNum+1)
	return clause, append(args, agentID, namespace), argNum + 2
}

// VectorTopK returns the k nearest chunks to vec by cosine distance, scoped
// to the requesting agent/namespace. The ORDER BY clause uses the cosine
// operator directly against the embedding column so the HNSW index applies.
func (s *Store) VectorTopK(ctx context.Context, vec []float32, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	if err := s.validateEmbedding(vec, false); err != nil {
		return nil, err
	}
	queryVec := encodeEmbedding(vec)

	args := []any{queryVec.String}
	clause, args, argNum := scopeFilter(args, agentID, namespace, 2)

	query := fmt.Sprintf(`
		SELECT node_id, text, agent_id, namespace, chunk_index, li_metadata,
			1 - (embedding <=> $1::vector) AS score
		FROM gasable_index
		WHERE embedding IS NOT NULL%s
		ORDER BY embedding <=> $1::vector ASC
		LIMIT $%d
	`, clause, argNum)
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.VectorTopK", err)
	}
	defer rows.Close()

	return scanScoredChunks(rows, "dense")
}

// BM25TopK runs a single full-text query against gasable_index using
// ts_rank_cd over the materialized tsv column.
func (s *Store) BM25TopK(ctx context.Context, query string, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	args := []any{query}
	clause, args, argNum := scopeFilter(args, agentID, namespace, 2)

	sqlQuery := fmt.Sprintf(`
		SELECT node_id, text, agent_id, namespace, chunk_index, li_metadata,
			ts_rank_cd(tsv, plainto_tsquery('simple', $1)) AS score
		FROM gasable_index
		WHERE tsv @@ plainto_tsquery('simple', $1)%s
		ORDER BY score DESC
		LIMIT $%d
	`, clause, argNum)
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.BM25TopK", err)
	}
	defer rows.Close()

	return scanScoredChunks(rows, "lexical")
}

// ILikeTopK tokenizes tokens (caller is expected to have already limited the
// set to <=6 terms) and ILIKE-matches text, using the pg_trgm index when
// available and falling back to a sequential scan otherwise.
func (s *Store) ILikeTopK(ctx context.Context, tokens []string, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var args []any
	var clauses []string
	argNum := 1
	for _, t := range tokens {
		clauses = append(clauses, fmt.Sprintf("text ILIKE $%d", argNum))
		args = append(args, "%"+t+"%")
		argNum++
	}
	scope, args, argNum := scopeFilter(args, agentID, namespace, argNum)

	sqlQuery := fmt.Sprintf(`
		SELECT node_id, text, agent_id, namespace, chunk_index, li_metadata,
			similarity(text, $1) AS score
		FROM gasable_index
		WHERE (%s)%s
		ORDER BY score DESC
		LIMIT $%d
	`, strings.Join(clauses, " OR "), scope, argNum)
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.ILikeTopK", err)
	}
	defer rows.Close()

	return scanScoredChunks(rows, "keyword")
}

func scanScoredChunks(rows *sql.Rows, source string) ([]models.ScoredChunk, error) {
	var out []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		var metaJSON []byte
		if err := rows.Scan(&sc.NodeID, &sc.Text, &sc.AgentID, &sc.Namespace, &sc.ChunkIndex, &metaJSON, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &sc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		sc.Source = source
		out = append(out, sc)
	}
	return out, rows.Err()
}
