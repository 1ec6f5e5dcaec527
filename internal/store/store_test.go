package store

import (
	"context"
	"database/sql"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/pkg/models"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db, dimension: 3}, mock
}

func TestValidateEmbeddingDimension(t *testing.T) {
	s := &Store{dimension: 3}

	require.NoError(t, s.validateEmbedding([]float32{1, 2, 3}, false))
	require.Error(t, s.validateEmbedding([]float32{1, 2}, false))
}

func TestValidateEmbeddingAllowsEmptyWhenConfigured(t *testing.T) {
	s := &Store{dimension: 3}

	require.NoError(t, s.validateEmbedding(nil, true))
	require.Error(t, s.validateEmbedding(nil, false))
}

func TestValidateEmbeddingRejectsNaN(t *testing.T) {
	s := &Store{dimension: 2}
	require.Error(t, s.validateEmbedding([]float32{1, float32(math.NaN())}, false))
}

func TestEncodeDecodeEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 2}
	encoded := encodeEmbedding(in)
	require.True(t, encoded.Valid)

	out := decodeEmbedding(encoded.String)
	require.Equal(t, in, out)
}

func TestUpsertChunksRejectsMissingNodeID(t *testing.T) {
	s, _ := setupMockStore(t)
	err := s.UpsertChunks(context.Background(), []models.Chunk{{Embedding: []float32{1, 2, 3}}})
	require.Error(t, err)
}

func TestUpsertChunksInsertsRow(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO gasable_index")
	mock.ExpectExec("INSERT INTO gasable_index").
		WithArgs("n1", "hello world", sqlmock.AnyArg(), "default", "global", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.UpsertChunks(context.Background(), []models.Chunk{
		{NodeID: "n1", Text: "hello world", Embedding: []float32{0.1, 0.2, 0.3}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorTopKScansRows(t *testing.T) {
	s, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{"node_id", "text", "agent_id", "namespace", "chunk_index", "li_metadata", "score"}).
		AddRow("n1", "hello", "default", "global", 0, []byte(`{}`), 0.9)

	mock.ExpectQuery("SELECT node_id, text, agent_id, namespace, chunk_index, li_metadata").
		WillReturnRows(rows)

	out, err := s.VectorTopK(context.Background(), []float32{0.1, 0.2, 0.3}, 5, "default", "global")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "n1", out[0].NodeID)
	require.Equal(t, "dense", out[0].Source)
}

func TestAppendRunRejectsMissingRunID(t *testing.T) {
	s, _ := setupMockStore(t)
	err := s.AppendRun(context.Background(), models.RunRecord{})
	require.Error(t, err)
}

func TestAppendRunInsertsRow(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec("INSERT INTO agent_runs").
		WithArgs("run-1", "", "", "support", "hi", sqlmock.AnyArg(), "", int64(120)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.AppendRun(context.Background(), models.RunRecord{
		RunID:         "run-1",
		SelectedAgent: "support",
		UserMessage:   "hi",
		ElapsedMS:     120,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAgentRejectsMissingID(t *testing.T) {
	s, _ := setupMockStore(t)
	err := s.UpsertAgent(context.Background(), models.Agent{})
	require.Error(t, err)
}

func TestGetAgentNotFound(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT id, display_name, namespace").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetAgent(context.Background(), "missing")
	require.Error(t, err)
}

func TestLastMigrationIDReturnsLatest(t *testing.T) {
	id := LastMigrationID()
	require.Equal(t, "0002_workflow_schedule", id)
}
