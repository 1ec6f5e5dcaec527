package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/internal/sseio"
	"github.com/gasable/hub/pkg/models"
)

type fakeStore struct {
	denseHits []models.ScoredChunk
	lexHits   []models.ScoredChunk
	bm25Hits  []models.ScoredChunk
	byID      map[string]models.Chunk
	denseErr  error
}

func (f *fakeStore) VectorTopK(ctx context.Context, vec []float32, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	return f.denseHits, nil
}

func (f *fakeStore) BM25TopK(ctx context.Context, query string, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	return f.bm25Hits, nil
}

func (f *fakeStore) ILikeTopK(ctx context.Context, tokens []string, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	return f.lexHits, nil
}

func (f *fakeStore) FetchByIDs(ctx context.Context, ids []string) ([]models.Chunk, error) {
	var out []models.Chunk
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeChat struct{}

func (fakeChat) Chat(ctx context.Context, model string, messages []llmclient.Message, tools []llmclient.ToolDef) (llmclient.ChatResponse, error) {
	return llmclient.ChatResponse{Content: `["alt phrasing"]`}, nil
}

func scoredChunk(id, text string) models.ScoredChunk {
	return models.ScoredChunk{Chunk: models.Chunk{NodeID: id, Text: text}}
}

func TestRetrieveHappyPathEmitsFullStateMachine(t *testing.T) {
	store := &fakeStore{
		denseHits: []models.ScoredChunk{scoredChunk("doc-1", "electric vehicle charging network overview")},
		lexHits:   []models.ScoredChunk{scoredChunk("doc-2", "electric vehicle charging stations")},
		bm25Hits:  []models.ScoredChunk{scoredChunk("doc-1", "electric vehicle charging network overview")},
	}
	r := &Retriever{Store: store, Embedder: fakeEmbedder{}, Chat: fakeChat{}, ChatModel: "gpt-test"}
	reporter := sseio.NewRecordingReporter()

	cfg := DefaultConfig()
	result := r.Retrieve(context.Background(), "electric vehicle charging", "agent-1", "global", cfg, reporter)

	require.False(t, result.BudgetHit)
	require.NotEmpty(t, result.Selected)

	var events []string
	for _, f := range reporter.Frames {
		events = append(events, f.Event)
	}
	require.Contains(t, events, "received_query")
	require.Contains(t, events, "expansions")
	require.Contains(t, events, "dense_retrieval")
	require.Contains(t, events, "lex_retrieval")
	require.Contains(t, events, "bm25")
	require.Contains(t, events, "fusion")
	require.Contains(t, events, "retrieval_done")
	require.Contains(t, events, "selected_context")
}

func TestRetrieveBudgetExceededFallsBackToLexical(t *testing.T) {
	store := &fakeStore{
		lexHits: []models.ScoredChunk{scoredChunk("doc-9", "diesel delivery network")},
	}
	r := &Retriever{Store: store, Embedder: fakeEmbedder{}, Chat: fakeChat{}}
	reporter := sseio.NewRecordingReporter()

	cfg := DefaultConfig()
	result := r.timeoutFallback(context.Background(), "diesel delivery", "agent-1", "global", cfg, []string{"diesel delivery"}, "en", time.Now(), reporter)
	require.True(t, result.BudgetHit)
	require.NotEmpty(t, result.Selected)

	var sawTimeout bool
	for _, f := range reporter.Frames {
		if f.Event == "timeout_fallback" {
			sawTimeout = true
		}
	}
	require.True(t, sawTimeout)
}

func TestRetrieveBackfillsMissingText(t *testing.T) {
	store := &fakeStore{
		lexHits: []models.ScoredChunk{{Chunk: models.Chunk{NodeID: "doc-5"}}},
		byID:    map[string]models.Chunk{"doc-5": {NodeID: "doc-5", Text: "backfilled body"}},
	}
	r := &Retriever{Store: store, Embedder: fakeEmbedder{}}
	cfg := DefaultConfig()

	result := r.timeoutFallback(context.Background(), "query", "agent-1", "global", cfg, []string{"query"}, "en", time.Now(), nil)
	require.NotEmpty(t, result.Selected)
	require.Equal(t, "backfilled body", result.Selected[0].Text)
}

func TestNoContextMessageLocalizesToArabic(t *testing.T) {
	require.Equal(t, noContextAR, NoContextMessage("ar"))
	require.Equal(t, noContextEN, NoContextMessage("en"))
}
