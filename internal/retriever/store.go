package retriever

import (
	"context"

	"github.com/gasable/hub/pkg/models"
)

// StoreReader is the subset of store.Store the retriever needs, narrowed to
// an interface so handlers can be tested against a fake.
type StoreReader interface {
	VectorTopK(ctx context.Context, vec []float32, k int, agentID, namespace string) ([]models.ScoredChunk, error)
	BM25TopK(ctx context.Context, query string, k int, agentID, namespace string) ([]models.ScoredChunk, error)
	ILikeTopK(ctx context.Context, tokens []string, k int, agentID, namespace string) ([]models.ScoredChunk, error)
	FetchByIDs(ctx context.Context, ids []string) ([]models.Chunk, error)
}
