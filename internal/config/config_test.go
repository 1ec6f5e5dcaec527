package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, "public", cfg.PGSchema)
	require.Equal(t, "gasable_index", cfg.PGTable)
	require.Equal(t, 1536, cfg.EmbedDim)
	require.Equal(t, 8, cfg.RAGTopK)
	require.True(t, cfg.RAGUseBM25)
	require.False(t, cfg.StrictContextOnly)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("EMBED_DIM", "768")
	t.Setenv("RAG_TOP_K", "12")
	t.Setenv("RAG_MMR_LAMBDA", "0.75")
	t.Setenv("RAG_USE_BM25", "false")
	t.Setenv("API_TOKEN", "tok-a, tok-b")

	cfg := Load()
	require.Equal(t, 768, cfg.EmbedDim)
	require.Equal(t, 12, cfg.RAGTopK)
	require.InDelta(t, 0.75, cfg.RAGMMRLambda, 1e-9)
	require.False(t, cfg.RAGUseBM25)
	require.Equal(t, []string{"tok-a", "tok-b"}, cfg.APITokens)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("EMBED_DIM", "not-a-number")
	cfg := Load()
	require.Equal(t, 1536, cfg.EmbedDim)
}
