// Package config builds an immutable Config from the process environment
// once at startup. Every field here corresponds to one of the environment
// variables the HTTP surface and retrieval pipeline are tuned by.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the process-wide, read-only configuration snapshot.
type Config struct {
	DatabaseURL string
	PGSchema    string
	PGTable     string
	PGEmbedCol  string

	EmbedDim   int
	EmbedModel string
	OpenAIModel string
	RerankModel string

	RAGTopK            int
	RAGKDenseEach      int
	RAGKDenseFuse      int
	RAGKLex            int
	RAGCorpusLimit     int
	RAGMMRLambda       float64
	RAGExpansions      int
	RAGBM25TTLSec      int
	RAGUseBM25         bool
	RAGKeywordPrefilter bool
	RAGBoostDomain     bool

	SingleShotBudgetMS int
	StreamBudgetMS     int
	StrictContextOnly  bool

	APITokens   []string
	CORSOrigins []string
}

// Load builds a Config from os.Getenv, applying the defaults called out in
// the environment variable table. It never mutates the process environment
// and is safe to call more than once (e.g. once per test).
func Load() Config {
	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		PGSchema:    getenvDefault("PG_SCHEMA", "public"),
		PGTable:     getenvDefault("PG_TABLE", "gasable_index"),
		PGEmbedCol:  getenvDefault("PG_EMBED_COL", "embedding"),

		EmbedDim:    getenvInt("EMBED_DIM", 1536),
		EmbedModel:  getenvDefault("EMBED_MODEL", "text-embedding-3-small"),
		OpenAIModel: getenvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		RerankModel: os.Getenv("RERANK_MODEL"),

		RAGTopK:             getenvInt("RAG_TOP_K", 8),
		RAGKDenseEach:       getenvInt("RAG_K_DENSE_EACH", 8),
		RAGKDenseFuse:       getenvInt("RAG_K_DENSE_FUSE", 40),
		RAGKLex:             getenvInt("RAG_K_LEX", 24),
		RAGCorpusLimit:      getenvInt("RAG_CORPUS_LIMIT", 2000),
		RAGMMRLambda:        getenvFloat("RAG_MMR_LAMBDA", 0.7),
		RAGExpansions:       getenvInt("RAG_EXPANSIONS", 2),
		RAGBM25TTLSec:       getenvInt("RAG_BM25_TTL_SEC", 300),
		RAGUseBM25:          getenvBool("RAG_USE_BM25", true),
		RAGKeywordPrefilter: getenvBool("RAG_KEYWORD_PREFILTER", true),
		RAGBoostDomain:      getenvBool("RAG_BOOST_DOMAIN", true),

		SingleShotBudgetMS: getenvInt("SINGLESHOT_BUDGET_MS", 8000),
		StreamBudgetMS:     getenvInt("STREAM_BUDGET_MS", 20000),
		StrictContextOnly:  getenvBool("STRICT_CONTEXT_ONLY", false),

		APITokens:   splitCSV(os.Getenv("API_TOKEN")),
		CORSOrigins: splitCSV(os.Getenv("CORS_ORIGINS")),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
