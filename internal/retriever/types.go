// Package retriever implements the hybrid dense+lexical retrieval pipeline:
// query expansion, parallel dense/lexical search, RRF fusion, boosting,
// optional LLM rerank, and MMR selection, reported as an SSE step sequence.
package retriever

import (
	"context"

	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/pkg/models"
)

// Config is the resolved merge of global defaults, per-agent rag_settings,
// and call-site overrides for one retrieve call.
type Config struct {
	FinalK            int
	KDenseEach        int
	KDenseFuse        int
	KLex              int
	Expansions        int
	MMRLambda         float64
	UseBM25           bool
	KeywordPrefilter  bool
	LLMRerank         bool
	PreferDomainBoost string
	BudgetMS          int
}

// DefaultConfig returns the documented retrieval defaults.
func DefaultConfig() Config {
	return Config{
		FinalK:           6,
		KDenseEach:       8,
		KDenseFuse:       10,
		KLex:             12,
		Expansions:       2,
		MMRLambda:        0.7,
		UseBM25:          true,
		KeywordPrefilter: true,
		LLMRerank:        false,
		BudgetMS:         8000,
	}
}

// Merge overlays non-zero fields of override onto the receiver, used to
// layer per-agent rag_settings and then call-site overrides onto defaults.
func (c Config) Merge(override Config) Config {
	out := c
	if override.FinalK != 0 {
		out.FinalK = override.FinalK
	}
	if override.KDenseEach != 0 {
		out.KDenseEach = override.KDenseEach
	}
	if override.KDenseFuse != 0 {
		out.KDenseFuse = override.KDenseFuse
	}
	if override.KLex != 0 {
		out.KLex = override.KLex
	}
	if override.Expansions != 0 {
		out.Expansions = override.Expansions
	}
	if override.MMRLambda != 0 {
		out.MMRLambda = override.MMRLambda
	}
	out.UseBM25 = override.UseBM25 || out.UseBM25
	out.KeywordPrefilter = override.KeywordPrefilter || out.KeywordPrefilter
	out.LLMRerank = override.LLMRerank || out.LLMRerank
	if override.PreferDomainBoost != "" {
		out.PreferDomainBoost = override.PreferDomainBoost
	}
	if override.BudgetMS != 0 {
		out.BudgetMS = override.BudgetMS
	}
	return out
}

// MergeFromSettings builds a Config override from an agent's free-form
// rag_settings map, picking out the known tuning keys.
func MergeFromSettings(base Config, settings map[string]any) Config {
	if settings == nil {
		return base
	}
	override := Config{}
	if v, ok := settings["rerank"].(bool); ok {
		override.LLMRerank = v
	}
	if v, ok := asInt(settings["expansions"]); ok {
		override.Expansions = v
	}
	if v, ok := asInt(settings["k_dense_fuse"]); ok {
		override.KDenseFuse = v
	}
	if v, ok := asFloat(settings["mmr_lambda"]); ok {
		override.MMRLambda = v
	}
	return base.Merge(override)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Candidate is one retrieved chunk moving through fusion, boosting, and MMR.
type Candidate struct {
	models.Chunk
	RRFScore float64
	Rank     int
	Order    int
}

// Selected is a final MMR-selected item, the contract's {id, score, text,
// metadata, order} shape.
type Selected struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Order    int            `json:"order"`
}

// Result is retrieve's full return value.
type Result struct {
	Expansions []string    `json:"expansions"`
	Selected   []Selected  `json:"selected"`
	Fused      []Candidate `json:"fused"`
	BudgetHit  bool        `json:"budget_hit"`
	ElapsedMS  int64       `json:"elapsed_ms"`
	Language   string      `json:"language"`
}

// Embedder is the subset of llmclient.Embedder the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatExpander is the subset of llmclient.ChatClient used for query
// expansion and optional rerank; satisfied directly by *llmclient.OpenAIClient
// and *llmclient.AnthropicClient.
type ChatExpander interface {
	Chat(ctx context.Context, model string, messages []llmclient.Message, tools []llmclient.ToolDef) (llmclient.ChatResponse, error)
}
