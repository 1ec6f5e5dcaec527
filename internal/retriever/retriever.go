package retriever

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gasable/hub/internal/sseio"
	"github.com/gasable/hub/pkg/models"
)

// Retriever runs the hybrid dense+lexical retrieval pipeline against one
// Store, Embedder, and chat client.
type Retriever struct {
	Store    StoreReader
	Embedder Embedder
	Chat     ChatExpander
	ChatModel string
}

const noContextEN = "No context available."
const noContextAR = "لا تتوفر معلومات سياقية."

// NoContextMessage returns the canonical grounding-failure string localized
// to the detected query language.
func NoContextMessage(language string) string {
	if language == "ar" {
		return noContextAR
	}
	return noContextEN
}

// Retrieve runs the full 12-step pipeline, reporting SSE steps as it goes.
// It never returns an error: any sub-step failure degrades gracefully and is
// reflected in the returned Result (empty Selected, BudgetHit, etc.).
func (r *Retriever) Retrieve(ctx context.Context, query, agentID, namespace string, cfg Config, reporter sseio.Reporter) Result {
	start := time.Now()
	emit := func(event string, payload any) {
		if reporter != nil {
			_ = reporter.Emit(event, payload)
		}
	}

	emit("received_query", map[string]any{"query": query, "agent_id": agentID, "namespace": namespace})

	language := detectLanguage(query)
	budget := time.Duration(cfg.BudgetMS) * time.Millisecond
	overBudget := func() bool { return budget > 0 && time.Since(start) > budget }

	expansions := expandQuery(ctx, r.Chat, r.ChatModel, query, cfg.Expansions)
	emit("expansions", map[string]any{"expansions": expansions, "language": language})

	if overBudget() {
		return r.timeoutFallback(ctx, query, agentID, namespace, cfg, expansions, language, start, reporter)
	}

	var denseLists, lexLists []rankedList

	for _, exp := range expansions {
		if overBudget() {
			break
		}
		if r.Embedder == nil {
			continue
		}
		vecs, err := r.Embedder.Embed(ctx, []string{exp})
		if err != nil || len(vecs) == 0 {
			continue
		}
		hits, err := r.Store.VectorTopK(ctx, vecs[0], cfg.KDenseEach, agentID, namespace)
		if err == nil {
			denseLists = append(denseLists, rankedList(hits))
		}
	}
	emit("dense_retrieval", map[string]any{"lists": len(denseLists)})

	for _, exp := range expansions {
		if overBudget() {
			break
		}
		tokens := lexTokens(exp)
		hits, err := r.Store.ILikeTopK(ctx, tokens, cfg.KLex, agentID, namespace)
		if err == nil {
			lexLists = append(lexLists, rankedList(hits))
		}
	}
	emit("lex_retrieval", map[string]any{"lists": len(lexLists)})

	if cfg.KeywordPrefilter && !overBudget() && containsAny(strings.ToLower(query), keywordVocabulary) {
		tokens := lexTokens(query)
		if hits, err := r.Store.ILikeTopK(ctx, tokens, cfg.KLex, agentID, namespace); err == nil {
			lexLists = append(lexLists, rankedList(hits))
		}
		emit("keyword_prefilter", map[string]any{"triggered": true})
	}

	var bm25List rankedList
	if cfg.UseBM25 && !overBudget() {
		if hits, err := r.Store.BM25TopK(ctx, query, cfg.KLex, agentID, namespace); err == nil {
			bm25List = hits
			lexLists = append(lexLists, rankedList(hits))
		}
		emit("bm25", map[string]any{"hits": len(bm25List)})
	}

	if overBudget() {
		return r.timeoutFallback(ctx, query, agentID, namespace, cfg, expansions, language, start, reporter)
	}

	all := append(append([]rankedList{}, denseLists...), lexLists...)
	fused := fuseRRF(all, cfg.KDenseFuse)
	emit("fusion", map[string]any{"candidates": len(fused)})

	fused = applyBoosts(fused, query, cfg.PreferDomainBoost)
	fused = filterCandidates(fused, query, cfg.FinalK)

	if cfg.LLMRerank && !overBudget() {
		fused = llmRerank(ctx, r.Chat, r.ChatModel, query, fused)
	}

	selected := selectMMR(fused, cfg.MMRLambda, cfg.FinalK)
	emit("retrieval_done", map[string]any{"selected": len(selected)})

	result := toResult(expansions, selected, fused, false, start, language)
	r.backfillText(ctx, &result)

	emit("selected_context", map[string]any{"count": len(result.Selected)})

	return result
}

var keywordVocabulary = []string{
	"contract", "supplier", "rfq", "tender", "diesel",
	"عقد", "مورد", "مناقصة", "ديزل",
}

func lexTokens(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r > 127)
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
		if len(out) >= 6 {
			break
		}
	}
	return out
}

// timeoutFallback returns a pure-lexical top-K from a single ILikeTopK query,
// with hits from the preferred domain sorted first. No separate
// trigram-similarity query is tried when that query returns nothing.
func (r *Retriever) timeoutFallback(ctx context.Context, query, agentID, namespace string, cfg Config, expansions []string, language string, start time.Time, reporter sseio.Reporter) Result {
	if reporter != nil {
		_ = reporter.Emit("timeout_fallback", map[string]any{"budget_ms": cfg.BudgetMS})
	}

	hits, err := r.Store.ILikeTopK(ctx, lexTokens(query), cfg.FinalK*2, agentID, namespace)
	if err != nil {
		return toResult(expansions, nil, nil, true, start, language)
	}

	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{Chunk: h.Chunk, RRFScore: h.Score, Order: i}
	}

	if cfg.PreferDomainBoost != "" {
		sort.SliceStable(candidates, func(i, j int) bool {
			pi := strings.HasPrefix(candidates[i].NodeID, cfg.PreferDomainBoost)
			pj := strings.HasPrefix(candidates[j].NodeID, cfg.PreferDomainBoost)
			if pi != pj {
				return pi
			}
			return false
		})
	}

	if len(candidates) > cfg.FinalK {
		candidates = candidates[:cfg.FinalK]
	}
	for i := range candidates {
		candidates[i].Order = i
	}

	result := toResult(expansions, candidates, candidates, true, start, language)
	r.backfillText(ctx, &result)
	return result
}

func toResult(expansions []string, selected []Candidate, fused []Candidate, budgetHit bool, start time.Time, language string) Result {
	out := Result{
		Expansions: expansions,
		Fused:      fused,
		BudgetHit:  budgetHit,
		ElapsedMS:  time.Since(start).Milliseconds(),
		Language:   language,
	}
	out.Selected = make([]Selected, len(selected))
	for i, c := range selected {
		out.Selected[i] = Selected{
			ID:       c.NodeID,
			Score:    c.RRFScore,
			Text:     c.Text,
			Metadata: c.Metadata,
			Order:    i,
		}
	}
	return out
}

func (r *Retriever) backfillText(ctx context.Context, result *Result) {
	var missingIDs []string
	for _, s := range result.Selected {
		if s.Text == "" {
			missingIDs = append(missingIDs, s.ID)
		}
	}
	if len(missingIDs) == 0 || r.Store == nil {
		return
	}

	chunks, err := r.Store.FetchByIDs(ctx, missingIDs)
	if err != nil {
		return
	}
	byID := make(map[string]models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.NodeID] = c
	}

	for i, s := range result.Selected {
		if s.Text == "" {
			if c, ok := byID[s.ID]; ok {
				result.Selected[i].Text = c.Text
				if result.Selected[i].Metadata == nil {
					result.Selected[i].Metadata = c.Metadata
				}
			}
		}
	}
}
