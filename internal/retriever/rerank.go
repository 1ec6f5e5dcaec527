package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gasable/hub/internal/llmclient"
)

type rerankVote struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// llmRerank asks the chat model to score each candidate's relevance to the
// query and re-sorts by that score. Any failure (bad JSON, API error) leaves
// the incoming order untouched rather than failing the whole retrieve call.
func llmRerank(ctx context.Context, chat ChatExpander, model, query string, candidates []Candidate) []Candidate {
	if chat == nil || len(candidates) == 0 {
		return candidates
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nScore each passage's relevance to the query from 0.0 to 1.0. "+
		"Return a strict JSON array of {\"index\":N,\"score\":F}, no prose.\n\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n\n", i, truncate(c.Text, 500))
	}

	resp, err := chat.Chat(ctx, model, []llmclient.Message{
		{Role: "user", Content: b.String()},
	}, nil)
	if err != nil {
		return candidates
	}

	var votes []rerankVote
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &votes); err != nil {
		return candidates
	}

	scores := make(map[int]float64, len(votes))
	for _, v := range votes {
		if v.Index >= 0 && v.Index < len(candidates) {
			scores[v.Index] = v.Score
		}
	}
	if len(scores) == 0 {
		return candidates
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if s, ok := scores[i]; ok {
			out[i].RRFScore = s
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
