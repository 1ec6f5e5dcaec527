// Package orchestrator implements intent routing across configured agents
// and the assistant tool-call loop, persisting a RunRecord per turn and
// reporting progress over the same SSE contract the retriever uses.
package orchestrator

import (
	"strings"
)

// bucket is one rule-based routing target: an agent id and the keywords that
// vote for it.
type bucket struct {
	agentID  string
	keywords []string
}

var defaultBuckets = []bucket{
	{agentID: "research", keywords: []string{"research", "find", "analyze", "investigate", "compare"}},
	{agentID: "marketing", keywords: []string{"email", "campaign", "draft", "copy", "newsletter"}},
	{agentID: "procurement", keywords: []string{"order", "place", "invoice", "purchase", "supplier"}},
}

const defaultBucket = "support"

// route runs rule-based keyword-bucket routing: lowercase-match the message
// against each bucket's keywords, and the bucket with the highest weighted
// hit count wins. Ties (including an all-zero vote) break toward "support".
func route(message string, buckets []bucket) string {
	if buckets == nil {
		buckets = defaultBuckets
	}
	content := strings.ToLower(message)

	best := defaultBucket
	bestScore := 0.0

	for _, b := range buckets {
		score := keywordScore(content, b.keywords)
		if score > bestScore {
			bestScore = score
			best = b.agentID
		} else if score > 0 && score == bestScore {
			best = defaultBucket
		}
	}
	return best
}

func keywordScore(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matches := 0
	for _, k := range keywords {
		if strings.Contains(content, strings.ToLower(k)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// resolveAgent picks agentPreference directly when it names a known agent,
// otherwise falls back to keyword-bucket routing.
func resolveAgent(agentPreference, message string, knownAgents map[string]bool, buckets []bucket) string {
	if agentPreference != "" && knownAgents[agentPreference] {
		return agentPreference
	}
	return route(message, buckets)
}
