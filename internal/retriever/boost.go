package retriever

import (
	"sort"
	"strings"
)

const (
	domainBoostAmount    = 0.5
	webBoostAmount       = 0.25
	noiseCap             = 0.9
	intentBoostAmount    = 0.2
	maxOverlapBoost      = 0.3
	generalMinOverlap    = 1
	evIntentMinOverlap   = 2
)

var noiseSources = []string{"market_analysis", "certificate", "gmail", "mail-", "incident", "audit"}

var evIntentTerms = []string{"ev", "charging", "charger", "electric vehicle", "ocpp"}

var deliveryTerms = []string{"delivery", "dispatch", "eta", "route"}

// applyBoosts mutates each candidate's RRFScore in place with the
// additive domain/noise/intent/overlap adjustments, then re-sorts.
func applyBoosts(candidates []Candidate, query, preferDomain string) []Candidate {
	queryTokens := tokenize(query, 0)
	queryLower := strings.ToLower(query)
	isEVIntent := containsAny(queryLower, evIntentTerms)

	for i := range candidates {
		c := &candidates[i]

		if preferDomain != "" && strings.HasPrefix(c.NodeID, preferDomain) {
			c.RRFScore += domainBoostAmount
		} else if strings.HasPrefix(preferDomain, "web://") && strings.HasPrefix(c.NodeID, "web://") {
			c.RRFScore += webBoostAmount
		}

		noisePenalty := 0.0
		lowerID := strings.ToLower(c.NodeID)
		for _, n := range noiseSources {
			if strings.Contains(lowerID, n) {
				noisePenalty += 0.3
			}
		}
		if noisePenalty > noiseCap {
			noisePenalty = noiseCap
		}
		c.RRFScore -= noisePenalty

		if isEVIntent && containsAny(strings.ToLower(c.Text), evIntentTerms) {
			c.RRFScore += intentBoostAmount
		}
		if containsAny(strings.ToLower(c.Text), deliveryTerms) {
			c.RRFScore += intentBoostAmount
		}

		overlap := tokenOverlap(queryTokens, tokenize(c.Text, 0))
		if len(queryTokens) > 0 {
			ratio := float64(overlap) / float64(len(queryTokens))
			c.RRFScore += ratio * maxOverlapBoost
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RRFScore != candidates[j].RRFScore {
			return candidates[i].RRFScore > candidates[j].RRFScore
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})

	_ = isEVIntent
	return candidates
}

// filterCandidates drops candidates with too few query-token overlaps,
// unless doing so would empty the pool below minPool.
func filterCandidates(candidates []Candidate, query string, minPool int) []Candidate {
	queryTokens := tokenize(query, 0)
	minOverlap := generalMinOverlap
	if containsAny(strings.ToLower(query), evIntentTerms) {
		minOverlap = evIntentMinOverlap
	}

	var kept []Candidate
	for _, c := range candidates {
		if tokenOverlap(queryTokens, tokenize(c.Text, 0)) >= minOverlap {
			kept = append(kept, c)
		}
	}

	if len(kept) < minPool {
		return candidates
	}
	return kept
}

// tokenize lowercases and splits on non-alphanumeric runs, keeping tokens
// longer than minLen characters (0 disables the minimum).
func tokenize(s string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
	})
	if minLen <= 0 {
		return fields
	}
	var out []string
	for _, f := range fields {
		if len([]rune(f)) > minLen {
			out = append(out, f)
		}
	}
	return out
}

func tokenOverlap(a, b []string) int {
	set := map[string]bool{}
	for _, t := range a {
		set[t] = true
	}
	count := 0
	seen := map[string]bool{}
	for _, t := range b {
		if set[t] && !seen[t] {
			count++
			seen[t] = true
		}
	}
	return count
}
