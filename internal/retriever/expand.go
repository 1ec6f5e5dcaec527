package retriever

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/gasable/hub/internal/llmclient"
)

var arabicRe = regexp.MustCompile(`[\x{0600}-\x{06FF}]`)

// detectLanguage returns "ar" when the query contains Arabic script,
// otherwise "en".
func detectLanguage(query string) string {
	if arabicRe.MatchString(query) {
		return "ar"
	}
	return "en"
}

var domainSynonyms = []struct {
	triggers []string
	adds     []string
}{
	{
		triggers: []string{"ev", "charging", "charger"},
		adds:     []string{"electric vehicle", "ocpp", "type 2 connector"},
	},
	{
		triggers: []string{"delivery", "diesel"},
		adds:     []string{"on-demand delivery", "mobile refueling", "fuel dispatch"},
	},
}

var suffixStrip = []string{"ing", "s"}

// expandQuery produces up to cfg.Expansions query rewrites (the original
// query is always included). It first tries the chat model for translation
// and paraphrase, then falls back to deterministic rules on any failure.
func expandQuery(ctx context.Context, chat ChatExpander, model, query string, n int) []string {
	if n <= 1 {
		return []string{query}
	}

	if chat != nil {
		if expansions, err := expandViaLLM(ctx, chat, model, query, n); err == nil && len(expansions) > 0 {
			return expansions
		}
	}
	return expandDeterministic(query, n)
}

func expandViaLLM(ctx context.Context, chat ChatExpander, model, query string, n int) ([]string, error) {
	prompt := "Return a strict JSON array of up to " + strconv.Itoa(n-1) +
		" alternate phrasings or translations of this search query, no prose, no explanation: " + query

	resp, err := chat.Chat(ctx, model, []llmclient.Message{
		{Role: "user", Content: prompt},
	}, nil)
	if err != nil {
		return nil, err
	}

	var rewrites []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &rewrites); err != nil {
		return nil, err
	}

	return dedupeExpansions(append([]string{query}, rewrites...), n), nil
}

func expandDeterministic(query string, n int) []string {
	out := []string{query}

	reversed := reverseTokens(query)
	if reversed != query {
		out = append(out, reversed)
	}

	for _, suffix := range suffixStrip {
		if stripped := stripSuffixTokens(query, suffix); stripped != query {
			out = append(out, stripped)
		}
	}

	lower := strings.ToLower(query)
	for _, syn := range domainSynonyms {
		if containsAny(lower, syn.triggers) {
			out = append(out, query+" "+strings.Join(syn.adds, " "))
		}
	}

	return dedupeExpansions(out, n)
}

func dedupeExpansions(candidates []string, n int) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) >= n {
			break
		}
	}
	return out
}

func reverseTokens(query string) string {
	tokens := strings.Fields(query)
	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
	return strings.Join(tokens, " ")
}

func stripSuffixTokens(query, suffix string) string {
	tokens := strings.Fields(query)
	changed := false
	for i, t := range tokens {
		if strings.HasSuffix(t, suffix) && len(t) > len(suffix)+1 {
			tokens[i] = strings.TrimSuffix(t, suffix)
			changed = true
		}
	}
	if !changed {
		return query
	}
	return strings.Join(tokens, " ")
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
