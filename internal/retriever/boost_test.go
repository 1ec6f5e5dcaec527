package retriever

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func boostCandidate(id, text string, score float64) Candidate {
	c := Candidate{RRFScore: score}
	c.NodeID = id
	c.Text = text
	return c
}

func TestApplyBoostsAddsDomainBoost(t *testing.T) {
	candidates := []Candidate{
		boostCandidate("catalog://widget-1", "widget catalog entry", 0.1),
		boostCandidate("web://example.com/page", "unrelated page", 0.1),
	}

	out := applyBoosts(candidates, "zzz-nomatch", "catalog://")
	var boosted Candidate
	for _, c := range out {
		if c.NodeID == "catalog://widget-1" {
			boosted = c
		}
	}
	require.InDelta(t, 0.1+domainBoostAmount, boosted.RRFScore, 1e-6)
}

func TestApplyBoostsPenalizesNoiseSources(t *testing.T) {
	candidates := []Candidate{
		boostCandidate("gmail-thread-42", "an email about nothing relevant", 0.5),
	}

	out := applyBoosts(candidates, "search term", "")
	require.Less(t, out[0].RRFScore, 0.5)
}

func TestApplyBoostsCapsNoisePenalty(t *testing.T) {
	candidates := []Candidate{
		boostCandidate("gmail-mail-incident-audit-certificate", "body", 1.0),
	}

	out := applyBoosts(candidates, "query", "")
	require.GreaterOrEqual(t, out[0].RRFScore, 1.0-noiseCap)
}

func TestFilterCandidatesDropsLowOverlap(t *testing.T) {
	candidates := []Candidate{
		boostCandidate("a", "totally unrelated content about cooking", 0.9),
		boostCandidate("b", "electric vehicle charging network", 0.8),
	}

	out := filterCandidates(candidates, "electric vehicle charging", 1)
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].NodeID)
}

func TestFilterCandidatesKeepsAllWhenPoolTooSmall(t *testing.T) {
	candidates := []Candidate{
		boostCandidate("a", "totally unrelated content", 0.9),
	}

	out := filterCandidates(candidates, "electric vehicle charging", 2)
	require.Len(t, out, 1)
}

func TestTokenOverlapCountsDistinctMatches(t *testing.T) {
	a := []string{"electric", "vehicle", "electric"}
	b := []string{"electric", "charger"}

	require.Equal(t, 1, tokenOverlap(a, b))
}
