package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteChoosesHighestScoringBucket(t *testing.T) {
	agentID := route("please research and analyze this market", nil)
	require.Equal(t, "research", agentID)
}

func TestRouteFallsBackToSupportOnNoMatch(t *testing.T) {
	agentID := route("hello there, how are you", nil)
	require.Equal(t, "support", agentID)
}

func TestRouteBreaksTiesTowardSupport(t *testing.T) {
	buckets := []bucket{
		{agentID: "a", keywords: []string{"xyz"}},
		{agentID: "b", keywords: []string{"xyz"}},
	}
	agentID := route("nothing matches here", buckets)
	require.Equal(t, defaultBucket, agentID)
}

func TestResolveAgentPrefersKnownPreference(t *testing.T) {
	known := map[string]bool{"custom-agent": true}
	agentID := resolveAgent("custom-agent", "research this", known, nil)
	require.Equal(t, "custom-agent", agentID)
}

func TestResolveAgentIgnoresUnknownPreference(t *testing.T) {
	known := map[string]bool{}
	agentID := resolveAgent("ghost-agent", "place an order please", known, nil)
	require.Equal(t, "procurement", agentID)
}
