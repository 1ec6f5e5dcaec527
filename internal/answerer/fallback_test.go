package answerer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFallbackClassifiesIntoSections(t *testing.T) {
	hits := []sourcedText{
		{id: "doc-1", text: "Our pricing starts at $10 per month. Deployment takes five minutes."},
	}

	sa := buildFallback("pricing deployment", hits)
	var headings []string
	for _, s := range sa.Sections {
		headings = append(headings, s.Heading)
	}
	require.Contains(t, headings, "Pricing")
	require.Contains(t, headings, "Deployment")
}

func TestBuildFallbackFallsBackToDetailsWhenUnclassified(t *testing.T) {
	hits := []sourcedText{
		{id: "doc-1", text: "The quick brown fox jumps over the lazy dog."},
	}

	sa := buildFallback("animals", hits)
	require.Len(t, sa.Sections, 1)
	require.Equal(t, "Details", sa.Sections[0].Heading)
	require.NotEmpty(t, sa.Sections[0].Paragraph)
}

func TestBuildFallbackCapsSectionCount(t *testing.T) {
	hits := []sourcedText{
		{id: "doc-1", text: "Our service offers features. Deployment is easy. Pricing is fair. " +
			"SLA uptime guarantee applies. Benefits include savings."},
	}

	sa := buildFallback("service deployment pricing sla benefit", hits)
	require.LessOrEqual(t, len(sa.Sections), maxSections)
}

func TestBuildFallbackRanksSummaryByOverlap(t *testing.T) {
	hits := []sourcedText{
		{id: "doc-1", text: "Electric vehicle charging is supported. Bananas are yellow fruit."},
	}

	sa := buildFallback("electric vehicle charging", hits)
	require.NotEmpty(t, sa.Summary)
	require.Contains(t, sa.Summary[0], "Electric vehicle charging")
}
