package retriever

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/pkg/models"
)

func chunk(id string) models.ScoredChunk {
	return models.ScoredChunk{Chunk: models.Chunk{NodeID: id, Text: "text for " + id}}
}

func TestFuseRRFCombinesAcrossLists(t *testing.T) {
	listA := rankedList{chunk("a"), chunk("b"), chunk("c")}
	listB := rankedList{chunk("b"), chunk("a"), chunk("d")}

	out := fuseRRF([]rankedList{listA, listB}, 10)
	require.Len(t, out, 4)

	// "a" ranks 1st in listA and 2nd in listB, "b" ranks 2nd and 1st, so
	// both sum to the same RRF score; "c" appears once, at rank 3, and
	// scores lower.
	scores := map[string]float64{}
	for _, c := range out {
		scores[c.NodeID] = c.RRFScore
	}
	require.InDelta(t, scores["a"], scores["b"], 1e-9)
	require.Greater(t, scores["a"], scores["c"])
}

func TestFuseRRFTieBreaksOnNodeID(t *testing.T) {
	listA := rankedList{chunk("zzz"), chunk("aaa")}
	listB := rankedList{chunk("aaa"), chunk("zzz")}

	out := fuseRRF([]rankedList{listA, listB}, 10)
	require.InDelta(t, out[0].RRFScore, out[1].RRFScore, 1e-9)
	require.Equal(t, "aaa", out[0].NodeID)
	require.Equal(t, "zzz", out[1].NodeID)
}

func TestFuseRRFRespectsKeep(t *testing.T) {
	listA := rankedList{chunk("a"), chunk("b"), chunk("c")}

	out := fuseRRF([]rankedList{listA}, 2)
	require.Len(t, out, 2)
}

func TestFuseRRFAssignsSequentialRank(t *testing.T) {
	listA := rankedList{chunk("a"), chunk("b")}

	out := fuseRRF([]rankedList{listA}, 10)
	require.Equal(t, 1, out[0].Rank)
	require.Equal(t, 2, out[1].Rank)
}
