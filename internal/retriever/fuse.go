package retriever

import (
	"sort"

	"github.com/gasable/hub/pkg/models"
)

const rrfK = 60.0

// rankedList is one ranked result list (a single dense/lexical expansion's
// hits, or the BM25/keyword-prefilter result) fed into fusion. Only rank
// order matters to RRF, not the underlying score.
type rankedList []models.ScoredChunk

// fuseRRF combines ranked lists via Reciprocal Rank Fusion:
// score(id) = sum(1 / (K + rank_in_list)) across every list containing id.
// Ties are broken deterministically by node_id so fusion order is stable.
func fuseRRF(lists []rankedList, keep int) []Candidate {
	byID := map[string]*Candidate{}

	for _, list := range lists {
		for rank, chunk := range list {
			c, ok := byID[chunk.NodeID]
			if !ok {
				c = &Candidate{Chunk: chunk.Chunk}
				byID[chunk.NodeID] = c
			}
			c.RRFScore += 1.0 / (rrfK + float64(rank+1))
		}
	}

	out := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].NodeID < out[j].NodeID
	})

	for i := range out {
		out[i].Rank = i + 1
	}

	if keep > 0 && len(out) > keep {
		out = out[:keep]
	}
	return out
}
