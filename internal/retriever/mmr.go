package retriever

// selectMMR greedily picks finalK candidates maximizing
// lambda*relevance - (1-lambda)*max_sim(candidate, selected), where
// similarity is Jaccard over 3+ char tokens. Ties are broken by node_id
// (the lexically smaller id is picked).
func selectMMR(candidates []Candidate, lambda float64, finalK int) []Candidate {
	if finalK <= 0 || len(candidates) == 0 {
		return nil
	}

	tokens := make([][]string, len(candidates))
	for i, c := range candidates {
		tokens[i] = tokenize(c.Text, 2)
	}

	chosen := make([]int, 0, finalK)
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for len(chosen) < finalK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		bestPos := 0

		for pos, idx := range remaining {
			maxSim := 0.0
			for _, cIdx := range chosen {
				if sim := jaccard(tokens[idx], tokens[cIdx]); sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*candidates[idx].RRFScore - (1-lambda)*maxSim

			if bestIdx == -1 || mmrScore > bestScore ||
				(mmrScore == bestScore && candidates[idx].NodeID < candidates[bestIdx].NodeID) {
				bestIdx = idx
				bestScore = mmrScore
				bestPos = pos
			}
		}

		chosen = append(chosen, bestIdx)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	out := make([]Candidate, len(chosen))
	for i, idx := range chosen {
		out[i] = candidates[idx]
		out[i].Order = i
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range b {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
