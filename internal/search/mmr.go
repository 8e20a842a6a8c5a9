package search

import "math"

// Diversify applies Maximal Marginal Relevance selection over fused,
// score-sorted candidates (spec.md §4.6 step 6): the top-ranked chunk is
// always kept, then at each step the candidate maximizing
// lambda*rel - (1-lambda)*maxSim is added, where rel is the fused score
// normalized to [0,1] and maxSim is the candidate's highest cosine
// similarity to any already-picked chunk. Selection continues until budget
// (a token count) is exhausted or candidates run out.
func Diversify(candidates []RankedChunk, lambda float64, tokenBudget int) []RankedChunk {
	if len(candidates) == 0 {
		return nil
	}

	picked := make([]RankedChunk, 0, len(candidates))
	remaining := make([]RankedChunk, len(candidates))
	copy(remaining, candidates)

	picked = append(picked, remaining[0])
	remaining = remaining[1:]
	budget := tokenBudget - picked[0].TokenCount

	for len(remaining) > 0 && (tokenBudget <= 0 || budget > 0) {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			maxSim := 0.0
			for _, p := range picked {
				if s := cosineSimilarity(cand.Vector, p.Vector); s > maxSim {
					maxSim = s
				}
			}
			mmrScore := lambda*cand.FusedScore - (1-lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		chosen := remaining[bestIdx]
		if tokenBudget > 0 && chosen.TokenCount > budget && len(picked) > 0 {
			break
		}

		picked = append(picked, chosen)
		budget -= chosen.TokenCount
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return picked
}

// cosineSimilarity returns the cosine similarity of two vectors, or 0 if
// either is empty or their dimensions mismatch (e.g. a chunk whose
// embedding was never stored).
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
