package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60, the same
// default the teacher's BM25/vector fusion used).
const DefaultRRFConstant = 60

// RankedList is one source's ranked output before fusion: ids in decreasing
// relevance order, alongside the weight that source contributes.
type RankedList struct {
	Source string
	Weight float64
	IDs    []string
}

// fused accumulates one chunk's cross-source state while scores are summed.
type fused struct {
	score      float64
	bestSource Source
	haveSource bool
}

// Fuse combines any number of ranked id lists by Reciprocal Rank Fusion:
// RRF_score(d) = Σ weight_i / (k + rank_i), 1-indexed rank. A chunk is
// credited to the most informative source it appears in (graph > cluster >
// keyword > vector), ties broken by source priority rather than rank
// (spec.md §4.6 step 5). Missing-from-list documents receive no
// contribution from that list — unlike the teacher's two-source fusion,
// which filled in a synthetic "missing rank" penalty, a four-source fusion
// with a fixed priority tie-break makes that backfill redundant.
func Fuse(lists []RankedList, k int) map[string]*fused {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	acc := make(map[string]*fused)
	for _, list := range lists {
		src := Source(list.Source)
		for rank, id := range list.IDs {
			f, ok := acc[id]
			if !ok {
				f = &fused{}
				acc[id] = f
			}
			f.score += list.Weight / float64(k+rank+1)
			if !f.haveSource || moreInformative(src, f.bestSource) {
				f.bestSource = src
				f.haveSource = true
			}
		}
	}
	return acc
}

// ToRankedChunks converts a fusion accumulator into a score-sorted slice,
// attaching whatever per-chunk metadata the caller already has. meta may
// omit entries; chunks without metadata are skipped (they could not have
// been retrieved from any store).
func ToRankedChunks(acc map[string]*fused, meta map[string]RankedChunk) []RankedChunk {
	out := make([]RankedChunk, 0, len(acc))
	for id, f := range acc {
		m, ok := meta[id]
		if !ok {
			continue
		}
		m.ChunkID = id
		m.FusedScore = f.score
		m.Source = f.bestSource
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].Source != out[j].Source {
			return moreInformative(out[i].Source, out[j].Source)
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	normalizeScores(out)
	return out
}

// normalizeScores scales fused scores into [0,1] using the top score as the
// reference, matching the teacher's post-fusion normalization.
func normalizeScores(chunks []RankedChunk) {
	if len(chunks) == 0 {
		return
	}
	max := chunks[0].FusedScore
	if max == 0 {
		return
	}
	for i := range chunks {
		chunks[i].FusedScore /= max
	}
}
