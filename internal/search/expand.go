package search

// ExpandClusters identifies cluster-expansion candidates (spec.md §4.6 step
// 4): for each of the top-ranked seed chunks whose cluster is known, fetch
// up to maxSiblings additional chunks from the same cluster, bounded by
// maxClusters distinct clusters total. Each sibling's contributed score is
// its parent's fused score times siblingFactor, so expansion never outranks
// the chunk that justified it.
func ExpandClusters(seeds []RankedChunk, lookup ClusterLookup, maxClusters, maxSiblings int, siblingFactor float64) []RankedChunk {
	if lookup == nil || maxClusters <= 0 || maxSiblings <= 0 {
		return nil
	}

	seenClusters := make(map[string]bool)
	seenChunks := make(map[string]bool)
	for _, s := range seeds {
		seenChunks[s.ChunkID] = true
	}

	var siblings []RankedChunk
	clustersExpanded := 0

	for _, seed := range seeds {
		if clustersExpanded >= maxClusters {
			break
		}
		clusterID, ok := lookup.ClusterOf(seed.ChunkID)
		if !ok || seenClusters[clusterID] {
			continue
		}
		seenClusters[clusterID] = true
		clustersExpanded++

		members := lookup.SiblingsOf(clusterID, seed.ChunkID, maxSiblings)
		for _, memberID := range members {
			if seenChunks[memberID] {
				continue
			}
			seenChunks[memberID] = true
			siblings = append(siblings, RankedChunk{
				ChunkID:    memberID,
				FusedScore: seed.FusedScore * siblingFactor,
				Source:     SourceCluster,
			})
		}
	}

	return siblings
}
