package bench

import "fmt"

// Tuning thresholds the advice rules fire against. These mirror the knobs a
// human operator would actually reach for (config.CompactionConfig,
// config.ClusteringConfig, the assembler's qualify threshold) rather than
// inventing new ones.
const (
	highOrphanRatio       = 0.2  // matches config.CompactionConfig's default OrphanThreshold
	highUnclusteredRatio  = 0.5
	highFallbackRate      = 0.5
	highZeroResultRate    = 0.3
	highExactRepeatRate   = 0.3
	lowQueryFloorForAdvice = 10
)

// adviseFrom derives tuning advice from a freshly computed report. Each rule
// is independent; a report can carry zero or several pieces of advice.
func adviseFrom(r Report) []Advice {
	var advice []Advice

	if r.ClusterHealth.OrphanRatio > highOrphanRatio {
		advice = append(advice, Advice{
			Subject: "vector store",
			Message: fmt.Sprintf(
				"orphan ratio %.0f%% exceeds the compaction trigger; background compaction should reclaim these, or run it manually if it's disabled",
				r.ClusterHealth.OrphanRatio*100,
			),
		})
	}

	totalChunks := r.ClusterHealth.ClusteredChunks + r.ClusterHealth.UnclusteredChunks
	if totalChunks > 0 {
		unclusteredRatio := float64(r.ClusterHealth.UnclusteredChunks) / float64(totalChunks)
		if unclusteredRatio > highUnclusteredRatio {
			advice = append(advice, Advice{
				Subject: "clustering",
				Message: fmt.Sprintf(
					"%.0f%% of chunks are unclustered; lower clustering.threshold or clustering.min_cluster_size to let cluster-expansion reach more of the graph",
					unclusteredRatio*100,
				),
			})
		}
	}

	if r.RetrievalQuality.TotalQueries >= lowQueryFloorForAdvice {
		if r.RetrievalQuality.ZeroResultRate > highZeroResultRate {
			advice = append(advice, Advice{
				Subject: "search",
				Message: fmt.Sprintf(
					"%.0f%% of queries return nothing; check that ingestion is keeping pace and that the embedder is healthy",
					r.RetrievalQuality.ZeroResultRate*100,
				),
			})
		}
		if r.RetrievalQuality.ExactRepeatRate > highExactRepeatRate {
			advice = append(advice, Advice{
				Subject: "search",
				Message: fmt.Sprintf(
					"%.0f%% of queries exactly repeat a recent one; the query embedding cache should already absorb these, but confirm its capacity is large enough for this project's traffic",
					r.RetrievalQuality.ExactRepeatRate*100,
				),
			})
		}
	}

	if r.RetrievalQuality.RecallAttempts >= lowQueryFloorForAdvice {
		fallbackRate := 1 - r.RetrievalQuality.ChainSuccessRate
		if fallbackRate > highFallbackRate {
			advice = append(advice, Advice{
				Subject: "chain walk",
				Message: fmt.Sprintf(
					"%.0f%% of recall/predict calls fall back to flat search instead of a chain; the top reason is %q — lowering traversal.min_weight or the assembler's qualify threshold may recover some of these",
					fallbackRate*100, topFallbackReason(r.RetrievalQuality.FallbackReasons),
				),
			})
		}
	}

	return advice
}

// topFallbackReason returns the most frequent fallback reason, or "" if none
// were recorded.
func topFallbackReason(reasons map[string]int64) string {
	var best string
	var bestCount int64
	for reason, count := range reasons {
		if count > bestCount {
			best, bestCount = reason, count
		}
	}
	return best
}
