// Package bench implements the cluster/benchmark loop (spec.md §2 C10): it
// folds cluster-assignment health, recall/predict/search retrieval-quality
// signals, and query-latency telemetry into one report, with rule-based
// tuning advice. There is no teacher analog for the retrieval-quality half —
// amanmcp never walks a causal graph — so that part is grounded on the
// Diagnostics/FallbackReason vocabulary internal/assemble already produces;
// the cluster-health and latency halves are ported from internal/telemetry
// (query_metrics.go) and internal/store's HNSWStats/ClusterStats.
package bench

import (
	"context"
	"fmt"

	amanerrors "github.com/recallgraph/recallgraph/internal/errors"
	"github.com/recallgraph/recallgraph/internal/store"
)

// minChunksForReport is the data floor below which a report's ratios are too
// noisy to trust (spec.md §7 "ThresholdNotMet: benchmark cannot run without
// enough data").
const minChunksForReport = 20

// ClusterHealth reports cluster-expansion coverage for a project.
type ClusterHealth struct {
	ClusterCount      int
	ClusteredChunks   int
	UnclusteredChunks int
	AvgClusterSize    float64
	AvgMemberDistance float64
	OrphanVectors     int
	OrphanRatio       float64
}

// RetrievalQuality summarizes how well search/recall/predict have been
// performing, drawn from a Recorder's accumulated counters.
type RetrievalQuality struct {
	TotalQueries      int64
	ZeroResultRate    float64
	ExactRepeatRate   float64
	SimilarQueryRate  float64
	RecallAttempts    int64
	ChainSuccessRate  float64
	FallbackReasons   map[string]int64
	AvgChainLength    float64
}

// LatencyReport is the query-latency histogram (spec.md §2 C10 "latency
// percentiles"), bucketed the way internal/telemetry already buckets it
// rather than computed as exact order statistics — recallgraph's query
// volume per project is too low for percentile estimation to mean much more
// than the bucket it landed in.
type LatencyReport struct {
	Buckets      map[string]int64
	TotalSamples int64
}

// Advice is one piece of tuning guidance the report generated.
type Advice struct {
	Subject string
	Message string
}

// Report is C10's full output: cluster health, retrieval quality, latency,
// and tuning advice for one project (or the whole store, when Project is
// empty).
type Report struct {
	Project          string
	ClusterHealth    ClusterHealth
	RetrievalQuality RetrievalQuality
	Latency          LatencyReport
	Advice           []Advice
}

// Generate computes a Report for project from the metadata store's cluster
// stats, the vector store's HNSW stats, and rec's accumulated query
// telemetry. Returns a ThresholdNotMet error when the project has too few
// chunks for the ratios to be meaningful.
func Generate(ctx context.Context, metadata store.MetadataStore, vectors store.VectorStore, rec *Recorder, project string) (Report, error) {
	cs, err := metadata.ClusterStats(ctx, project)
	if err != nil {
		return Report{}, amanerrors.StoreUnavailableError("cluster stats lookup failed", err)
	}

	totalChunks := cs.ClusteredChunks + cs.UnclusteredChunks
	if totalChunks < minChunksForReport {
		return Report{}, amanerrors.ThresholdNotMetError(
			fmt.Sprintf("only %d chunks recorded; at least %d are needed for a meaningful benchmark report", totalChunks, minChunksForReport),
			nil,
		)
	}

	vstats := vectors.Stats()
	var orphanRatio float64
	if vstats.GraphNodes > 0 {
		orphanRatio = float64(vstats.Orphans) / float64(vstats.GraphNodes)
	}

	health := ClusterHealth{
		ClusterCount:      cs.ClusterCount,
		ClusteredChunks:   cs.ClusteredChunks,
		UnclusteredChunks: cs.UnclusteredChunks,
		AvgClusterSize:    cs.AvgClusterSize,
		AvgMemberDistance: cs.AvgMemberDistance,
		OrphanVectors:     vstats.Orphans,
		OrphanRatio:       orphanRatio,
	}

	var quality RetrievalQuality
	var latency LatencyReport
	if rec != nil {
		snap := rec.Snapshot()
		quality = snap.RetrievalQuality
		latency = snap.Latency
	}

	report := Report{
		Project:          project,
		ClusterHealth:    health,
		RetrievalQuality: quality,
		Latency:          latency,
	}
	report.Advice = adviseFrom(report)
	return report, nil
}
