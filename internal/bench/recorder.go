package bench

import (
	"sync"
	"time"

	"github.com/recallgraph/recallgraph/internal/assemble"
	"github.com/recallgraph/recallgraph/internal/telemetry"
)

// Recorder accumulates query telemetry across search/recall/predict calls for
// later summarization by Generate. It wraps a telemetry.QueryMetrics
// collector (latency buckets, zero-result tracking, repeat detection) and
// adds the episodic-chain counters telemetry.QueryMetrics has no concept
// of: how often recall/predict actually produced a chain versus fell back,
// broken down by FallbackReason, and the average chain length.
type Recorder struct {
	metrics *telemetry.QueryMetrics

	mu                 sync.Mutex
	recallAttempts     int64
	chainSuccesses     int64
	fallbackReasons    map[string]int64
	chainLengthSum     int64
	chainLengthSamples int64
}

// NewRecorder creates a Recorder. store may be nil to keep metrics in-memory
// only (no persistence across restarts).
func NewRecorder(qmStore telemetry.QueryMetricsStore) *Recorder {
	return &Recorder{
		metrics:         telemetry.NewQueryMetrics(qmStore),
		fallbackReasons: make(map[string]int64),
	}
}

// RecordSearch records one flat search() call.
func (r *Recorder) RecordSearch(query string, resultCount int, latency time.Duration) {
	r.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryTypeMixed,
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

// RecordRecall records one recall() or predict() call, crediting the chain
// walk's outcome (success vs. which fallback reason fired) in addition to
// the shared latency/zero-result telemetry.
func (r *Recorder) RecordRecall(query string, resp assemble.RecallResponse, latency time.Duration) {
	r.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryTypeMixed,
		ResultCount: len(resp.Chunks),
		Latency:     latency,
		Timestamp:   time.Now(),
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recallAttempts++
	switch {
	case resp.Mode == assemble.ModeChain:
		r.chainSuccesses++
		r.chainLengthSum += int64(resp.ChainLength)
		r.chainLengthSamples++
	case resp.Diagnostics != nil:
		r.fallbackReasons[string(resp.Diagnostics.Reason)]++
	}
}

// RecordQueryEmbedding feeds a query embedding into the similar-query
// sampler, so SimilarQueryRate reflects near-duplicate queries as well as
// exact repeats.
func (r *Recorder) RecordQueryEmbedding(embedding []float32) {
	r.metrics.RecordQueryEmbedding(embedding)
}

// Snapshot is a point-in-time read of a Recorder's accumulated counters.
type Snapshot struct {
	RetrievalQuality RetrievalQuality
	Latency          LatencyReport
}

// Snapshot assembles the current retrieval-quality and latency picture.
func (r *Recorder) Snapshot() Snapshot {
	qsnap := r.metrics.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	var chainSuccessRate, avgChainLength float64
	if r.recallAttempts > 0 {
		chainSuccessRate = float64(r.chainSuccesses) / float64(r.recallAttempts)
	}
	if r.chainLengthSamples > 0 {
		avgChainLength = float64(r.chainLengthSum) / float64(r.chainLengthSamples)
	}

	reasons := make(map[string]int64, len(r.fallbackReasons))
	for k, v := range r.fallbackReasons {
		reasons[k] = v
	}

	buckets := make(map[string]int64, len(qsnap.LatencyDistribution))
	var total int64
	for k, v := range qsnap.LatencyDistribution {
		buckets[string(k)] = v
		total += v
	}

	return Snapshot{
		RetrievalQuality: RetrievalQuality{
			TotalQueries:     qsnap.TotalQueries,
			ZeroResultRate:   qsnap.ZeroResultPercentage() / 100,
			ExactRepeatRate:  qsnap.ExactRepeatRate,
			SimilarQueryRate: qsnap.SimilarQueryRate,
			RecallAttempts:   r.recallAttempts,
			ChainSuccessRate: chainSuccessRate,
			FallbackReasons:  reasons,
			AvgChainLength:   avgChainLength,
		},
		Latency: LatencyReport{Buckets: buckets, TotalSamples: total},
	}
}

// Close flushes accumulated metrics to the backing store, if any.
func (r *Recorder) Close() error {
	return r.metrics.Close()
}
