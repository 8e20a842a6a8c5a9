// Package search implements the hybrid retrieval assembler (spec.md §4.6
// C6): vector + keyword + cluster-expansion fan-out, Reciprocal Rank Fusion,
// MMR diversification, and source-priority credit attribution. The RRF core
// is ported from the teacher's BM25/vector fusion.go; MMR and cluster
// expansion are new, grounded on the same "pure function over precomputed
// similarities" style.
package search

import "time"

// Source identifies which retrieval channel surfaced a chunk. Priority for
// attribution is graph > cluster > keyword > vector (spec.md §4.6 step 5).
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
	SourceCluster Source = "cluster"
	SourceGraph   Source = "graph"
)

// sourcePriority ranks sources from least to most informative; higher wins
// when a chunk is credited to a single source.
var sourcePriority = map[Source]int{
	SourceVector:  0,
	SourceKeyword: 1,
	SourceCluster: 2,
	SourceGraph:   3,
}

// moreInformative reports whether a beats b under the source priority order.
func moreInformative(a, b Source) bool {
	return sourcePriority[a] > sourcePriority[b]
}

// Options configures a search call (spec.md §4.6 "Configuration").
type Options struct {
	VectorLimit     int     // vectorSearchLimit, default 20
	KeywordLimit    int     // keywordSearchLimit, default 20
	RRFConstant     int     // rrfK, default 60
	VectorWeight    float64 // default 1.0
	KeywordWeight   float64 // default 1.0
	MaxClusters     int     // clusterExpansion.maxClusters, default 3
	MaxSiblings     int     // clusterExpansion.maxSiblings, default 5
	SiblingFactor   float64 // sibling score attenuation, default 0.3 (spec.md §9 Open Question)
	MMRLambda       float64 // default 0.7
	TokenBudget     int     // mcpMaxResponse
	Project         string  // projectFilter
	SkipClusters    bool    // for A/B testing
	SeedSetSize     int     // how many top ids to expose for chain walking
}

// DefaultOptions returns recallgraph's default search configuration.
func DefaultOptions() Options {
	return Options{
		VectorLimit:   20,
		KeywordLimit:  20,
		RRFConstant:   60,
		VectorWeight:  1.0,
		KeywordWeight: 1.0,
		MaxClusters:   3,
		MaxSiblings:   5,
		SiblingFactor: 0.3,
		MMRLambda:     0.7,
		SeedSetSize:   8,
	}
}

// RankedChunk is one chunk as it flows through fusion and diversification.
type RankedChunk struct {
	ChunkID      string
	Project      string
	Preview      string
	StartTime    time.Time
	TokenCount   int
	Vector       []float32 // the chunk's own embedding, for MMR similarity
	FusedScore   float64
	Source       Source // most informative source this chunk was credited to
	MatchedTerms []string
}

// Response is the assembled output of a search call (spec.md §4.6 step 7).
type Response struct {
	Chunks       []RankedChunk
	TokenCount   int
	QueryVector  []float32
	SeedSet      []string // top N ids, for chain walking
}

// Cluster lookups needed by cluster expansion are supplied by the caller via
// this small interface, keeping this package free of a direct store
// dependency beyond model types.
type ClusterLookup interface {
	ClusterOf(chunkID string) (clusterID string, ok bool)
	SiblingsOf(clusterID string, exclude string, limit int) []string
}

// EmbeddingLookup resolves a chunk id to its stored embedding. Diversify
// does not use it; MMR reads each candidate's RankedChunk.Vector.
type EmbeddingLookup interface {
	EmbeddingOf(chunkID string) ([]float32, bool)
}
