package search

import (
	"context"
	"sort"

	"github.com/recallgraph/recallgraph/internal/model"
)

// VectorSearcher is the read surface the engine needs from the vector
// store.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int, project string) ([]VectorHit, error)
}

// VectorHit is one vector-store result, decoupled from the store package's
// concrete type so this package stays import-light.
type VectorHit struct {
	ChunkID  string
	Distance float64 // angular distance, spec.md §4.5
}

// KeywordSearcher is the read surface the engine needs from the lexical
// store.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, limit int, project string) ([]KeywordHit, error)
}

// KeywordHit is one lexical-store result.
type KeywordHit struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// ChunkMetadata is the minimal per-chunk data the engine needs to assemble a
// Response without importing the store package's full Chunk type.
type ChunkMetadata struct {
	Preview    string
	Project    string
	TokenCount int
	Vector     []float32
}

// MetadataLookup resolves chunk ids to the metadata needed for response
// assembly and MMR similarity.
type MetadataLookup interface {
	Lookup(chunkID string) (ChunkMetadata, bool)
}

// Engine runs the hybrid retrieval pipeline described in spec.md §4.6.
type Engine struct {
	Vector       VectorSearcher
	Keyword      KeywordSearcher
	Clusters     ClusterLookup
	Graph        graphReader
	Metadata     MetadataLookup
	ReferenceClk model.Clock
}

// graphReader is the narrow traversal surface the graph-agreement boost
// needs; satisfied by internal/graph.Traverse's reader argument plus a
// direction-agnostic entry point supplied by the caller.
type graphReader interface {
	Traverse(ctx context.Context, seed string, referenceClock model.Clock, minWeight float64) ([]GraphHit, error)
}

// GraphHit is one graph-traversal result surfaced for the agreement boost.
type GraphHit struct {
	ChunkID string
	Weight  float64
}

// Search runs the full pipeline: embed (by the caller, queryVector is
// already computed), vector + keyword search, cluster expansion, a
// graph-agreement boost over the raw vector/keyword hits, RRF fusion, MMR
// diversification, and response assembly (spec.md §4.6 steps 2-7).
//
// Whether a graph-agreement source belongs in the fusion at all was left
// unresolved by the retrieval section's step list (only the overview
// mentions it); this engine includes it as a fourth ranked list — chunks
// reached by traversing outward from the raw vector/keyword hits,
// accumulated across all such seeds — so the source-priority tie-break in
// Fuse has a real graph list to rank above cluster/keyword/vector.
func (e *Engine) Search(ctx context.Context, queryVector []float32, queryText string, opts Options) (Response, error) {
	var lists []RankedList
	meta := make(map[string]RankedChunk)

	var vectorIDs []string
	if e.Vector != nil {
		hits, err := e.Vector.Search(ctx, queryVector, opts.VectorLimit, opts.Project)
		if err != nil {
			return Response{}, err
		}
		for _, h := range hits {
			vectorIDs = append(vectorIDs, h.ChunkID)
			meta[h.ChunkID] = chunkMeta(e.Metadata, h.ChunkID)
		}
		lists = append(lists, RankedList{Source: string(SourceVector), Weight: opts.VectorWeight, IDs: vectorIDs})
	}

	var keywordIDs []string
	var matchedTerms map[string][]string
	if e.Keyword != nil {
		hits, err := e.Keyword.Search(ctx, queryText, opts.KeywordLimit, opts.Project)
		if err != nil {
			return Response{}, err
		}
		matchedTerms = make(map[string][]string, len(hits))
		for _, h := range hits {
			keywordIDs = append(keywordIDs, h.ChunkID)
			matchedTerms[h.ChunkID] = h.MatchedTerms
			if _, ok := meta[h.ChunkID]; !ok {
				meta[h.ChunkID] = chunkMeta(e.Metadata, h.ChunkID)
			}
		}
		lists = append(lists, RankedList{Source: string(SourceKeyword), Weight: opts.KeywordWeight, IDs: keywordIDs})
	}

	if !opts.SkipClusters && e.Clusters != nil {
		seeds := make([]RankedChunk, 0, len(vectorIDs)+len(keywordIDs))
		for rank, id := range vectorIDs {
			seeds = append(seeds, RankedChunk{ChunkID: id, FusedScore: 1.0 / float64(rank+1)})
		}
		for rank, id := range keywordIDs {
			seeds = append(seeds, RankedChunk{ChunkID: id, FusedScore: 1.0 / float64(rank+1)})
		}
		sort.Slice(seeds, func(i, j int) bool { return seeds[i].FusedScore > seeds[j].FusedScore })
		siblings := ExpandClusters(seeds, e.Clusters, opts.MaxClusters, opts.MaxSiblings, opts.SiblingFactor)
		if len(siblings) > 0 {
			ids := make([]string, len(siblings))
			for i, s := range siblings {
				ids[i] = s.ChunkID
				if _, ok := meta[s.ChunkID]; !ok {
					meta[s.ChunkID] = chunkMeta(e.Metadata, s.ChunkID)
				}
			}
			lists = append(lists, RankedList{Source: string(SourceCluster), Weight: opts.VectorWeight, IDs: ids})
		}
	}

	if e.Graph != nil {
		graphIDs := graphAgreement(ctx, e.Graph, append(append([]string{}, vectorIDs...), keywordIDs...), e.ReferenceClk)
		if len(graphIDs) > 0 {
			for _, id := range graphIDs {
				if _, ok := meta[id]; !ok {
					meta[id] = chunkMeta(e.Metadata, id)
				}
			}
			lists = append(lists, RankedList{Source: string(SourceGraph), Weight: opts.VectorWeight, IDs: graphIDs})
		}
	}

	for id, terms := range matchedTerms {
		m := meta[id]
		m.MatchedTerms = terms
		meta[id] = m
	}

	acc := Fuse(lists, opts.RRFConstant)
	ranked := ToRankedChunks(acc, meta)

	diversified := Diversify(ranked, opts.MMRLambda, opts.TokenBudget)

	seedSetSize := opts.SeedSetSize
	if seedSetSize <= 0 || seedSetSize > len(diversified) {
		seedSetSize = len(diversified)
	}
	seedSet := make([]string, seedSetSize)
	for i := 0; i < seedSetSize; i++ {
		seedSet[i] = diversified[i].ChunkID
	}

	total := 0
	for _, c := range diversified {
		total += c.TokenCount
	}

	return Response{
		Chunks:      diversified,
		TokenCount:  total,
		QueryVector: queryVector,
		SeedSet:     seedSet,
	}, nil
}

func chunkMeta(lookup MetadataLookup, chunkID string) RankedChunk {
	if lookup == nil {
		return RankedChunk{ChunkID: chunkID}
	}
	m, ok := lookup.Lookup(chunkID)
	if !ok {
		return RankedChunk{ChunkID: chunkID}
	}
	return RankedChunk{
		ChunkID:    chunkID,
		Project:    m.Project,
		Preview:    m.Preview,
		TokenCount: m.TokenCount,
		Vector:     m.Vector,
	}
}

// graphAgreement traverses outward (backward, the recall direction) from
// every raw hit and accumulates a combined weight per reached chunk,
// surfacing only chunks two or more independent seeds agree on.
func graphAgreement(ctx context.Context, g graphReader, seeds []string, referenceClk model.Clock) []string {
	const minWeight = 0.05
	hitCounts := make(map[string]int)
	totals := make(map[string]float64)

	for _, seed := range seeds {
		hits, err := g.Traverse(ctx, seed, referenceClk, minWeight)
		if err != nil {
			continue
		}
		for _, h := range hits {
			hitCounts[h.ChunkID]++
			totals[h.ChunkID] += h.Weight
		}
	}

	var agreed []string
	for id, count := range hitCounts {
		if count >= 2 {
			agreed = append(agreed, id)
		}
	}
	sort.Slice(agreed, func(i, j int) bool { return totals[agreed[i]] > totals[agreed[j]] })
	return agreed
}
