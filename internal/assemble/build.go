package assemble

import (
	"context"

	"github.com/recallgraph/recallgraph/internal/clock"
	"github.com/recallgraph/recallgraph/internal/config"
	"github.com/recallgraph/recallgraph/internal/search"
	"github.com/recallgraph/recallgraph/internal/store"
)

// Deps are the stores and services every retrieval operation needs.
type Deps struct {
	Metadata store.MetadataStore
	Vectors  store.VectorStore
	Lexical  store.BM25Index
	Embedder Embedder
	Config   *config.Config
}

// New builds an Assembler scoped to one project, fetching its current
// reference clock for the graph-agreement boost and chain walk decay
// (spec.md §4.2, §4.6, §4.7). A fresh Assembler is built per call rather than
// held long-lived, since the search engine's graph-agreement boost is scoped
// to a single project's reference clock and a server may field requests
// against many projects.
func New(ctx context.Context, d Deps, project string) (*Assembler, error) {
	refClk, err := d.Metadata.GetReferenceClock(ctx, project)
	if err != nil {
		return nil, err
	}

	r := d.Config.Retrieval
	decay := clock.HoldThenLinear(clock.HoldDecayConfig{
		Hold:   r.Decay.Backward.HoldHops,
		DiesAt: r.Decay.Backward.DiesAtHops,
	})

	engine := &search.Engine{
		Vector:       vectorAdapter{d.Vectors},
		Keyword:      keywordAdapter{d.Lexical},
		Clusters:     &clusterAdapter{ctx: ctx, metadata: d.Metadata, maxSiblings: r.ClusterExpansion.MaxSiblings},
		Graph:        newGraphAdapter(d.Metadata, decay),
		Metadata:     &metadataLookup{ctx: ctx, metadata: d.Metadata, vectors: d.Vectors},
		ReferenceClk: refClk,
	}

	opts := search.DefaultOptions()
	opts.Project = project
	opts.MaxClusters = r.ClusterExpansion.MaxClusters
	opts.MaxSiblings = r.ClusterExpansion.MaxSiblings
	opts.MMRLambda = r.MMRLambda
	opts.TokenBudget = r.Tokens.MCPMaxResponse
	opts.RRFConstant = r.HybridSearch.RRFK
	opts.VectorWeight = r.HybridSearch.VectorWeight
	opts.KeywordWeight = r.HybridSearch.KeywordWeight

	return &Assembler{
		Engine:           engine,
		Edges:            d.Metadata,
		Metadata:         d.Metadata,
		Vectors:          d.Vectors,
		Embedder:         d.Embedder,
		SearchOptions:    opts,
		MaxDepth:         r.Traversal.MaxDepth,
		MinWeight:        r.Traversal.MinWeight,
		QualifyThreshold: defaultQualifyThreshold,
		TokenBudget:      r.Tokens.MCPMaxResponse,
	}, nil
}

// defaultQualifyThreshold is the minimum chain median score recall/predict
// will accept before falling back to a flat search response (spec.md §4.8);
// not yet exposed as a tuned config value since internal/bench (C10) is
// what's meant to inform where this should sit.
const defaultQualifyThreshold = 0.15

type vectorAdapter struct{ store store.VectorStore }

func (a vectorAdapter) Search(ctx context.Context, query []float32, k int, project string) ([]search.VectorHit, error) {
	results, err := a.store.Search(ctx, query, k, project)
	if err != nil {
		return nil, err
	}
	hits := make([]search.VectorHit, len(results))
	for i, r := range results {
		hits[i] = search.VectorHit{ChunkID: r.ID, Distance: float64(r.Distance)}
	}
	return hits, nil
}

type keywordAdapter struct{ index store.BM25Index }

func (a keywordAdapter) Search(ctx context.Context, query string, limit int, project string) ([]search.KeywordHit, error) {
	results, err := a.index.Search(ctx, query, limit, project)
	if err != nil {
		return nil, err
	}
	hits := make([]search.KeywordHit, len(results))
	for i, r := range results {
		hits[i] = search.KeywordHit{ChunkID: r.ChunkID, Score: r.Score, MatchedTerms: r.MatchedTerms}
	}
	return hits, nil
}

// clusterAdapter binds a request's context to MetadataStore's cluster
// lookups, satisfying search.ClusterLookup (spec.md §4.6 cluster expansion).
type clusterAdapter struct {
	ctx         context.Context
	metadata    store.MetadataStore
	maxSiblings int
}

func (a *clusterAdapter) ClusterOf(chunkID string) (string, bool) {
	m, err := a.metadata.ClusterOf(a.ctx, chunkID)
	if err != nil || m == nil {
		return "", false
	}
	return m.ClusterID, true
}

func (a *clusterAdapter) SiblingsOf(clusterID string, exclude string, limit int) []string {
	if limit <= 0 {
		limit = a.maxSiblings
	}
	members, err := a.metadata.ClusterMembers(a.ctx, clusterID, exclude, limit)
	if err != nil {
		return nil
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.ChunkID
	}
	return out
}
