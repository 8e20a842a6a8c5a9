package assemble

import (
	"context"

	"github.com/recallgraph/recallgraph/internal/chain"
	amanerrors "github.com/recallgraph/recallgraph/internal/errors"
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/search"
	"github.com/recallgraph/recallgraph/internal/store"
)

// Embedder is the narrow embedding surface the assembler needs to turn a
// query string into a vector before handing it to the search engine.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Assembler wires the search engine (C6) and chain walker (C7) into the
// three retrieval operations spec.md §6 exposes: search, recall, predict,
// plus reconstruct (§4.9 C9). It holds no state beyond configuration; every
// method is safe to call concurrently as long as the underlying stores are
// (spec.md §5: retrieval requests may run in parallel, read-only).
type Assembler struct {
	Engine   *search.Engine
	Edges    chain.EdgeReader
	Metadata store.MetadataStore
	Vectors  store.VectorStore
	Embedder Embedder

	SearchOptions search.Options

	MaxDepth         int
	MinWeight        float64
	QualifyThreshold float64
	TokenBudget      int
}

// Search runs the flat hybrid search pipeline with no chain assembly or
// fallback bookkeeping — it is the baseline, so no fallback is possible
// (spec.md §4.8 "search always returns the flat search response").
func (a *Assembler) Search(ctx context.Context, queryText string, opts search.Options) (SearchResponse, error) {
	resp, err := a.runSearch(ctx, queryText, opts)
	if err != nil {
		return SearchResponse{}, err
	}
	return SearchResponse{
		Chunks:          resp.Chunks,
		TokenCount:      resp.TokenCount,
		SourceBreakdown: sourceBreakdown(resp.Chunks),
		QueryEmbedding:  resp.QueryVector,
	}, nil
}

// Recall assembles "what led to this": a backward chain walk seeded from a
// search over queryText, falling back to the flat search response when no
// chain qualifies (spec.md §4.8).
func (a *Assembler) Recall(ctx context.Context, queryText string, opts search.Options) (RecallResponse, error) {
	return a.assembleChain(ctx, queryText, model.DirBackward, opts)
}

// Predict assembles "what followed": a forward chain walk, same fallback
// contract as Recall (spec.md §4.8).
func (a *Assembler) Predict(ctx context.Context, contextText string, opts search.Options) (RecallResponse, error) {
	return a.assembleChain(ctx, contextText, model.DirForward, opts)
}

func (a *Assembler) runSearch(ctx context.Context, queryText string, opts search.Options) (search.Response, error) {
	if queryText == "" {
		return search.Response{}, amanerrors.ValidationError("query text must not be empty", nil)
	}
	queryVector, err := a.Embedder.Embed(ctx, queryText)
	if err != nil {
		return search.Response{}, amanerrors.EmbedderUnavailableError("failed to embed query", err)
	}
	resp, err := a.Engine.Search(ctx, queryVector, queryText, opts)
	if err != nil {
		return search.Response{}, amanerrors.StoreUnavailableError("search pipeline failed", err)
	}
	return resp, nil
}

// assembleChain implements the shared recall/predict contract: run search,
// try the chain walk, and fall through to a formatted flat response with a
// diagnostic reason at the first point the chain can't be assembled
// (spec.md §4.8, §7 "No silent swallowing in recall/predict/search entry
// points").
func (a *Assembler) assembleChain(ctx context.Context, queryText string, direction model.Direction, opts search.Options) (RecallResponse, error) {
	resp, err := a.runSearch(ctx, queryText, opts)
	if err != nil {
		return RecallResponse{}, err
	}

	if len(resp.Chunks) == 0 {
		return a.fallback(ctx, nil, Diagnostics{Reason: FallbackNoMatches}), nil
	}

	seeds := resp.SeedSet
	if len(seeds) == 0 {
		return a.fallback(ctx, resp.Chunks, Diagnostics{
			SearchHits: len(resp.Chunks),
			Reason:     FallbackNoSeeds,
		}), nil
	}

	edgeCount := 0
	for _, seed := range seeds {
		edges, err := edgesFrom(ctx, a.Edges, seed, direction)
		if err != nil {
			return RecallResponse{}, amanerrors.StoreUnavailableError("edge lookup failed", err)
		}
		edgeCount += len(edges)
	}
	if edgeCount == 0 {
		return a.fallback(ctx, resp.Chunks, Diagnostics{
			SearchHits: len(resp.Chunks),
			SeedCount:  len(seeds),
			Reason:     FallbackNoEdges,
		}), nil
	}

	lookup := &nodeLookup{ctx: ctx, metadata: a.Metadata, vectors: a.Vectors}
	best, err := chain.Walk(ctx, a.Edges, lookup, seeds, direction, resp.QueryVector, a.TokenBudget, a.MaxDepth)
	if err != nil {
		return RecallResponse{}, amanerrors.InternalError("chain walk failed", err)
	}
	if best == nil {
		return a.fallback(ctx, resp.Chunks, Diagnostics{
			SearchHits:      len(resp.Chunks),
			SeedCount:       len(seeds),
			ChainsAttempted: len(seeds),
			Reason:          FallbackTooShort,
		}), nil
	}
	if best.MedianScore < a.QualifyThreshold {
		return a.fallback(ctx, resp.Chunks, Diagnostics{
			SearchHits:      len(resp.Chunks),
			SeedCount:       len(seeds),
			ChainsAttempted: len(seeds),
			ChainLengths:    []int{len(best.ChunkIDs)},
			Reason:          FallbackThreshold,
		}), nil
	}

	ordered, err := a.orderedChunks(ctx, best.ChunkIDs)
	if err != nil {
		return RecallResponse{}, amanerrors.StoreUnavailableError("chunk lookup failed", err)
	}
	text, tokenCount, _ := formatChunks(ordered, a.TokenBudget)

	return RecallResponse{
		Text:        text,
		TokenCount:  tokenCount,
		Chunks:      rankedFromChunks(ordered),
		Mode:        ModeChain,
		ChainLength: len(best.ChunkIDs),
	}, nil
}

// fallback formats the flat search chunks into a RecallResponse carrying
// fallback diagnostics (spec.md §4.8).
func (a *Assembler) fallback(ctx context.Context, chunks []search.RankedChunk, diag Diagnostics) RecallResponse {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	ordered, err := a.orderedChunks(ctx, ids)
	text, tokenCount := "", 0
	if err == nil {
		text, tokenCount, _ = formatChunks(ordered, a.TokenBudget)
	}
	return RecallResponse{
		Text:        text,
		TokenCount:  tokenCount,
		Chunks:      chunks,
		Mode:        ModeSearchFallback,
		Diagnostics: &diag,
	}
}

// orderedChunks resolves chunk ids to full model.Chunk records in the given
// order (store.MetadataStore.GetChunks does not guarantee row order).
func (a *Assembler) orderedChunks(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	fetched, err := a.Metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Chunk, len(fetched))
	for _, c := range fetched {
		byID[c.ID] = c
	}
	out := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// rankedFromChunks builds minimal search.RankedChunk entries for chain-mode
// output, crediting the graph source since the chain was reached purely via
// the causal edge walk, not the hybrid ranked lists (spec.md §4.6's source
// priority treats a causal edge as the most informative kind of evidence).
func rankedFromChunks(chunks []model.Chunk) []search.RankedChunk {
	out := make([]search.RankedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = search.RankedChunk{
			ChunkID:    c.ID,
			Project:    c.Project,
			Preview:    preview(c.Text),
			StartTime:  c.StartTime,
			TokenCount: c.TokenCount,
			Source:     search.SourceGraph,
		}
	}
	return out
}

func edgesFrom(ctx context.Context, reader chain.EdgeReader, chunkID string, direction model.Direction) ([]model.Edge, error) {
	if direction == model.DirBackward {
		return reader.EdgesTo(ctx, chunkID)
	}
	return reader.EdgesFrom(ctx, chunkID)
}
