// Package chain walks the causal graph outward from a seed set to assemble
// ordered chains of chunks — "what led to this" (recall) or "what followed"
// (predict) — per spec.md §4.7 C7. There is no teacher analog (amanmcp has
// no causal graph); the iterative, explicit-visited-set walk style is
// grounded on the same connected-components walk in the Nucleus clustering
// file that internal/graph and internal/cluster draw on.
package chain

import (
	"context"
	"math"
	"sort"

	"github.com/recallgraph/recallgraph/internal/model"
)

// EdgeReader is the read surface the walker needs from storage: forward
// edges by source lookup, or the backward view by target lookup (spec.md §3
// edge invariants — only forward edges are materialized).
type EdgeReader interface {
	EdgesFrom(ctx context.Context, chunkID string) ([]model.Edge, error)
	EdgesTo(ctx context.Context, chunkID string) ([]model.Edge, error)
}

// NodeInfo is the per-chunk data the walker needs to score and budget a
// chain, decoupled from the store package's full Chunk type.
type NodeInfo struct {
	TokenCount int
	Embedding  []float32
}

// NodeLookup resolves a chunk id to the data needed for scoring/budgeting.
type NodeLookup interface {
	Lookup(chunkID string) (NodeInfo, bool)
}

// Chain is one assembled walk: an ordered list of chunk ids (already in the
// output order appropriate to Direction) and its similarity score.
type Chain struct {
	ChunkIDs     []string
	MedianScore  float64
}

// Walk runs the per-seed chain walk across every seed in fused-rank order,
// sharing one visited set and one token budget across all seeds (spec.md
// §4.7 "Across seeds"), then selects the best qualifying chain.
//
// direction is model.DirBackward for recall ("what led to this", walked
// target->source then reversed for chronological output) or
// model.DirForward for predict (source->target, output in traversal order).
func Walk(ctx context.Context, reader EdgeReader, lookup NodeLookup, seeds []string, direction model.Direction, queryEmbedding []float32, tokenBudget, maxDepth int) (*Chain, error) {
	visited := make(map[string]bool)
	var chains []Chain

	for _, seed := range seeds {
		if visited[seed] {
			continue
		}
		c, err := walkOne(ctx, reader, lookup, visited, seed, direction, queryEmbedding, &tokenBudget, maxDepth)
		if err != nil {
			return nil, err
		}
		if len(c.ChunkIDs) >= 2 {
			chains = append(chains, c)
		}
	}

	if len(chains) == 0 {
		return nil, nil
	}

	sort.Slice(chains, func(i, j int) bool { return chains[i].MedianScore > chains[j].MedianScore })
	best := chains[0]

	if direction == model.DirBackward {
		reverse(best.ChunkIDs)
	}
	return &best, nil
}

// walkOne performs a single seed's walk: mark visited, follow the first
// unvisited neighbor in edge insertion order, stop at maxDepth, exhaustion,
// or budget overflow (spec.md §4.7 "Per-chain walk").
func walkOne(ctx context.Context, reader EdgeReader, lookup NodeLookup, visited map[string]bool, seed string, direction model.Direction, queryEmbedding []float32, tokenBudget *int, maxDepth int) (Chain, error) {
	var ids []string
	var scores []float64

	cur := seed
	depth := 0
	for {
		visited[cur] = true
		ids = append(ids, cur)
		if info, ok := lookup.Lookup(cur); ok {
			scores = append(scores, similarityScore(queryEmbedding, info.Embedding))
		} else {
			scores = append(scores, 0)
		}

		if depth >= maxDepth {
			break
		}

		neighbor, err := firstUnvisitedNeighbor(ctx, reader, cur, direction, visited)
		if err != nil {
			return Chain{}, err
		}
		if neighbor == "" {
			break
		}

		info, ok := lookup.Lookup(neighbor)
		tokens := 0
		if ok {
			tokens = info.TokenCount
		}
		if len(ids) >= 2 && tokens > *tokenBudget {
			break
		}

		*tokenBudget -= tokens
		cur = neighbor
		depth++
	}

	return Chain{ChunkIDs: ids, MedianScore: median(scores)}, nil
}

func firstUnvisitedNeighbor(ctx context.Context, reader EdgeReader, id string, direction model.Direction, visited map[string]bool) (string, error) {
	var edges []model.Edge
	var err error
	if direction == model.DirBackward {
		edges, err = reader.EdgesTo(ctx, id)
	} else {
		edges, err = reader.EdgesFrom(ctx, id)
	}
	if err != nil {
		return "", err
	}

	for _, e := range edges {
		var neighbor string
		if direction == model.DirBackward {
			neighbor = e.Source
		} else {
			neighbor = e.Target
		}
		if !visited[neighbor] {
			return neighbor, nil
		}
	}
	return "", nil
}

func similarityScore(query, chunk []float32) float64 {
	if len(query) == 0 || len(chunk) == 0 || len(query) != len(chunk) {
		return 0
	}
	return 1 - angularDistance(query, chunk)
}

func angularDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 2 * math.Acos(cos) / math.Pi
}

// median returns the robust-to-outliers median of a similarity score list
// (spec.md §4.7 "Selection": "median per-node similarity").
func median(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func reverse(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
