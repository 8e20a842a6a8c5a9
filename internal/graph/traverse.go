package graph

import (
	"context"
	"sort"

	"github.com/recallgraph/recallgraph/internal/clock"
	"github.com/recallgraph/recallgraph/internal/model"
)

// EdgeReader is the read surface graph traversal needs from storage. Forward
// edges are materialized rows (source lookup); backward is a query-time view
// over the same rows keyed by target (spec.md §3 edge invariants). Both
// return edges in insertion order.
type EdgeReader interface {
	EdgesFrom(ctx context.Context, chunkID string) ([]model.Edge, error)
	EdgesTo(ctx context.Context, chunkID string) ([]model.Edge, error)
}

// WeightedNode is one result of a sum-product traversal: a reachable chunk
// id and its accumulated weight.
type WeightedNode struct {
	ChunkID string
	Weight  float64
}

type frontierEntry struct {
	id      string
	product float64
}

// Traverse performs the sum-product weighted walk described in spec.md
// §4.10: weights along a path multiply; a node reached by multiple paths
// accumulates the sum of those path products; any path whose product falls
// below minWeight is abandoned. The start node is excluded from the
// returned results, which are sorted by accumulated weight descending.
//
// referenceClock is the project's current reference clock, used to derive
// each edge's hop count at read time. decay is the direction-appropriate
// curve (clock.DefaultBackwardDecay for recall, clock.DefaultForwardDecay
// for predict).
//
// Termination: since every edge's effective weight is strictly in (0,1) and
// minWeight > 0, the product along any path strictly decreases with each
// hop, so every path is eventually pruned; cycles are not detected
// explicitly (spec.md §4.10).
func Traverse(ctx context.Context, reader EdgeReader, start string, direction model.Direction, referenceClock model.Clock, minWeight float64, decay clock.Curve) ([]WeightedNode, error) {
	if minWeight <= 0 {
		minWeight = 0.01
	}
	accum := make(map[string]float64)
	queue := []frontierEntry{{id: start, product: 1.0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		neighbors, err := neighborsOf(ctx, reader, cur.id, direction)
		if err != nil {
			return nil, err
		}
		for _, edge := range neighbors {
			neighborID := neighborID(edge, direction)
			hops := edge.Clock.HopCount(referenceClock)
			effective := clock.EffectiveWeight(edge.Weight, edge.LinkCount, hops, decay)
			if effective <= 0 {
				continue
			}
			product := cur.product * effective
			if product < minWeight {
				continue
			}
			accum[neighborID] += product
			queue = append(queue, frontierEntry{id: neighborID, product: product})
		}
	}

	delete(accum, start)

	results := make([]WeightedNode, 0, len(accum))
	for id, w := range accum {
		results = append(results, WeightedNode{ChunkID: id, Weight: w})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Weight != results[j].Weight {
			return results[i].Weight > results[j].Weight
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results, nil
}

func neighborsOf(ctx context.Context, reader EdgeReader, id string, direction model.Direction) ([]model.Edge, error) {
	if direction == model.DirBackward {
		return reader.EdgesTo(ctx, id)
	}
	return reader.EdgesFrom(ctx, id)
}

func neighborID(e model.Edge, direction model.Direction) string {
	if direction == model.DirBackward {
		return e.Source
	}
	return e.Target
}
