package assemble

import (
	"context"

	"github.com/recallgraph/recallgraph/internal/clock"
	"github.com/recallgraph/recallgraph/internal/graph"
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/search"
)

// graphAdapter satisfies search's narrow graphReader interface by binding
// graph.Traverse to a fixed direction and decay curve: the graph-agreement
// boost always walks backward (the recall direction) from raw hits,
// regardless of whether the caller is ultimately assembling a recall or a
// predict response (spec.md §4.6's graph-agreement step is direction-
// agnostic to the request; only the later chain walk is direction-aware).
type graphAdapter struct {
	reader   graph.EdgeReader
	decay    clock.Curve
}

// newGraphAdapter builds the graph-agreement reader the search engine
// embeds, from the same edge store the chain walker and ingest pipeline use.
func newGraphAdapter(reader graph.EdgeReader, decay clock.Curve) *graphAdapter {
	if decay == nil {
		decay = clock.DefaultBackwardDecay()
	}
	return &graphAdapter{reader: reader, decay: decay}
}

func (a *graphAdapter) Traverse(ctx context.Context, seed string, referenceClock model.Clock, minWeight float64) ([]search.GraphHit, error) {
	nodes, err := graph.Traverse(ctx, a.reader, seed, model.DirBackward, referenceClock, minWeight, a.decay)
	if err != nil {
		return nil, err
	}
	hits := make([]search.GraphHit, len(nodes))
	for i, n := range nodes {
		hits[i] = search.GraphHit{ChunkID: n.ChunkID, Weight: n.Weight}
	}
	return hits, nil
}
