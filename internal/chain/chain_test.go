package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallgraph/recallgraph/internal/model"
)

type fakeEdgeReader struct {
	forward  map[string][]model.Edge
	backward map[string][]model.Edge
}

func (f *fakeEdgeReader) EdgesFrom(ctx context.Context, id string) ([]model.Edge, error) {
	return f.forward[id], nil
}

func (f *fakeEdgeReader) EdgesTo(ctx context.Context, id string) ([]model.Edge, error) {
	return f.backward[id], nil
}

type fakeNodeLookup struct{ nodes map[string]NodeInfo }

func (f *fakeNodeLookup) Lookup(id string) (NodeInfo, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

func linearChain(ids ...string) (*fakeEdgeReader, *fakeNodeLookup) {
	reader := &fakeEdgeReader{forward: map[string][]model.Edge{}, backward: map[string][]model.Edge{}}
	lookup := &fakeNodeLookup{nodes: map[string]NodeInfo{}}
	for i := 0; i < len(ids)-1; i++ {
		reader.forward[ids[i]] = append(reader.forward[ids[i]], model.Edge{Source: ids[i], Target: ids[i+1]})
		reader.backward[ids[i+1]] = append(reader.backward[ids[i+1]], model.Edge{Source: ids[i], Target: ids[i+1]})
	}
	for _, id := range ids {
		lookup.nodes[id] = NodeInfo{TokenCount: 10, Embedding: []float32{1, 0}}
	}
	return reader, lookup
}

func TestWalkForwardFollowsChainInOrder(t *testing.T) {
	reader, lookup := linearChain("a", "b", "c")
	chain, err := Walk(context.Background(), reader, lookup, []string{"a"}, model.DirForward, []float32{1, 0}, 1000, 10)
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, []string{"a", "b", "c"}, chain.ChunkIDs)
}

func TestWalkBackwardReversesForChronologicalOutput(t *testing.T) {
	reader, lookup := linearChain("a", "b", "c")
	chain, err := Walk(context.Background(), reader, lookup, []string{"c"}, model.DirBackward, []float32{1, 0}, 1000, 10)
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, []string{"a", "b", "c"}, chain.ChunkIDs)
}

func TestWalkStopsAtMaxDepth(t *testing.T) {
	reader, lookup := linearChain("a", "b", "c", "d")
	chain, err := Walk(context.Background(), reader, lookup, []string{"a"}, model.DirForward, []float32{1, 0}, 1000, 1)
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, []string{"a", "b"}, chain.ChunkIDs)
}

func TestWalkFiltersChainsShorterThanTwo(t *testing.T) {
	reader := &fakeEdgeReader{forward: map[string][]model.Edge{}, backward: map[string][]model.Edge{}}
	lookup := &fakeNodeLookup{nodes: map[string]NodeInfo{"lonely": {TokenCount: 10}}}
	chain, err := Walk(context.Background(), reader, lookup, []string{"lonely"}, model.DirForward, nil, 1000, 10)
	require.NoError(t, err)
	assert.Nil(t, chain)
}

func TestWalkSharesVisitedSetAcrossSeeds(t *testing.T) {
	reader, lookup := linearChain("a", "b", "c")
	chain, err := Walk(context.Background(), reader, lookup, []string{"a", "b"}, model.DirForward, []float32{1, 0}, 1000, 10)
	require.NoError(t, err)
	require.NotNil(t, chain)
	// "b" was already visited by the "a" walk, so the "b" seed contributes nothing new.
	assert.Equal(t, []string{"a", "b", "c"}, chain.ChunkIDs)
}

func TestWalkStopsOnBudgetOverflowAfterOneExtraNode(t *testing.T) {
	reader, lookup := linearChain("a", "b", "c")
	lookup.nodes["c"] = NodeInfo{TokenCount: 1000, Embedding: []float32{1, 0}}
	chain, err := Walk(context.Background(), reader, lookup, []string{"a"}, model.DirForward, []float32{1, 0}, 50, 10)
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, []string{"a", "b"}, chain.ChunkIDs)
}

func TestMedianOddAndEvenLengths(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0.0, median(nil))
}
