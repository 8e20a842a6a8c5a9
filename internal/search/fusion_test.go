package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseWeightsSourcesByRank(t *testing.T) {
	lists := []RankedList{
		{Source: string(SourceVector), Weight: 1.0, IDs: []string{"a", "b", "c"}},
		{Source: string(SourceKeyword), Weight: 1.0, IDs: []string{"b", "a"}},
	}
	acc := Fuse(lists, 60)
	require.Contains(t, acc, "a")
	require.Contains(t, acc, "b")

	// b: rank2 in vector (1/62) + rank1 in keyword (1/61); c: rank3 in vector only (1/63)
	assert.Greater(t, acc["b"].score, acc["c"].score)
}

func TestFuseCreditsMostInformativeSource(t *testing.T) {
	lists := []RankedList{
		{Source: string(SourceVector), Weight: 1.0, IDs: []string{"x"}},
		{Source: string(SourceGraph), Weight: 1.0, IDs: []string{"x"}},
	}
	acc := Fuse(lists, 60)
	assert.Equal(t, SourceGraph, acc["x"].bestSource)
}

func TestToRankedChunksNormalizesAndSortsByScore(t *testing.T) {
	lists := []RankedList{
		{Source: string(SourceVector), Weight: 1.0, IDs: []string{"a", "b"}},
	}
	acc := Fuse(lists, 60)
	meta := map[string]RankedChunk{
		"a": {Preview: "first"},
		"b": {Preview: "second"},
	}
	ranked := ToRankedChunks(acc, meta)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ChunkID)
	assert.Equal(t, 1.0, ranked[0].FusedScore)
	assert.True(t, ranked[0].FusedScore >= ranked[1].FusedScore)
}

func TestToRankedChunksSkipsMissingMetadata(t *testing.T) {
	lists := []RankedList{
		{Source: string(SourceVector), Weight: 1.0, IDs: []string{"a", "ghost"}},
	}
	acc := Fuse(lists, 60)
	meta := map[string]RankedChunk{"a": {}}
	ranked := ToRankedChunks(acc, meta)
	require.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].ChunkID)
}

func TestFuseEmptyListsProducesEmptyAccumulator(t *testing.T) {
	acc := Fuse(nil, 60)
	assert.Empty(t, acc)
}
