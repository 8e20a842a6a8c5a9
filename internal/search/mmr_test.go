package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiversifyAlwaysKeepsTopRanked(t *testing.T) {
	candidates := []RankedChunk{
		{ChunkID: "a", FusedScore: 1.0, Vector: []float32{1, 0}, TokenCount: 10},
		{ChunkID: "b", FusedScore: 0.9, Vector: []float32{1, 0}, TokenCount: 10},
	}
	picked := Diversify(candidates, 0.7, 0)
	require.NotEmpty(t, picked)
	assert.Equal(t, "a", picked[0].ChunkID)
}

func TestDiversifyPrefersDissimilarCandidateOverCloseSecond(t *testing.T) {
	candidates := []RankedChunk{
		{ChunkID: "a", FusedScore: 1.0, Vector: []float32{1, 0}, TokenCount: 10},
		{ChunkID: "dup", FusedScore: 0.95, Vector: []float32{1, 0}, TokenCount: 10},
		{ChunkID: "diverse", FusedScore: 0.7, Vector: []float32{0, 1}, TokenCount: 10},
	}
	picked := Diversify(candidates, 0.5, 0)
	require.Len(t, picked, 3)
	assert.Equal(t, "diverse", picked[1].ChunkID)
}

func TestDiversifyRespectsTokenBudget(t *testing.T) {
	candidates := []RankedChunk{
		{ChunkID: "a", FusedScore: 1.0, Vector: []float32{1, 0}, TokenCount: 50},
		{ChunkID: "b", FusedScore: 0.5, Vector: []float32{0, 1}, TokenCount: 60},
	}
	picked := Diversify(candidates, 0.7, 80)
	require.Len(t, picked, 1)
	assert.Equal(t, "a", picked[0].ChunkID)
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}))
}

func TestCosineSimilarityMismatchedDimsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0, 0}, []float32{1, 0}))
}
