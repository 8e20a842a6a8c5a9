package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclusterFormsDenseGroupAndDropsSingleton(t *testing.T) {
	points := []Point{
		{ChunkID: "a", Vector: []float32{1, 0, 0}},
		{ChunkID: "b", Vector: []float32{0.99, 0.1, 0}},
		{ChunkID: "c", Vector: []float32{0.98, 0.15, 0}},
		{ChunkID: "outlier", Vector: []float32{0, 0, 1}},
	}

	result := Recluster(points, Config{Threshold: 0.3, MinClusterSize: 3, MaxExemplars: 2})

	require.Len(t, result.Clusters, 1)
	assert.Len(t, result.Assignments, 3)

	assigned := make(map[string]bool)
	for _, a := range result.Assignments {
		assigned[a.ChunkID] = true
		assert.Equal(t, result.Clusters[0].ID, a.ClusterID)
	}
	assert.True(t, assigned["a"] && assigned["b"] && assigned["c"])
	assert.False(t, assigned["outlier"])
}

func TestReclusterRespectsMaxExemplars(t *testing.T) {
	points := []Point{
		{ChunkID: "a", Vector: []float32{1, 0}},
		{ChunkID: "b", Vector: []float32{0.99, 0.1}},
		{ChunkID: "c", Vector: []float32{0.98, 0.12}},
		{ChunkID: "d", Vector: []float32{0.97, 0.14}},
	}

	result := Recluster(points, Config{Threshold: 0.3, MinClusterSize: 2, MaxExemplars: 2})

	require.Len(t, result.Clusters, 1)
	assert.Len(t, result.Clusters[0].Exemplars, 2)
}

func TestReclusterEmptyInputProducesNoClusters(t *testing.T) {
	result := Recluster(nil, DefaultConfig())
	assert.Empty(t, result.Clusters)
	assert.Empty(t, result.Assignments)
}

func TestAngularDistanceIdenticalVectorsIsZero(t *testing.T) {
	d := angularDistance([]float32{1, 0, 0}, []float32{1, 0, 0})
	assert.InDelta(t, 0, d, 1e-6)
}

func TestAngularDistanceOrthogonalVectorsIsHalf(t *testing.T) {
	d := angularDistance([]float32{1, 0}, []float32{0, 1})
	assert.InDelta(t, 0.5, d, 1e-6)
}
