package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amanerrors "github.com/recallgraph/recallgraph/internal/errors"
	"github.com/recallgraph/recallgraph/internal/store"
)

// fakeMetadata only overrides ClusterStats; Generate never touches anything
// else on store.MetadataStore.
type fakeMetadata struct {
	store.MetadataStore
	stats store.ClusterStats
	err   error
}

func (f *fakeMetadata) ClusterStats(ctx context.Context, project string) (store.ClusterStats, error) {
	return f.stats, f.err
}

type fakeVectors struct {
	store.VectorStore
	stats store.HNSWStats
}

func (f *fakeVectors) Stats() store.HNSWStats { return f.stats }

func TestGenerateThresholdNotMetWithTooFewChunks(t *testing.T) {
	md := &fakeMetadata{stats: store.ClusterStats{ClusteredChunks: 2, UnclusteredChunks: 1}}
	vs := &fakeVectors{}

	_, err := Generate(context.Background(), md, vs, NewRecorder(nil), "proj")
	require.Error(t, err)
	assert.Equal(t, amanerrors.CategoryValidation, amanerrors.GetCategory(err))
}

func TestGenerateReportsClusterHealthAndOrphanAdvice(t *testing.T) {
	md := &fakeMetadata{stats: store.ClusterStats{
		ClusterCount:      4,
		ClusteredChunks:   16,
		UnclusteredChunks: 20,
		AvgClusterSize:    4,
		AvgMemberDistance: 0.2,
	}}
	vs := &fakeVectors{stats: store.HNSWStats{ValidIDs: 20, GraphNodes: 30, Orphans: 10}}

	report, err := Generate(context.Background(), md, vs, NewRecorder(nil), "proj")
	require.NoError(t, err)

	assert.Equal(t, 4, report.ClusterHealth.ClusterCount)
	assert.InDelta(t, 10.0/30.0, report.ClusterHealth.OrphanRatio, 1e-9)

	var subjects []string
	for _, a := range report.Advice {
		subjects = append(subjects, a.Subject)
	}
	assert.Contains(t, subjects, "vector store")
	assert.Contains(t, subjects, "clustering")
}

func TestGenerateWithNilRecorderLeavesRetrievalQualityZero(t *testing.T) {
	md := &fakeMetadata{stats: store.ClusterStats{ClusteredChunks: 30, UnclusteredChunks: 0, ClusterCount: 3}}
	vs := &fakeVectors{stats: store.HNSWStats{ValidIDs: 30, GraphNodes: 30}}

	report, err := Generate(context.Background(), md, vs, nil, "proj")
	require.NoError(t, err)
	assert.Zero(t, report.RetrievalQuality.TotalQueries)
}

func TestGenerateSurfacesRecorderRetrievalQuality(t *testing.T) {
	md := &fakeMetadata{stats: store.ClusterStats{ClusteredChunks: 30, ClusterCount: 3}}
	vs := &fakeVectors{stats: store.HNSWStats{ValidIDs: 30, GraphNodes: 30}}

	rec := NewRecorder(nil)
	for i := 0; i < 12; i++ {
		rec.RecordSearch("q", 0, 5*time.Millisecond)
	}

	report, err := Generate(context.Background(), md, vs, rec, "proj")
	require.NoError(t, err)
	assert.EqualValues(t, 12, report.RetrievalQuality.TotalQueries)
	assert.InDelta(t, 1.0, report.RetrievalQuality.ZeroResultRate, 1e-9)

	var subjects []string
	for _, a := range report.Advice {
		subjects = append(subjects, a.Subject)
	}
	assert.Contains(t, subjects, "search")
}
