package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallgraph/recallgraph/internal/model"
)

func newTestMetadataStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleChunk(id, project, session string, ordinal int, clk model.Clock) model.Chunk {
	now := time.Date(2026, 1, 1, 0, 0, ordinal, 0, time.UTC)
	return model.Chunk{
		ID:          id,
		Text:        "turn text " + id,
		TokenCount:  42,
		Project:     project,
		SessionID:   session,
		AgentID:     model.AgentMain,
		StartTime:   now,
		EndTime:     now.Add(time.Second),
		TurnIndices: []int{ordinal},
		Clock:       clk,
		CreatedAt:   now,
	}
}

func TestSQLiteStoreChunkRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c}))

	got, err := s.GetChunk(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Text, got.Text)
	assert.Equal(t, c.Project, got.Project)
	assert.Equal(t, 1, got.Clock["main"])
}

func TestSQLiteStoreGetChunkNotFound(t *testing.T) {
	s := newTestMetadataStore(t)
	got, err := s.GetChunk(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreReingestSameTranscriptIsIdempotent(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c}))
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c}))

	got, err := s.GetChunk(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
}

func TestSQLiteStoreDeleteChunkCascadesEdges(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	c2 := sampleChunk("c2", "proj", "sess-1", 1, model.Clock{"main": 2})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c1, c2}))

	edge := model.Edge{Source: "c1", Target: "c2", Kind: model.EdgeWithinChain, Weight: 1.0, LinkCount: 1, Clock: c2.Clock, CreatedAt: c2.CreatedAt}
	require.NoError(t, s.SaveEdge(ctx, edge))

	require.NoError(t, s.DeleteChunks(ctx, []string{"c1"}))

	edges, err := s.EdgesFrom(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSQLiteStoreEdgeLinkCountIncrementsOnRedetection(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	c2 := sampleChunk("c2", "proj", "sess-1", 1, model.Clock{"main": 2})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c1, c2}))

	edge := model.Edge{Source: "c1", Target: "c2", Kind: model.EdgeCrossSession, Weight: 1.0, LinkCount: 1, Clock: c2.Clock, CreatedAt: c2.CreatedAt}
	require.NoError(t, s.SaveEdge(ctx, edge))
	require.NoError(t, s.SaveEdge(ctx, edge))

	got, err := s.FindEdge(ctx, "c1", "c2", model.EdgeCrossSession)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.LinkCount)
}

func TestSQLiteStoreEdgesFromAndTo(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	c2 := sampleChunk("c2", "proj", "sess-1", 1, model.Clock{"main": 2})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c1, c2}))
	require.NoError(t, s.SaveEdge(ctx, model.Edge{Source: "c1", Target: "c2", Kind: model.EdgeWithinChain, Weight: 1.0, LinkCount: 1, Clock: c2.Clock, CreatedAt: c2.CreatedAt}))

	forward, err := s.EdgesFrom(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, forward, 1)
	assert.Equal(t, "c2", forward[0].Target)

	backward, err := s.EdgesTo(ctx, "c2")
	require.NoError(t, err)
	require.Len(t, backward, 1)
	assert.Equal(t, "c1", backward[0].Source)
}

func TestSQLiteStoreClusterMembershipIsSingleMembership(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c1}))
	require.NoError(t, s.SaveCluster(ctx, model.Cluster{ID: "clu-a", CreatedAt: time.Now(), RefreshedAt: time.Now()}))
	require.NoError(t, s.SaveCluster(ctx, model.Cluster{ID: "clu-b", CreatedAt: time.Now(), RefreshedAt: time.Now()}))

	require.NoError(t, s.ReplaceClusterMembership(ctx, []model.ClusterMember{{ChunkID: "c1", ClusterID: "clu-a", Distance: 0.1}}))
	require.NoError(t, s.ReplaceClusterMembership(ctx, []model.ClusterMember{{ChunkID: "c1", ClusterID: "clu-b", Distance: 0.2}}))

	m, err := s.ClusterOf(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "clu-b", m.ClusterID)
}

func TestSQLiteStoreReferenceClockDominatesObserved(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.AdvanceReferenceClock(ctx, "proj", model.Clock{"main": 3, "human": 1}))
	require.NoError(t, s.AdvanceReferenceClock(ctx, "proj", model.Clock{"main": 1, "sub1": 2}))

	ref, err := s.GetReferenceClock(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 3, ref["main"])
	assert.Equal(t, 1, ref["human"])
	assert.Equal(t, 2, ref["sub1"])
	assert.True(t, ref.Dominates(model.Clock{"main": 3, "human": 1}))
	assert.True(t, ref.Dominates(model.Clock{"main": 1, "sub1": 2}))
}

func TestSQLiteStoreIngestCheckpointRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	none, err := s.LoadIngestCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	cp := IngestCheckpoint{Stage: "chunking", Total: 10, Processed: 4, Timestamp: time.Now()}
	require.NoError(t, s.SaveIngestCheckpoint(ctx, cp))

	got, err := s.LoadIngestCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cp.Stage, got.Stage)
	assert.Equal(t, cp.Total, got.Total)
	assert.Equal(t, cp.Processed, got.Processed)
}

func TestSQLiteStoreListSessionsAndProjects(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("c1", "proj", "sess-1", 0, model.Clock{"main": 1})
	c2 := sampleChunk("c2", "proj", "sess-1", 1, model.Clock{"main": 2})
	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{c1, c2}))

	sessions, err := s.ListSessions(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].ChunkCount)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "proj", projects[0].Slug)
	assert.Equal(t, 2, projects[0].ChunkCount)
}
