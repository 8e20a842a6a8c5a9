package assemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/search"
	"github.com/recallgraph/recallgraph/internal/store"
)

// fakeStore embeds a nil MetadataStore so only the methods assemble.go
// actually exercises need overriding; calling anything else would panic,
// which is the point — it flags a test relying on unimplemented behavior.
type fakeStore struct {
	store.MetadataStore
	chunks    map[string]model.Chunk
	edgesFrom map[string][]model.Edge
	edgesTo   map[string][]model.Edge
	sessions  []store.SessionSummary
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks:    map[string]model.Chunk{},
		edgesFrom: map[string][]model.Edge{},
		edgesTo:   map[string][]model.Edge{},
	}
}

func (f *fakeStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	if c, ok := f.chunks[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) GetChunks(ctx context.Context, ids []string) ([]model.Chunk, error) {
	var out []model.Chunk
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListChunksBySession(ctx context.Context, project, sessionID string) ([]model.Chunk, error) {
	var out []model.Chunk
	for _, c := range f.chunks {
		if c.Project == project && c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSessions(ctx context.Context, project string) ([]store.SessionSummary, error) {
	return f.sessions, nil
}

func (f *fakeStore) EdgesFrom(ctx context.Context, id string) ([]model.Edge, error) {
	return f.edgesFrom[id], nil
}

func (f *fakeStore) EdgesTo(ctx context.Context, id string) ([]model.Edge, error) {
	return f.edgesTo[id], nil
}

type fakeVectors struct {
	store.VectorStore
	vecs map[string][]float32
}

func (f *fakeVectors) Get(id string) ([]float32, bool) {
	v, ok := f.vecs[id]
	return v, ok
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestAssembler(ms *fakeStore, vs *fakeVectors) *Assembler {
	engine := &search.Engine{Metadata: &metadataLookup{ctx: context.Background(), metadata: ms, vectors: vs}}
	return &Assembler{
		Engine:           engine,
		Edges:            ms,
		Metadata:         ms,
		Vectors:          vs,
		Embedder:         fakeEmbedder{},
		MaxDepth:         10,
		QualifyThreshold: 0,
		TokenBudget:      10000,
		SearchOptions:    search.DefaultOptions(),
	}
}

func TestRecallFallsBackWhenSearchFindsNothing(t *testing.T) {
	a := newTestAssembler(newFakeStore(), &fakeVectors{vecs: map[string][]float32{}})
	resp, err := a.Recall(context.Background(), "anything", a.SearchOptions)
	require.NoError(t, err)
	assert.Equal(t, ModeSearchFallback, resp.Mode)
	require.NotNil(t, resp.Diagnostics)
	assert.Equal(t, FallbackNoMatches, resp.Diagnostics.Reason)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	a := newTestAssembler(newFakeStore(), &fakeVectors{vecs: map[string][]float32{}})
	_, err := a.Search(context.Background(), "", a.SearchOptions)
	assert.Error(t, err)
}

func TestReconstructBySessionID(t *testing.T) {
	ms := newFakeStore()
	now := time.Now()
	ms.chunks["c1"] = model.Chunk{ID: "c1", Project: "proj", SessionID: "s1", Text: "one", TokenCount: 3, StartTime: now, EndTime: now}
	ms.chunks["c2"] = model.Chunk{ID: "c2", Project: "proj", SessionID: "s1", Text: "two", TokenCount: 3, StartTime: now.Add(time.Minute), EndTime: now.Add(time.Minute)}
	ms.sessions = []store.SessionSummary{{SessionID: "s1", FirstChunkTime: now, LastChunkTime: now.Add(time.Minute), ChunkCount: 2, TotalTokens: 6}}

	a := newTestAssembler(ms, &fakeVectors{vecs: map[string][]float32{}})
	resp, err := a.Reconstruct(context.Background(), ReconstructQuery{Project: "proj", SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, "c1", resp.Chunks[0].ID)
	assert.Equal(t, 6, resp.TotalTokens)
	assert.False(t, resp.Truncated)
}

func TestReconstructRequiresLocator(t *testing.T) {
	ms := newFakeStore()
	a := newTestAssembler(ms, &fakeVectors{vecs: map[string][]float32{}})
	_, err := a.Reconstruct(context.Background(), ReconstructQuery{Project: "proj"})
	assert.Error(t, err)
}

func TestBudgetWindowKeepsNewestWhenFlagSet(t *testing.T) {
	now := time.Now()
	chunks := []model.Chunk{
		{ID: "a", TokenCount: 5, StartTime: now, EndTime: now},
		{ID: "b", TokenCount: 5, StartTime: now.Add(time.Minute), EndTime: now.Add(time.Minute)},
		{ID: "c", TokenCount: 5, StartTime: now.Add(2 * time.Minute), EndTime: now.Add(2 * time.Minute)},
	}
	selected, truncated, total := budgetWindow(chunks, 10, true)
	require.Len(t, selected, 2)
	assert.Equal(t, "b", selected[0].ID)
	assert.Equal(t, "c", selected[1].ID)
	assert.True(t, truncated)
	assert.Equal(t, 10, total)
}
