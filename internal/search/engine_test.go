package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorSearcher struct{ hits []VectorHit }

func (f *fakeVectorSearcher) Search(ctx context.Context, query []float32, k int, project string) ([]VectorHit, error) {
	return f.hits, nil
}

type fakeKeywordSearcher struct{ hits []KeywordHit }

func (f *fakeKeywordSearcher) Search(ctx context.Context, query string, limit int, project string) ([]KeywordHit, error) {
	return f.hits, nil
}

type fakeMetadataLookup struct{ byID map[string]ChunkMetadata }

func (f *fakeMetadataLookup) Lookup(chunkID string) (ChunkMetadata, bool) {
	m, ok := f.byID[chunkID]
	return m, ok
}

func TestEngineSearchFusesVectorAndKeywordResults(t *testing.T) {
	e := &Engine{
		Vector:  &fakeVectorSearcher{hits: []VectorHit{{ChunkID: "a", Distance: 0.1}, {ChunkID: "b", Distance: 0.3}}},
		Keyword: &fakeKeywordSearcher{hits: []KeywordHit{{ChunkID: "b", Score: 5}, {ChunkID: "c", Score: 2}}},
		Metadata: &fakeMetadataLookup{byID: map[string]ChunkMetadata{
			"a": {Preview: "a text", TokenCount: 10},
			"b": {Preview: "b text", TokenCount: 10},
			"c": {Preview: "c text", TokenCount: 10},
		}},
	}

	opts := DefaultOptions()
	opts.TokenBudget = 1000
	resp, err := e.Search(context.Background(), []float32{1, 0}, "query", opts)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Chunks)

	ids := make(map[string]bool)
	for _, c := range resp.Chunks {
		ids[c.ChunkID] = true
	}
	assert.True(t, ids["a"] && ids["b"] && ids["c"])
}

func TestEngineSearchPopulatesSeedSet(t *testing.T) {
	e := &Engine{
		Vector: &fakeVectorSearcher{hits: []VectorHit{{ChunkID: "a"}, {ChunkID: "b"}}},
		Metadata: &fakeMetadataLookup{byID: map[string]ChunkMetadata{
			"a": {TokenCount: 5}, "b": {TokenCount: 5},
		}},
	}
	opts := DefaultOptions()
	opts.TokenBudget = 1000
	opts.SeedSetSize = 1
	resp, err := e.Search(context.Background(), nil, "", opts)
	require.NoError(t, err)
	assert.Len(t, resp.SeedSet, 1)
}

func TestEngineSearchWithNoSourcesReturnsEmpty(t *testing.T) {
	e := &Engine{}
	resp, err := e.Search(context.Background(), nil, "", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, resp.Chunks)
}
