package assemble

import (
	"context"

	"github.com/recallgraph/recallgraph/internal/chain"
	"github.com/recallgraph/recallgraph/internal/search"
	"github.com/recallgraph/recallgraph/internal/store"
)

// nodeLookup adapts the metadata and vector stores to chain.NodeLookup,
// binding a request's context for the duration of one Walk call (spec.md §5:
// retrieval is single-threaded per request).
type nodeLookup struct {
	ctx      context.Context
	metadata store.MetadataStore
	vectors  store.VectorStore
}

func (l *nodeLookup) Lookup(chunkID string) (chain.NodeInfo, bool) {
	c, err := l.metadata.GetChunk(l.ctx, chunkID)
	if err != nil || c == nil {
		return chain.NodeInfo{}, false
	}
	vec, _ := l.vectors.Get(chunkID)
	return chain.NodeInfo{TokenCount: c.TokenCount, Embedding: vec}, true
}

// metadataLookup adapts the metadata and vector stores to
// search.MetadataLookup, used to hydrate RankedChunk fields the engine's own
// lookup may not have filled (e.g. when assembling a chain response from ids
// the search pass never ranked).
type metadataLookup struct {
	ctx      context.Context
	metadata store.MetadataStore
	vectors  store.VectorStore
}

func (l *metadataLookup) Lookup(chunkID string) (search.ChunkMetadata, bool) {
	c, err := l.metadata.GetChunk(l.ctx, chunkID)
	if err != nil || c == nil {
		return search.ChunkMetadata{}, false
	}
	vec, _ := l.vectors.Get(chunkID)
	return search.ChunkMetadata{
		Preview:    preview(c.Text),
		Project:    c.Project,
		TokenCount: c.TokenCount,
		Vector:     vec,
	}, true
}

func preview(text string) string {
	const maxPreviewChars = 240
	if len(text) <= maxPreviewChars {
		return text
	}
	return text[:maxPreviewChars] + "..."
}
