package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// chunkURIPrefix is the scheme recallgraph uses for memory chunk resources,
// e.g. chunk://myproject/c_0193a1. Unlike the teacher, which enumerates its
// bounded source tree into AddResource calls up front, memory chunk volume
// is unbounded and grows continuously, so recallgraph resolves chunk
// resources lazily through ReadResource/readChunkResource instead of
// pre-registering one per chunk.
const chunkURIPrefix = "chunk://"

// readChunkResource resolves a chunk:// URI to its stored text.
func (s *Server) readChunkResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	rest := strings.TrimPrefix(uri, chunkURIPrefix)
	if rest == uri {
		return nil, NewInvalidParamsError(fmt.Sprintf("unsupported resource scheme: %s", uri))
	}

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, NewInvalidParamsError(fmt.Sprintf("malformed chunk resource URI: %s", uri))
	}
	chunkID := parts[1]

	chunk, err := s.deps.Metadata.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, MapError(err)
	}
	if chunk == nil {
		return nil, NewResourceNotFoundError(uri)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/plain",
				Text:     chunk.Text,
			},
		},
	}, nil
}
