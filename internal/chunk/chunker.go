// Package chunk renders transcript turns and packs them into retrievable,
// clock-stamped chunks per spec.md §4.2 C2. Adapted from the teacher's
// internal/chunk package: the render->pack->split pipeline and tree-sitter-
// assisted oversized-block splitting are kept, generalized from "split a
// source file into symbol-bounded chunks" to "split a turn sequence into
// section-bounded chunks".
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/parser"
)

// Options configures the chunker (spec.md §4.2 "Contract").
type Options struct {
	MaxChunkTokens  int
	MinChunkTokens  int
	IncludeThinking bool
}

// DefaultOptions returns the teacher's size defaults.
func DefaultOptions() Options {
	return Options{
		MaxChunkTokens:  DefaultMaxChunkTokens,
		MinChunkTokens:  MinChunkTokens,
		IncludeThinking: true,
	}
}

// Chunker packs an ordered turn sequence into chunks, advancing a vector
// clock as it goes.
type Chunker struct {
	registry *LanguageRegistry
	opts     Options
}

// New creates a Chunker with the given options (zero-value Options falls
// back to DefaultOptions's thresholds where unset).
func New(opts Options) *Chunker {
	if opts.MaxChunkTokens <= 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if opts.MinChunkTokens <= 0 {
		opts.MinChunkTokens = MinChunkTokens
	}
	return &Chunker{registry: DefaultRegistry(), opts: opts}
}

// Chunk renders and packs turns into an ordered chunk sequence, returning
// the final vector clock after processing every turn (spec.md §4.2
// "Contract" / "Clock advancement").
func (c *Chunker) Chunk(ctx context.Context, turns []parser.Turn, sessionID, project string, startClock model.Clock, agentID string, spawnDepth int) ([]model.Chunk, model.Clock, error) {
	if startClock == nil {
		startClock = model.Clock{}
	}
	if agentID == "" {
		agentID = model.AgentMain
	}

	perTurnClock := make([]model.Clock, len(turns))
	rendered := make([]RenderedTurn, len(turns))

	cur := startClock
	for i, t := range turns {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		cur = AdvanceClock(cur, t, agentID)
		perTurnClock[i] = cur
		rendered[i] = RenderTurn(t, c.opts.IncludeThinking)
	}

	groups := Pack(rendered, c.opts.MaxChunkTokens, c.opts.MinChunkTokens, c.registry)

	chunks := make([]model.Chunk, 0, len(groups))
	now := time.Now().UTC()
	for ordinal, g := range groups {
		lastTurn := g.TurnIndices[len(g.TurnIndices)-1]
		firstTurn := g.TurnIndices[0]

		chunks = append(chunks, model.Chunk{
			ID:          chunkID(sessionID, ordinal),
			Text:        g.Text,
			TokenCount:  g.TokenCount,
			Project:     project,
			SessionID:   sessionID,
			AgentID:     agentID,
			SpawnDepth:  spawnDepth,
			StartTime:   turns[firstTurn].StartTime,
			EndTime:     turns[lastTurn].StartTime,
			CodeBlocks:  g.CodeBlocks,
			ToolUses:    g.ToolUses,
			HasThinking: g.HasThinking,
			TurnIndices: g.TurnIndices,
			Clock:       perTurnClock[lastTurn],
			CreatedAt:   now,
		})
	}

	return chunks, cur, nil
}

// chunkID is deterministic given (session id, ordinal) per spec.md §4.2
// "Failure semantics".
func chunkID(sessionID string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sessionID, ordinal)))
	return hex.EncodeToString(sum[:])[:16]
}
