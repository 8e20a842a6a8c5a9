// Package graph builds and walks the causal edge graph between chunks
// (spec.md C4): within-chain, cross-session, brief/debrief, and team-topology
// edges, plus the sum-product weighted traversal used by chain walking and
// benchmarking.
//
// Edge construction here is deliberately pure: given chunk ids, a kind, and
// the vector clock at creation, these functions return model.Edge values.
// Nothing here touches storage — the caller (the ingest pipeline) is
// responsible for the "at most one stored edge per (source,target,kind)"
// invariant and for incrementing link count on re-detection, which this
// package exposes as MergeEdge.
package graph

import (
	"time"

	"github.com/recallgraph/recallgraph/internal/model"
)

// Key identifies the unique-edge slot (source, target, kind) per spec.md §3.
type Key struct {
	Source string
	Target string
	Kind   model.EdgeKind
}

func KeyOf(e model.Edge) Key {
	return Key{Source: e.Source, Target: e.Target, Kind: e.Kind}
}

// NewEdge constructs an edge of the given kind with its default initial
// weight, stamped with the clock at creation.
func NewEdge(source, target string, kind model.EdgeKind, clk model.Clock, refType model.RefType, createdAt time.Time) model.Edge {
	return model.Edge{
		Source:    source,
		Target:    target,
		Kind:      kind,
		Weight:    kind.InitialWeight(),
		LinkCount: 1,
		Clock:     clk.Clone(),
		RefType:   refType,
		CreatedAt: createdAt,
	}
}

// MergeEdge implements re-detection of an identical logical edge: the link
// count increments and the clock is refreshed to the most recent, but the
// initial weight and creation time are left untouched (spec.md §3: "link
// count... increments when an identical logical edge is re-detected").
func MergeEdge(existing model.Edge, redetected model.Edge) model.Edge {
	existing.LinkCount++
	if redetected.Clock.Dominates(existing.Clock) {
		existing.Clock = redetected.Clock.Clone()
	}
	return existing
}

// WithinChainEdges links consecutive chunks of the same session in turn
// order (spec.md §4.4, created always during ingest). chunks must already be
// in turn/ordinal order for a single session.
func WithinChainEdges(chunks []model.Chunk, now time.Time) []model.Edge {
	edges := make([]model.Edge, 0, len(chunks))
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		edges = append(edges, NewEdge(prev.ID, cur.ID, model.EdgeWithinChain, cur.Clock, model.RefTypeNone, now))
	}
	return edges
}

// ContinuationPrefixes are the opening phrases that mark a new session as a
// continuation of a previous one (spec.md §8 scenario 2).
var ContinuationPrefixes = []string{
	"This session is being continued from a previous conversation",
	"This conversation is continued from",
}

// IsContinuationOpening reports whether text begins with a recognized
// continuation marker.
func IsContinuationOpening(text string) bool {
	for _, p := range ContinuationPrefixes {
		if hasPrefixFold(text, p) {
			return true
		}
	}
	return false
}

// CrossSessionEdge builds the edge linking the last chunk of a previous
// session to the first chunk of a new session, when the new session's
// opening is a recognized continuation (spec.md §4.4). Returns ok=false when
// the opening does not match.
func CrossSessionEdge(lastOfPrevious model.Chunk, firstOfNew model.Chunk, now time.Time) (model.Edge, bool) {
	if !IsContinuationOpening(firstOfNew.Text) {
		return model.Edge{}, false
	}
	return NewEdge(lastOfPrevious.ID, firstOfNew.ID, model.EdgeCrossSession, firstOfNew.Clock, model.RefTypeTopicContinuation, now), true
}

// BriefEdge links a parent chunk to the first chunk of a spawned sub-agent
// (spec.md §4.4, created when a brief point is detected).
func BriefEdge(parentChunkID, firstSubAgentChunkID string, clk model.Clock, now time.Time) model.Edge {
	return NewEdge(parentChunkID, firstSubAgentChunkID, model.EdgeBrief, clk, model.RefTypeNone, now)
}

// DebriefEdge links the last chunk of a sub-agent back to the parent at
// return (spec.md §4.4, created when a debrief point is detected).
func DebriefEdge(lastSubAgentChunkID, parentChunkID string, clk model.Clock, now time.Time) model.Edge {
	return NewEdge(lastSubAgentChunkID, parentChunkID, model.EdgeDebrief, clk, model.RefTypeNone, now)
}

// TeamSpawnEdge links a team coordinator chunk to a teammate's first chunk.
func TeamSpawnEdge(coordinatorChunkID, teammateFirstChunkID string, clk model.Clock, now time.Time) model.Edge {
	return NewEdge(coordinatorChunkID, teammateFirstChunkID, model.EdgeTeamSpawn, clk, model.RefTypeNone, now)
}

// TeamReportEdge links a teammate's last chunk back to the coordinator.
func TeamReportEdge(teammateLastChunkID, coordinatorChunkID string, clk model.Clock, now time.Time) model.Edge {
	return NewEdge(teammateLastChunkID, coordinatorChunkID, model.EdgeTeamReport, clk, model.RefTypeNone, now)
}

// PeerMessageEdge links the chunk covering a send-message call from one
// teammate to the chunk covering the message's receipt by another.
func PeerMessageEdge(senderChunkID, receiverChunkID string, clk model.Clock, now time.Time) model.Edge {
	return NewEdge(senderChunkID, receiverChunkID, model.EdgePeerMessage, clk, model.RefTypeNone, now)
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
