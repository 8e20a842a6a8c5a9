// Package assemble implements the C8 response assemblers (spec.md §4.8):
// recall, predict, search, and the C9 session reconstructor (spec.md §4.9).
// It is the layer that turns the hybrid search engine (internal/search) and
// the causal chain walker (internal/chain) into the text/chunk payloads the
// MCP tool surface and CLI return to a caller. There is no teacher analog —
// amanmcp's MCP handlers format search.SearchResult directly — so response
// shaping here is grounded on internal/mcp/format.go's budget-aware
// truncation style, generalized from "format one flat result list" to
// "format either a flat list or a formatted chain, whichever the walk
// produces".
package assemble

import (
	"time"

	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/search"
	"github.com/recallgraph/recallgraph/internal/store"
)

// Mode reports how a recall/predict response was produced (spec.md §6).
type Mode string

const (
	ModeChain          Mode = "chain"
	ModeSearchFallback Mode = "search-fallback"
)

// FallbackReason is the closed set of reasons recall/predict fall through to
// a flat search response instead of a formatted chain (spec.md §7).
type FallbackReason string

const (
	// FallbackNoMatches means the underlying search itself returned nothing.
	FallbackNoMatches FallbackReason = "No matching chunks in memory"
	// FallbackNoSeeds means search succeeded but its seed set was empty.
	FallbackNoSeeds FallbackReason = "Search found chunks but none suitable as chain seeds"
	// FallbackNoEdges means every seed had no causal edges to walk.
	FallbackNoEdges FallbackReason = "No edges found from seed chunks"
	FallbackTooShort FallbackReason = "All chains had only 1 chunk (minimum 2 required)"
	// FallbackThreshold means a chain was found but its median score failed
	// the qualifying-threshold gate.
	FallbackThreshold FallbackReason = "No chain met the qualifying threshold"
)

// Diagnostics reports why recall/predict fell back to a flat search response
// (spec.md §4.8 "diagnostics {search hits, seed count, chains attempted,
// chain lengths, reason}").
type Diagnostics struct {
	SearchHits      int
	SeedCount       int
	ChainsAttempted int
	ChainLengths    []int
	Reason          FallbackReason
}

// SearchResponse is search()'s flat response shape (spec.md §6): no mode,
// since a plain search has no fallback to report.
type SearchResponse struct {
	Chunks          []search.RankedChunk
	TokenCount      int
	SourceBreakdown map[string]int
	QueryEmbedding  []float32
}

// RecallResponse is recall()/predict()'s shared response shape (spec.md §6).
type RecallResponse struct {
	Text        string
	TokenCount  int
	Chunks      []search.RankedChunk
	Mode        Mode
	ChainLength int
	Diagnostics *Diagnostics
}

// TimeRange is an inclusive [From, To] window, used by reconstruct().
type TimeRange struct {
	From time.Time
	To   time.Time
}

// ReconstructResponse is reconstruct()'s response shape (spec.md §4.9/§6).
type ReconstructResponse struct {
	Chunks      []model.Chunk
	Sessions    []store.SessionSummary
	TotalTokens int
	Truncated   bool
	TimeRange   TimeRange
}

// ReconstructQuery selects the chunk range reconstruct() assembles, by
// exactly one of its locator fields (spec.md §4.9 "Given a project tag and
// one of {session id; absolute from/to; days-back; previous session
// relative to current}").
type ReconstructQuery struct {
	Project string

	SessionID string

	From time.Time
	To   time.Time

	DaysBack int

	// PreviousSessionOf, when set, reconstructs the session chronologically
	// preceding this one within the project.
	PreviousSessionOf string

	MaxTokens int
	// KeepNewest selects which end of the window the token budget is
	// applied from: true trims from the oldest end, keeping the newest
	// chunks; false trims from the newest end (spec.md §4.9 "Applies the
	// same token budget either from newest back or from oldest forward,
	// depending on a flag").
	KeepNewest bool
}
