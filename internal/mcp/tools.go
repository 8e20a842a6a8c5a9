package mcp

// SearchInput defines the input schema for the search tool (spec.md §6
// "search"): a flat hybrid-ranked list of chunks, never assembled into a
// chain.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"the query to search memory for"`
	Project string `json:"project,omitempty" jsonschema:"restrict results to this project tag"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return, default 10"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results         []ChunkResult  `json:"results"`
	TokenCount      int            `json:"token_count"`
	SourceBreakdown map[string]int `json:"source_breakdown" jsonschema:"count of results credited to each retrieval channel"`
}

// ChunkResult is one memory chunk as surfaced to an MCP client.
type ChunkResult struct {
	ChunkID      string   `json:"chunk_id"`
	Project      string   `json:"project"`
	Preview      string   `json:"preview"`
	StartTime    string   `json:"start_time"`
	TokenCount   int      `json:"token_count"`
	Source       string   `json:"source,omitempty" jsonschema:"which retrieval channel surfaced this chunk: vector, keyword, cluster, or graph"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// RecallInput defines the input schema for the recall tool (spec.md §4.8
// "what led to this"): a backward causal chain walk seeded from a search.
type RecallInput struct {
	Query     string `json:"query" jsonschema:"describe what you're trying to recall"`
	Project   string `json:"project,omitempty" jsonschema:"restrict to this project tag"`
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"response token budget, default from config"`
}

// PredictInput defines the input schema for the predict tool (spec.md §4.8
// "what followed"): a forward causal chain walk.
type PredictInput struct {
	Context   string `json:"context" jsonschema:"describe the current context to predict forward from"`
	Project   string `json:"project,omitempty" jsonschema:"restrict to this project tag"`
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"response token budget, default from config"`
}

// RecallOutput defines the shared output schema for the recall and predict
// tools.
type RecallOutput struct {
	Text        string            `json:"text"`
	TokenCount  int               `json:"token_count"`
	Mode        string            `json:"mode" jsonschema:"chain or search-fallback"`
	ChainLength int               `json:"chain_length,omitempty"`
	Fallback    *FallbackDiagInfo `json:"fallback,omitempty"`
}

// FallbackDiagInfo surfaces why a recall/predict call fell back to a flat
// search response instead of an assembled chain (spec.md §4.8
// "diagnostics").
type FallbackDiagInfo struct {
	SearchHits int    `json:"search_hits"`
	SeedCount  int    `json:"seed_count"`
	Reason     string `json:"reason"`
}

// ReconstructInput defines the input schema for the reconstruct tool
// (spec.md §4.9 C9). Exactly one locator should be set: SessionID, From/To,
// DaysBack, or PreviousSessionOf.
type ReconstructInput struct {
	Project           string `json:"project" jsonschema:"the project tag to reconstruct a window from"`
	SessionID         string `json:"session_id,omitempty" jsonschema:"reconstruct exactly this session"`
	From              string `json:"from,omitempty" jsonschema:"RFC3339 start of an absolute time range"`
	To                string `json:"to,omitempty" jsonschema:"RFC3339 end of an absolute time range"`
	DaysBack          int    `json:"days_back,omitempty" jsonschema:"reconstruct sessions touched within the last N days"`
	PreviousSessionOf string `json:"previous_session_of,omitempty" jsonschema:"reconstruct the session immediately before this one"`
	MaxTokens         int    `json:"max_tokens,omitempty" jsonschema:"response token budget, default from config"`
	KeepNewest        bool   `json:"keep_newest,omitempty" jsonschema:"when truncating, keep the newest chunks instead of the oldest"`
}

// ReconstructOutput defines the output schema for the reconstruct tool.
type ReconstructOutput struct {
	Chunks      []ChunkResult  `json:"chunks"`
	Sessions    []SessionInfo  `json:"sessions"`
	TotalTokens int            `json:"total_tokens"`
	Truncated   bool           `json:"truncated"`
	TimeRange   *TimeRangeInfo `json:"time_range,omitempty"`
}

// TimeRangeInfo reports the chronological span actually returned.
type TimeRangeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SessionInfo summarizes one session.
type SessionInfo struct {
	SessionID      string `json:"session_id"`
	FirstChunkTime string `json:"first_chunk_time"`
	LastChunkTime  string `json:"last_chunk_time"`
	ChunkCount     int    `json:"chunk_count"`
	TotalTokens    int    `json:"total_tokens"`
}

// ListProjectsInput defines the input schema for the listProjects tool (no
// parameters).
type ListProjectsInput struct{}

// ListProjectsOutput defines the output schema for the listProjects tool.
type ListProjectsOutput struct {
	Projects []ProjectSummaryInfo `json:"projects"`
}

// ProjectSummaryInfo summarizes one project tag's memory footprint.
type ProjectSummaryInfo struct {
	Slug       string `json:"slug"`
	ChunkCount int    `json:"chunk_count"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
}

// ListSessionsInput defines the input schema for the listSessions tool.
type ListSessionsInput struct {
	Project string `json:"project" jsonschema:"the project tag to list sessions for"`
}

// ListSessionsOutput defines the output schema for the listSessions tool.
type ListSessionsOutput struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ForgetInput defines the input schema for the forget tool (spec.md §6
// "forget"): deletes chunks, their embeddings, and any edges/cluster
// membership referencing them.
type ForgetInput struct {
	Project   string `json:"project" jsonschema:"the project tag to forget from"`
	SessionID string `json:"session_id,omitempty" jsonschema:"forget only this session; omit to forget the whole project"`
}

// ForgetOutput defines the output schema for the forget tool.
type ForgetOutput struct {
	ChunksDeleted int `json:"chunks_deleted"`
}

// StatsInput defines the input schema for the stats tool (spec.md C10).
type StatsInput struct {
	Project string `json:"project,omitempty" jsonschema:"restrict stats to this project tag; omit for all projects"`
}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	Projects         []ProjectSummaryInfo     `json:"projects"`
	EmbeddingModel   string                   `json:"embedding_model"`
	EmbedderReady    bool                     `json:"embedder_ready"`
	ClusterHealth    *ClusterHealthInfo       `json:"cluster_health,omitempty" jsonschema:"omitted when too few chunks have been ingested for a meaningful report"`
	RetrievalQuality *RetrievalQualityInfo    `json:"retrieval_quality,omitempty"`
	Advice           []AdviceInfo             `json:"advice,omitempty" jsonschema:"tuning suggestions derived from cluster health and retrieval quality"`
}

// ClusterHealthInfo reports cluster-expansion coverage (spec.md §2 C10).
type ClusterHealthInfo struct {
	ClusterCount      int     `json:"cluster_count"`
	ClusteredChunks   int     `json:"clustered_chunks"`
	UnclusteredChunks int     `json:"unclustered_chunks"`
	AvgClusterSize    float64 `json:"avg_cluster_size"`
	OrphanVectorRatio float64 `json:"orphan_vector_ratio"`
}

// RetrievalQualityInfo reports recall/predict/search quality signals
// accumulated since the process started (spec.md §2 C10).
type RetrievalQualityInfo struct {
	TotalQueries     int64   `json:"total_queries"`
	ZeroResultRate   float64 `json:"zero_result_rate"`
	ChainSuccessRate float64 `json:"chain_success_rate"`
	AvgChainLength   float64 `json:"avg_chain_length"`
}

// AdviceInfo is one tuning suggestion surfaced by the stats tool.
type AdviceInfo struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}
