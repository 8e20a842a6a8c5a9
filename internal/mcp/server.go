package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/recallgraph/recallgraph/internal/assemble"
	"github.com/recallgraph/recallgraph/internal/bench"
	"github.com/recallgraph/recallgraph/internal/config"
	"github.com/recallgraph/recallgraph/internal/embed"
	amanerrors "github.com/recallgraph/recallgraph/internal/errors"
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/search"
	"github.com/recallgraph/recallgraph/internal/store"
	"github.com/recallgraph/recallgraph/pkg/version"
)

// Server is the MCP server for recallgraph. It bridges AI clients (Claude
// Code, Cursor) with the episodic memory store: search, recall, predict,
// reconstruct, and project/session bookkeeping (spec.md §6). Unlike the
// teacher's Server, which holds one long-lived search.SearchEngine bound to
// a single indexed project, recallgraph serves many projects from one
// process, so retrieval dependencies are held unassembled (Deps) and an
// Assembler is built fresh per call, scoped to the request's project
// (internal/assemble.New).
type Server struct {
	mcp *mcp.Server

	deps     assemble.Deps
	embedder embed.Embedder
	config   *config.Config
	logger   *slog.Logger
	rec      *bench.Recorder

	defaultProject string

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server over the given stores. defaultProject is
// used when a tool call omits its project field.
func NewServer(metadata store.MetadataStore, vectors store.VectorStore, lexical store.BM25Index, embedder embed.Embedder, cfg *config.Config, defaultProject string) (*Server, error) {
	if metadata == nil {
		return nil, errors.New("metadata store is required")
	}
	if vectors == nil {
		return nil, errors.New("vector store is required")
	}
	if lexical == nil {
		return nil, errors.New("lexical index is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		deps: assemble.Deps{
			Metadata: metadata,
			Vectors:  vectors,
			Lexical:  lexical,
			Embedder: embedder,
			Config:   cfg,
		},
		embedder:       embedder,
		config:         cfg,
		defaultProject: defaultProject,
		logger:         slog.Default(),
		// No persistent telemetry store is wired yet: MetadataStore doesn't
		// expose the *sql.DB a SQLiteMetricsStore would share, so the
		// recorder only accumulates for this process's lifetime.
		rec: bench.NewRecorder(nil),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "recallgraph",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "recallgraph", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search", Description: "Flat hybrid search over memory: vector, keyword, cluster, and causal-graph agreement, fused and diversified. Returns a ranked chunk list with no chain assembly."},
		{Name: "recall", Description: "What led to this: searches memory, then walks the causal graph backward from the best-matching chunks to assemble a chronological chain of what happened before. Falls back to a flat search result when no chain qualifies."},
		{Name: "predict", Description: "What followed: the forward counterpart of recall. Walks the causal graph forward from the best-matching context to assemble what happened next."},
		{Name: "reconstruct", Description: "Reassembles a chronological window of a project's memory by session id, absolute time range, days-back, or the session immediately before a given one. No vector or graph machinery involved."},
		{Name: "listProjects", Description: "Lists every project tag with memory recorded, with chunk counts and first/last-seen times."},
		{Name: "listSessions", Description: "Lists every session recorded for a project, with chunk counts and time bounds."},
		{Name: "forget", Description: "Deletes a project's memory, or one session within it: chunks, their embeddings, and any edges or cluster membership referencing them."},
		{Name: "stats", Description: "Cluster health, retrieval quality, and tuning advice for one project or the whole store. Query latency figures are not included."},
	}
}

// CallTool invokes a tool by name with the given arguments (used by the
// non-typed transport path; the MCP SDK's own dispatch uses the typed
// handlers registered in registerTools).
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, decodeSearchInput(args))
	case "recall":
		return s.handleRecallTool(ctx, decodeRecallInput(args))
	case "predict":
		return s.handlePredictTool(ctx, decodePredictInput(args))
	case "reconstruct":
		return s.handleReconstructTool(ctx, decodeReconstructInput(args))
	case "listProjects":
		return s.handleListProjectsTool(ctx)
	case "listSessions":
		return s.handleListSessionsTool(ctx, decodeListSessionsInput(args))
	case "forget":
		return s.handleForgetTool(ctx, decodeForgetInput(args))
	case "stats":
		return s.handleStatsTool(ctx, decodeStatsInput(args))
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// project resolves an input's project field against the server's default,
// rejecting the call if neither is set.
func (s *Server) project(input string) (string, error) {
	if input != "" {
		return input, nil
	}
	if s.defaultProject != "" {
		return s.defaultProject, nil
	}
	return "", NewInvalidParamsError("project is required (no default project configured)")
}

func (s *Server) handleSearchTool(ctx context.Context, input SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query is required and must not be blank")
	}
	project, err := s.project(input.Project)
	if err != nil {
		return SearchOutput{}, err
	}

	asm, err := assemble.New(ctx, s.deps, project)
	if err != nil {
		return SearchOutput{}, MapError(err)
	}

	start := time.Now()
	resp, err := asm.Search(ctx, input.Query, asm.SearchOptions)
	if err != nil {
		return SearchOutput{}, MapError(err)
	}
	s.rec.RecordSearch(input.Query, len(resp.Chunks), time.Since(start))
	s.rec.RecordQueryEmbedding(resp.QueryEmbedding)

	chunks := resp.Chunks
	if limit := clampLimit(input.Limit, 10, 1, 50); limit < len(chunks) {
		chunks = chunks[:limit]
	}

	return SearchOutput{
		Results:         toChunkResults(chunks),
		TokenCount:      resp.TokenCount,
		SourceBreakdown: resp.SourceBreakdown,
	}, nil
}

func (s *Server) handleRecallTool(ctx context.Context, input RecallInput) (RecallOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return RecallOutput{}, NewInvalidParamsError("query is required and must not be blank")
	}
	project, err := s.project(input.Project)
	if err != nil {
		return RecallOutput{}, err
	}

	asm, err := assemble.New(ctx, s.deps, project)
	if err != nil {
		return RecallOutput{}, MapError(err)
	}
	applyTokenBudget(asm, input.MaxTokens)

	start := time.Now()
	resp, err := asm.Recall(ctx, input.Query, asm.SearchOptions)
	if err != nil {
		return RecallOutput{}, MapError(err)
	}
	s.rec.RecordRecall(input.Query, resp, time.Since(start))
	return toRecallOutput(resp), nil
}

func (s *Server) handlePredictTool(ctx context.Context, input PredictInput) (RecallOutput, error) {
	if strings.TrimSpace(input.Context) == "" {
		return RecallOutput{}, NewInvalidParamsError("context is required and must not be blank")
	}
	project, err := s.project(input.Project)
	if err != nil {
		return RecallOutput{}, err
	}

	asm, err := assemble.New(ctx, s.deps, project)
	if err != nil {
		return RecallOutput{}, MapError(err)
	}
	applyTokenBudget(asm, input.MaxTokens)

	start := time.Now()
	resp, err := asm.Predict(ctx, input.Context, asm.SearchOptions)
	if err != nil {
		return RecallOutput{}, MapError(err)
	}
	s.rec.RecordRecall(input.Context, resp, time.Since(start))
	return toRecallOutput(resp), nil
}

func (s *Server) handleReconstructTool(ctx context.Context, input ReconstructInput) (ReconstructOutput, error) {
	project, err := s.project(input.Project)
	if err != nil {
		return ReconstructOutput{}, err
	}

	asm, err := assemble.New(ctx, s.deps, project)
	if err != nil {
		return ReconstructOutput{}, MapError(err)
	}

	q := assemble.ReconstructQuery{
		Project:           project,
		SessionID:         input.SessionID,
		DaysBack:          input.DaysBack,
		PreviousSessionOf: input.PreviousSessionOf,
		MaxTokens:         input.MaxTokens,
		KeepNewest:        input.KeepNewest,
	}
	if input.From != "" {
		q.From, _ = time.Parse(time.RFC3339, input.From)
	}
	if input.To != "" {
		q.To, _ = time.Parse(time.RFC3339, input.To)
	}

	resp, err := asm.Reconstruct(ctx, q)
	if err != nil {
		return ReconstructOutput{}, MapError(err)
	}

	out := ReconstructOutput{
		Chunks:      toChunkResultsFromModel(resp.Chunks),
		Sessions:    toSessionInfos(resp.Sessions),
		TotalTokens: resp.TotalTokens,
		Truncated:   resp.Truncated,
	}
	if !resp.TimeRange.From.IsZero() {
		out.TimeRange = &TimeRangeInfo{
			From: resp.TimeRange.From.Format(time.RFC3339),
			To:   resp.TimeRange.To.Format(time.RFC3339),
		}
	}
	return out, nil
}

func (s *Server) handleListProjectsTool(ctx context.Context) (ListProjectsOutput, error) {
	projects, err := s.deps.Metadata.ListProjects(ctx)
	if err != nil {
		return ListProjectsOutput{}, MapError(err)
	}
	out := make([]ProjectSummaryInfo, len(projects))
	for i, p := range projects {
		out[i] = ProjectSummaryInfo{
			Slug:       p.Slug,
			ChunkCount: p.ChunkCount,
			FirstSeen:  p.FirstSeen.Format(time.RFC3339),
			LastSeen:   p.LastSeen.Format(time.RFC3339),
		}
	}
	return ListProjectsOutput{Projects: out}, nil
}

func (s *Server) handleListSessionsTool(ctx context.Context, input ListSessionsInput) (ListSessionsOutput, error) {
	project, err := s.project(input.Project)
	if err != nil {
		return ListSessionsOutput{}, err
	}
	sessions, err := s.deps.Metadata.ListSessions(ctx, project)
	if err != nil {
		return ListSessionsOutput{}, MapError(err)
	}
	return ListSessionsOutput{Sessions: toSessionInfos(sessions)}, nil
}

func (s *Server) handleForgetTool(ctx context.Context, input ForgetInput) (ForgetOutput, error) {
	project, err := s.project(input.Project)
	if err != nil {
		return ForgetOutput{}, err
	}

	var ids []string
	if input.SessionID != "" {
		chunks, err := s.deps.Metadata.ListChunksBySession(ctx, project, input.SessionID)
		if err != nil {
			return ForgetOutput{}, MapError(err)
		}
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
	} else {
		sessions, err := s.deps.Metadata.ListSessions(ctx, project)
		if err != nil {
			return ForgetOutput{}, MapError(err)
		}
		for _, sess := range sessions {
			chunks, err := s.deps.Metadata.ListChunksBySession(ctx, project, sess.SessionID)
			if err != nil {
				return ForgetOutput{}, MapError(err)
			}
			for _, c := range chunks {
				ids = append(ids, c.ID)
			}
		}
	}

	if len(ids) == 0 {
		return ForgetOutput{ChunksDeleted: 0}, nil
	}

	if err := s.deps.Metadata.DeleteChunks(ctx, ids); err != nil {
		return ForgetOutput{}, MapError(err)
	}
	if err := s.deps.Vectors.Delete(ctx, ids); err != nil {
		return ForgetOutput{}, MapError(err)
	}
	if err := s.deps.Lexical.Delete(ctx, ids); err != nil {
		return ForgetOutput{}, MapError(err)
	}

	return ForgetOutput{ChunksDeleted: len(ids)}, nil
}

func (s *Server) handleStatsTool(ctx context.Context, input StatsInput) (StatsOutput, error) {
	projects, err := s.deps.Metadata.ListProjects(ctx)
	if err != nil {
		return StatsOutput{}, MapError(err)
	}

	out := StatsOutput{}
	for _, p := range projects {
		if input.Project != "" && p.Slug != input.Project {
			continue
		}
		out.Projects = append(out.Projects, ProjectSummaryInfo{
			Slug:       p.Slug,
			ChunkCount: p.ChunkCount,
			FirstSeen:  p.FirstSeen.Format(time.RFC3339),
			LastSeen:   p.LastSeen.Format(time.RFC3339),
		})
	}

	if s.embedder != nil {
		out.EmbeddingModel = s.embedder.ModelName()
		out.EmbedderReady = s.embedder.Available(ctx)
	}

	report, err := bench.Generate(ctx, s.deps.Metadata, s.deps.Vectors, s.rec, input.Project)
	switch {
	case err == nil:
		out.ClusterHealth = &ClusterHealthInfo{
			ClusterCount:      report.ClusterHealth.ClusterCount,
			ClusteredChunks:   report.ClusterHealth.ClusteredChunks,
			UnclusteredChunks: report.ClusterHealth.UnclusteredChunks,
			AvgClusterSize:    report.ClusterHealth.AvgClusterSize,
			OrphanVectorRatio: report.ClusterHealth.OrphanRatio,
		}
		out.RetrievalQuality = &RetrievalQualityInfo{
			TotalQueries:     report.RetrievalQuality.TotalQueries,
			ZeroResultRate:   report.RetrievalQuality.ZeroResultRate,
			ChainSuccessRate: report.RetrievalQuality.ChainSuccessRate,
			AvgChainLength:   report.RetrievalQuality.AvgChainLength,
		}
		for _, a := range report.Advice {
			out.Advice = append(out.Advice, AdviceInfo{Subject: a.Subject, Message: a.Message})
		}
	case amanerrors.GetCategory(err) == amanerrors.CategoryValidation:
		// Too little data for a meaningful report yet; stats still returns
		// the project/embedder summary above.
	default:
		return StatsOutput{}, MapError(err)
	}

	return out, nil
}

// decodeInput round-trips a generic argument map into a typed tool input
// struct via JSON, used by the untyped CallTool dispatch path (the typed
// mcp.AddTool handlers registered in registerTools decode through the SDK
// instead and never call this).
func decodeInput[T any](args map[string]any) T {
	var out T
	if args == nil {
		return out
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func decodeSearchInput(args map[string]any) SearchInput            { return decodeInput[SearchInput](args) }
func decodeRecallInput(args map[string]any) RecallInput            { return decodeInput[RecallInput](args) }
func decodePredictInput(args map[string]any) PredictInput          { return decodeInput[PredictInput](args) }
func decodeReconstructInput(args map[string]any) ReconstructInput  { return decodeInput[ReconstructInput](args) }
func decodeListSessionsInput(args map[string]any) ListSessionsInput {
	return decodeInput[ListSessionsInput](args)
}
func decodeForgetInput(args map[string]any) ForgetInput { return decodeInput[ForgetInput](args) }
func decodeStatsInput(args map[string]any) StatsInput   { return decodeInput[StatsInput](args) }

// applyTokenBudget overrides an assembler's token budget for one call when
// the caller supplied a positive MaxTokens.
func applyTokenBudget(asm *assemble.Assembler, maxTokens int) {
	if maxTokens <= 0 {
		return
	}
	asm.TokenBudget = maxTokens
	asm.SearchOptions.TokenBudget = maxTokens
}

func toChunkResults(chunks []search.RankedChunk) []ChunkResult {
	out := make([]ChunkResult, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkResult{
			ChunkID:      c.ChunkID,
			Project:      c.Project,
			Preview:      c.Preview,
			StartTime:    c.StartTime.Format(time.RFC3339),
			TokenCount:   c.TokenCount,
			Source:       string(c.Source),
			MatchedTerms: c.MatchedTerms,
		}
	}
	return out
}

func toChunkResultsFromModel(chunks []model.Chunk) []ChunkResult {
	out := make([]ChunkResult, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkResult{
			ChunkID:    c.ID,
			Project:    c.Project,
			Preview:    previewText(c.Text),
			StartTime:  c.StartTime.Format(time.RFC3339),
			TokenCount: c.TokenCount,
		}
	}
	return out
}

func previewText(text string) string {
	const maxChars = 240
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "..."
}

func toSessionInfos(sessions []store.SessionSummary) []SessionInfo {
	out := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = SessionInfo{
			SessionID:      s.SessionID,
			FirstChunkTime: s.FirstChunkTime.Format(time.RFC3339),
			LastChunkTime:  s.LastChunkTime.Format(time.RFC3339),
			ChunkCount:     s.ChunkCount,
			TotalTokens:    s.TotalTokens,
		}
	}
	return out
}

func toRecallOutput(resp assemble.RecallResponse) RecallOutput {
	out := RecallOutput{
		Text:        resp.Text,
		TokenCount:  resp.TokenCount,
		Mode:        string(resp.Mode),
		ChainLength: resp.ChainLength,
	}
	if resp.Diagnostics != nil {
		out.Fallback = &FallbackDiagInfo{
			SearchHits: resp.Diagnostics.SearchHits,
			SeedCount:  resp.Diagnostics.SeedCount,
			Reason:     string(resp.Diagnostics.Reason),
		}
	}
	return out
}

// registerTools registers all tools with the MCP server using the SDK's
// typed schema-inference path.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Flat hybrid search over memory: vector, keyword, cluster, and causal-graph agreement, fused and diversified. Returns a ranked chunk list with no chain assembly.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall",
		Description: "What led to this: searches memory, then walks the causal graph backward to assemble a chronological chain. Falls back to a flat search result when no chain qualifies.",
	}, s.mcpRecallHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "predict",
		Description: "What followed: walks the causal graph forward from the best-matching context to assemble what happened next.",
	}, s.mcpPredictHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reconstruct",
		Description: "Reassembles a chronological window of a project's memory by session id, time range, days-back, or previous-session locator.",
	}, s.mcpReconstructHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "listProjects",
		Description: "Lists every project tag with memory recorded.",
	}, s.mcpListProjectsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "listSessions",
		Description: "Lists every session recorded for a project.",
	}, s.mcpListSessionsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forget",
		Description: "Deletes a project's memory, or one session within it.",
	}, s.mcpForgetHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Cluster health, retrieval quality, and tuning advice. Query latency figures are not included.",
	}, s.mcpStatsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(s.ListTools())))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.handleSearchTool(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpRecallHandler(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	out, err := s.handleRecallTool(ctx, input)
	if err != nil {
		return nil, RecallOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpPredictHandler(ctx context.Context, _ *mcp.CallToolRequest, input PredictInput) (*mcp.CallToolResult, RecallOutput, error) {
	out, err := s.handlePredictTool(ctx, input)
	if err != nil {
		return nil, RecallOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpReconstructHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReconstructInput) (*mcp.CallToolResult, ReconstructOutput, error) {
	out, err := s.handleReconstructTool(ctx, input)
	if err != nil {
		return nil, ReconstructOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpListProjectsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectsInput) (*mcp.CallToolResult, ListProjectsOutput, error) {
	out, err := s.handleListProjectsTool(ctx)
	if err != nil {
		return nil, ListProjectsOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpListSessionsHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	out, err := s.handleListSessionsTool(ctx, input)
	if err != nil {
		return nil, ListSessionsOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpForgetHandler(ctx context.Context, _ *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, ForgetOutput, error) {
	out, err := s.handleForgetTool(ctx, input)
	if err != nil {
		return nil, ForgetOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	out, err := s.handleStatsTool(ctx, input)
	if err != nil {
		return nil, StatsOutput{}, MapError(err)
	}
	return nil, out, nil
}

// ListResources returns all available resources. recallgraph only exposes
// chunk:// resources, resolved on demand — there is no file tree to
// enumerate up front, so this always returns an empty list; clients read a
// chunk they already have the id for (e.g. from a search/recall result).
func (s *Server) ListResources(ctx context.Context, cursor string) ([]ResourceInfo, string, error) {
	return nil, "", nil
}

// ReadResource reads a chunk:// resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	result, err := s.readChunkResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	if len(result.Contents) == 0 {
		return nil, NewResourceNotFoundError(uri)
	}
	c := result.Contents[0]
	return &ResourceContent{URI: c.URI, Content: c.Text, MIMEType: c.MIMEType}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return s.rec.Close()
}

