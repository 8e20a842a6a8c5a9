// Package ingest drives spec.md §6's batchIngest orchestration: parsing (C1),
// chunking (C2), topology detection (C3), edge materialization (C4), and
// storage across the metadata, vector, and lexical stores, for a batch of
// transcript session files. There is no single teacher analog — amanmcp's
// internal/index.Runner drives an analogous scan->chunk->embed->index
// pipeline for source files, and this package follows the same
// Dependencies/Config/Result/stage-timing shape, generalized from "project
// root" to "a batch of session paths" (spec.md §4.1-§4.4, §6).
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/recallgraph/recallgraph/internal/chunk"
	"github.com/recallgraph/recallgraph/internal/cluster"
	"github.com/recallgraph/recallgraph/internal/embed"
	"github.com/recallgraph/recallgraph/internal/graph"
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/store"
	"github.com/recallgraph/recallgraph/internal/ui"
)

// Dependencies are the stores and services the driver writes through.
// Renderer is optional; a nil renderer means run silently (spec.md §6
// batchIngest is also called headlessly from the MCP server, not just the
// CLI, so progress reporting cannot be mandatory the way the teacher's
// interactive Runner requires it).
type Dependencies struct {
	Metadata store.MetadataStore
	Vectors  store.VectorStore
	Lexical  store.BM25Index
	Embedder embed.Embedder
	Renderer ui.Renderer

	ChunkOptions   chunk.Options
	ClusterOptions cluster.Config
}

// Options configures one batchIngest call (spec.md §6 "batchIngest(session
// paths[], opts)").
type Options struct {
	Project string
	// Recluster runs the batch clustering pass (C5) after ingest. Callers
	// doing a large multi-session backfill may want to defer reclustering
	// to a separate explicit call instead of paying it per batch.
	Recluster bool
}

// SessionResult reports what happened to one session file.
type SessionResult struct {
	SessionID string
	Path      string
	Skipped   bool // already fully ingested
	Chunks    int
	Err       error
}

// Result is the outcome of a batchIngest call.
type Result struct {
	Sessions      []SessionResult
	ChunksIndexed int
	ClustersBuilt int
	Duration      time.Duration
}

// Driver runs batchIngest over a set of dependencies.
type Driver struct {
	deps    Dependencies
	chunker *chunk.Chunker
}

// NewDriver builds a Driver; a zero-value ChunkOptions/ClusterOptions in deps
// falls back to each package's own defaults.
func NewDriver(deps Dependencies) (*Driver, error) {
	if deps.Metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if deps.Lexical == nil {
		return nil, fmt.Errorf("lexical index is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.ClusterOptions == (cluster.Config{}) {
		deps.ClusterOptions = cluster.DefaultConfig()
	}
	return &Driver{deps: deps, chunker: chunk.New(deps.ChunkOptions)}, nil
}

// stateKey namespaces a session's completion marker by project, so the same
// session file name in two different projects doesn't collide (spec.md §5
// "already-fully-present session skipped").
func stateKey(project, sessionID string) string {
	return "ingest:done:" + project + ":" + sessionID
}

// BatchIngest processes sessionPaths in mtime order, skipping sessions
// already fully ingested and redoing partially-ingested ones from the start
// (spec.md §5 "Ingestion is restartable... a partially-ingested session is
// redone from its start").
func (d *Driver) BatchIngest(ctx context.Context, sessionPaths []string, opts Options) (Result, error) {
	start := time.Now()
	if opts.Project == "" {
		return Result{}, fmt.Errorf("ingest: project tag is required")
	}

	ordered, err := sortByModTime(sessionPaths)
	if err != nil {
		return Result{}, err
	}

	if d.deps.Renderer != nil {
		_ = d.deps.Renderer.Start(ctx)
	}

	var results []SessionResult
	totalChunks := 0
	for i, path := range ordered {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		if d.deps.Renderer != nil {
			d.deps.Renderer.UpdateProgress(ui.ProgressEvent{
				Stage: ui.StageChunking, Current: i + 1, Total: len(ordered), CurrentFile: path,
			})
		}

		sr := d.ingestSession(ctx, path, opts.Project)
		if sr.Err != nil && d.deps.Renderer != nil {
			d.deps.Renderer.AddError(ui.ErrorEvent{File: path, Err: sr.Err})
		}
		totalChunks += sr.Chunks
		results = append(results, sr)
	}

	clustersBuilt := 0
	if opts.Recluster {
		n, err := d.recluster(ctx, opts.Project)
		if err != nil {
			return Result{}, fmt.Errorf("ingest: recluster: %w", err)
		}
		clustersBuilt = n
	}

	if d.deps.Renderer != nil {
		_ = d.deps.Renderer.Stop()
	}

	return Result{Sessions: results, ChunksIndexed: totalChunks, ClustersBuilt: clustersBuilt, Duration: time.Since(start)}, nil
}

// sortByModTime orders session paths oldest-first (spec.md §5 "Ingestion
// processes sessions... in mtime order").
func sortByModTime(paths []string) ([]string, error) {
	type stamped struct {
		path string
		mod  time.Time
	}
	stamps := make([]stamped, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		stamps = append(stamps, stamped{path: p, mod: info.ModTime()})
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].mod.Before(stamps[j].mod) })
	out := make([]string, len(stamps))
	for i, s := range stamps {
		out[i] = s.path
	}
	return out, nil
}

// sessionIDOf derives a session id from a transcript file's base name
// (spec.md §4.1: transcript files are named by session id).
func sessionIDOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func docsOf(chunks []model.Chunk) []store.Document {
	docs := make([]store.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = store.Document{ID: c.ID, Project: c.Project, Text: c.Text}
	}
	return docs
}

func idsOf(chunks []model.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func projectsOf(chunks []model.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Project
	}
	return out
}

func textsOf(chunks []model.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// upsertEdge implements the "at most one stored edge per (source, target,
// kind)" invariant: re-detection increments link count rather than
// duplicating rows (spec.md §3, grounded on internal/graph.MergeEdge).
func upsertEdge(ctx context.Context, m store.MetadataStore, e model.Edge) error {
	existing, err := m.FindEdge(ctx, e.Source, e.Target, e.Kind)
	if err != nil {
		return err
	}
	if existing != nil {
		merged := graph.MergeEdge(*existing, e)
		return m.SaveEdge(ctx, merged)
	}
	return m.SaveEdge(ctx, e)
}
