package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no cgo

	"github.com/recallgraph/recallgraph/internal/model"
)

// MetadataStore persists chunks, edges, clusters, cluster membership, and
// vector-clock records (spec.md §6 persistent state layout).
type MetadataStore interface {
	SaveChunks(ctx context.Context, chunks []model.Chunk) error
	GetChunk(ctx context.Context, id string) (*model.Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]model.Chunk, error)
	DeleteChunks(ctx context.Context, ids []string) error
	ListChunksBySession(ctx context.Context, project, sessionID string) ([]model.Chunk, error)
	ListSessions(ctx context.Context, project string) ([]SessionSummary, error)
	ListProjects(ctx context.Context) ([]ProjectSummary, error)

	SaveEdge(ctx context.Context, e model.Edge) error
	EdgesFrom(ctx context.Context, chunkID string) ([]model.Edge, error)
	EdgesTo(ctx context.Context, chunkID string) ([]model.Edge, error)
	FindEdge(ctx context.Context, source, target string, kind model.EdgeKind) (*model.Edge, error)

	SaveCluster(ctx context.Context, c model.Cluster) error
	ReplaceClusterMembership(ctx context.Context, members []model.ClusterMember) error
	ClusterOf(ctx context.Context, chunkID string) (*model.ClusterMember, error)
	ClusterMembers(ctx context.Context, clusterID string, excludeChunkID string, limit int) ([]model.ClusterMember, error)
	ClusterStats(ctx context.Context, project string) (ClusterStats, error)

	GetReferenceClock(ctx context.Context, project string) (model.Clock, error)
	AdvanceReferenceClock(ctx context.Context, project string, observed model.Clock) error

	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	SaveIngestCheckpoint(ctx context.Context, cp IngestCheckpoint) error
	LoadIngestCheckpoint(ctx context.Context) (*IngestCheckpoint, error)

	Close() error
}

// SessionSummary is the row shape for listSessions (spec.md §6).
type SessionSummary struct {
	SessionID      string
	FirstChunkTime time.Time
	LastChunkTime  time.Time
	ChunkCount     int
	TotalTokens    int
}

// ProjectSummary is the row shape for listProjects (spec.md §6).
type ProjectSummary struct {
	Slug       string
	ChunkCount int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// ClusterStats summarizes a project's cluster-expansion health (spec.md §2
// C10 "cluster health").
type ClusterStats struct {
	ClusterCount      int
	ClusteredChunks   int
	UnclusteredChunks int
	AvgClusterSize    float64
	AvgMemberDistance float64
}

// IngestCheckpoint records resumable batch-ingest progress, ported from the
// teacher's IndexCheckpoint (spec.md §9 supplemented resumable ingestion).
type IngestCheckpoint struct {
	Stage     string
	Total     int
	Processed int
	Timestamp time.Time
}

// SQLiteStore implements MetadataStore over modernc.org/sqlite in WAL mode,
// ported from the pragma discipline in the teacher's sqlite_bm25.go: a
// single-connection pool avoids the lock contention a multi-connection
// pool would hit against one writer file, matching spec.md §5's "serialized
// through a single writer" concurrency model.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewSQLiteStore opens (creating if necessary) the metadata database at
// path. An empty path opens an in-memory database, useful for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create metadata directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate metadata schema: %w", err)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	project TEXT NOT NULL,
	session_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	spawn_depth INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	code_blocks INTEGER NOT NULL,
	tool_uses INTEGER NOT NULL,
	has_thinking INTEGER NOT NULL,
	turn_indices TEXT NOT NULL,
	clock TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_project_session ON chunks(project, session_id, start_time);

CREATE TABLE IF NOT EXISTS edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	kind TEXT NOT NULL,
	weight REAL NOT NULL,
	link_count INTEGER NOT NULL,
	clock TEXT NOT NULL,
	ref_type TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (source, target, kind),
	FOREIGN KEY (source) REFERENCES chunks(id) ON DELETE CASCADE,
	FOREIGN KEY (target) REFERENCES chunks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);

CREATE TABLE IF NOT EXISTS clusters (
	id TEXT PRIMARY KEY,
	name TEXT,
	description TEXT,
	created_at TEXT NOT NULL,
	refreshed_at TEXT NOT NULL,
	exemplars TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cluster_members (
	chunk_id TEXT PRIMARY KEY,
	cluster_id TEXT NOT NULL,
	distance REAL NOT NULL,
	FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE,
	FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cluster_members_cluster ON cluster_members(cluster_id);

CREATE TABLE IF NOT EXISTS vector_clocks (
	namespace_id TEXT PRIMARY KEY,
	clock TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func encodeClock(c model.Clock) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeClock(raw string) (model.Clock, error) {
	c := model.Clock{}
	if raw == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveChunks inserts or replaces chunk rows. Chunk ids are deterministic
// given (session id, ordinal), so re-ingesting the same transcript yields
// identical rows (spec.md §8 round-trip property).
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, text, token_count, project, session_id, agent_id, spawn_depth,
			start_time, end_time, code_blocks, tool_uses, has_thinking, turn_indices, clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text=excluded.text, token_count=excluded.token_count, project=excluded.project,
			session_id=excluded.session_id, agent_id=excluded.agent_id, spawn_depth=excluded.spawn_depth,
			start_time=excluded.start_time, end_time=excluded.end_time, code_blocks=excluded.code_blocks,
			tool_uses=excluded.tool_uses, has_thinking=excluded.has_thinking,
			turn_indices=excluded.turn_indices, clock=excluded.clock
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		turnIdx, err := json.Marshal(c.TurnIndices)
		if err != nil {
			return err
		}
		clk, err := encodeClock(c.Clock)
		if err != nil {
			return err
		}
		hasThinking := 0
		if c.HasThinking {
			hasThinking = 1
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, c.TokenCount, c.Project, c.SessionID, c.AgentID,
			c.SpawnDepth, c.StartTime.Format(time.RFC3339Nano), c.EndTime.Format(time.RFC3339Nano),
			c.CodeBlocks, c.ToolUses, hasThinking, string(turnIdx), clk, c.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanChunk(row interface {
	Scan(dest ...any) error
}) (model.Chunk, error) {
	var c model.Chunk
	var startRaw, endRaw, createdRaw, turnRaw, clockRaw string
	var hasThinking int
	if err := row.Scan(&c.ID, &c.Text, &c.TokenCount, &c.Project, &c.SessionID, &c.AgentID, &c.SpawnDepth,
		&startRaw, &endRaw, &c.CodeBlocks, &c.ToolUses, &hasThinking, &turnRaw, &clockRaw, &createdRaw); err != nil {
		return c, err
	}
	c.HasThinking = hasThinking != 0
	var err error
	if c.StartTime, err = time.Parse(time.RFC3339Nano, startRaw); err != nil {
		return c, err
	}
	if c.EndTime, err = time.Parse(time.RFC3339Nano, endRaw); err != nil {
		return c, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdRaw); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(turnRaw), &c.TurnIndices); err != nil {
		return c, err
	}
	if c.Clock, err = decodeClock(clockRaw); err != nil {
		return c, err
	}
	return c, nil
}

const chunkColumns = `id, text, token_count, project, session_id, agent_id, spawn_depth, start_time, end_time, code_blocks, tool_uses, has_thinking, turn_indices, clock, created_at`

// GetChunk retrieves a single chunk by id, returning (nil, nil) if absent.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChunks retrieves multiple chunks by id in a single round trip.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]any, len(ids))
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id IN (`
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = id
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChunks removes chunks; edges and cluster membership touching them
// cascade via foreign keys (spec.md §8 "deleting a chunk deletes all edges
// touching it").
func (s *SQLiteStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]any, len(ids))
	query := `DELETE FROM chunks WHERE id IN (`
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = id
	}
	query += ")"
	_, err := s.db.ExecContext(ctx, query, placeholders...)
	return err
}

// ListChunksBySession returns a session's chunks in turn/ordinal order.
func (s *SQLiteStore) ListChunksBySession(ctx context.Context, project, sessionID string) ([]model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE project = ? AND session_id = ? ORDER BY start_time ASC`, project, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListSessions summarizes sessions within a project for listSessions
// (spec.md §6).
func (s *SQLiteStore) ListSessions(ctx context.Context, project string) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, MIN(start_time), MAX(end_time), COUNT(*), SUM(token_count)
		FROM chunks WHERE project = ? GROUP BY session_id ORDER BY MIN(start_time) ASC`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var summary SessionSummary
		var firstRaw, lastRaw string
		if err := rows.Scan(&summary.SessionID, &firstRaw, &lastRaw, &summary.ChunkCount, &summary.TotalTokens); err != nil {
			return nil, err
		}
		if summary.FirstChunkTime, err = time.Parse(time.RFC3339Nano, firstRaw); err != nil {
			return nil, err
		}
		if summary.LastChunkTime, err = time.Parse(time.RFC3339Nano, lastRaw); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// ListProjects summarizes every project tag seen for listProjects
// (spec.md §6).
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT project, COUNT(*), MIN(start_time), MAX(end_time)
		FROM chunks GROUP BY project ORDER BY project ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		var firstRaw, lastRaw string
		if err := rows.Scan(&p.Slug, &p.ChunkCount, &firstRaw, &lastRaw); err != nil {
			return nil, err
		}
		if p.FirstSeen, err = time.Parse(time.RFC3339Nano, firstRaw); err != nil {
			return nil, err
		}
		if p.LastSeen, err = time.Parse(time.RFC3339Nano, lastRaw); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveEdge inserts a new edge, or increments link count (and refreshes the
// clock) if an identical (source, target, kind) edge already exists
// (spec.md §3/§4.4).
func (s *SQLiteStore) SaveEdge(ctx context.Context, e model.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clk, err := encodeClock(e.Clock)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges (source, target, kind, weight, link_count, clock, ref_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, target, kind) DO UPDATE SET
			link_count = link_count + 1,
			clock = excluded.clock
	`, e.Source, e.Target, string(e.Kind), e.Weight, e.LinkCount, clk, string(e.RefType), e.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func scanEdge(row interface {
	Scan(dest ...any) error
}) (model.Edge, error) {
	var e model.Edge
	var kind, refType, clockRaw, createdRaw string
	if err := row.Scan(&e.Source, &e.Target, &kind, &e.Weight, &e.LinkCount, &clockRaw, &refType, &createdRaw); err != nil {
		return e, err
	}
	e.Kind = model.EdgeKind(kind)
	e.RefType = model.RefType(refType)
	var err error
	if e.Clock, err = decodeClock(clockRaw); err != nil {
		return e, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdRaw); err != nil {
		return e, err
	}
	return e, nil
}

const edgeColumns = `source, target, kind, weight, link_count, clock, ref_type, created_at`

// EdgesFrom returns the materialized forward edges out of chunkID, in
// insertion order (rowid order).
func (s *SQLiteStore) EdgesFrom(ctx context.Context, chunkID string) ([]model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE source = ? ORDER BY rowid ASC`, chunkID)
}

// EdgesTo returns the backward view over edges: all edges targeting
// chunkID, in insertion order (spec.md §3: "backward views are obtained by
// querying on target id").
func (s *SQLiteStore) EdgesTo(ctx context.Context, chunkID string) ([]model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE target = ? ORDER BY rowid ASC`, chunkID)
}

func (s *SQLiteStore) queryEdges(ctx context.Context, query string, args ...any) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindEdge looks up a single edge by its unique (source, target, kind) key.
func (s *SQLiteStore) FindEdge(ctx context.Context, source, target string, kind model.EdgeKind) (*model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM edges WHERE source = ? AND target = ? AND kind = ?`, source, target, string(kind))
	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveCluster inserts or replaces a cluster record.
func (s *SQLiteStore) SaveCluster(ctx context.Context, c model.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exemplars, err := json.Marshal(c.Exemplars)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clusters (id, name, description, created_at, refreshed_at, exemplars)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			refreshed_at=excluded.refreshed_at, exemplars=excluded.exemplars
	`, c.ID, c.Name, c.Description, c.CreatedAt.Format(time.RFC3339Nano), c.RefreshedAt.Format(time.RFC3339Nano), string(exemplars))
	return err
}

// ReplaceClusterMembership atomically replaces all membership rows,
// enforcing single membership per chunk via the table's primary key
// (spec.md §9 Open Question #3 resolution).
func (s *SQLiteStore) ReplaceClusterMembership(ctx context.Context, members []model.ClusterMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cluster_members`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cluster_members (chunk_id, cluster_id, distance) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, m := range members {
		if _, err := stmt.ExecContext(ctx, m.ChunkID, m.ClusterID, m.Distance); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClusterOf returns the cluster membership row for a chunk, or nil if the
// chunk belongs to no cluster.
func (s *SQLiteStore) ClusterOf(ctx context.Context, chunkID string) (*model.ClusterMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m model.ClusterMember
	err := s.db.QueryRowContext(ctx, `SELECT chunk_id, cluster_id, distance FROM cluster_members WHERE chunk_id = ?`, chunkID).
		Scan(&m.ChunkID, &m.ClusterID, &m.Distance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ClusterMembers returns up to limit sibling members of a cluster, ordered
// by distance to centroid, excluding one chunk (typically the expansion
// seed itself).
func (s *SQLiteStore) ClusterMembers(ctx context.Context, clusterID string, excludeChunkID string, limit int) ([]model.ClusterMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, cluster_id, distance FROM cluster_members
		WHERE cluster_id = ? AND chunk_id != ?
		ORDER BY distance ASC LIMIT ?`, clusterID, excludeChunkID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ClusterMember
	for rows.Next() {
		var m model.ClusterMember
		if err := rows.Scan(&m.ChunkID, &m.ClusterID, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClusterStats reports cluster-expansion health for a project (or the whole
// store when project is empty): how many clusters exist, how many chunks
// fell into one, and the average member-to-centroid distance, feeding C10's
// cluster-health report.
func (s *SQLiteStore) ClusterStats(ctx context.Context, project string) (ClusterStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats ClusterStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT cm.cluster_id), COUNT(*), COALESCE(AVG(cm.distance), 0)
		FROM cluster_members cm
		JOIN chunks c ON c.id = cm.chunk_id
		WHERE ? = '' OR c.project = ?
	`, project, project).Scan(&stats.ClusterCount, &stats.ClusteredChunks, &stats.AvgMemberDistance)
	if err != nil {
		return ClusterStats{}, err
	}

	var totalChunks int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks WHERE ? = '' OR project = ?
	`, project, project).Scan(&totalChunks)
	if err != nil {
		return ClusterStats{}, err
	}

	stats.UnclusteredChunks = totalChunks - stats.ClusteredChunks
	if stats.ClusterCount > 0 {
		stats.AvgClusterSize = float64(stats.ClusteredChunks) / float64(stats.ClusterCount)
	}
	return stats, nil
}

// GetReferenceClock returns the project's reference clock, the
// component-wise supremum of every clock ever observed under that project
// tag (spec.md §3). Returns an empty clock if the project has no record
// yet.
func (s *SQLiteStore) GetReferenceClock(ctx context.Context, project string) (model.Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT clock FROM vector_clocks WHERE namespace_id = ?`, referenceClockNamespace(project)).Scan(&raw)
	if err == sql.ErrNoRows {
		return model.Clock{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeClock(raw)
}

// AdvanceReferenceClock merges observed into the project's stored reference
// clock transactionally, keeping it monotonic non-decreasing (spec.md §3,
// §8 "R dominates the clock of every chunk/edge tagged with p").
func (s *SQLiteStore) AdvanceReferenceClock(ctx context.Context, project string, observed model.Clock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ns := referenceClockNamespace(project)
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT clock FROM vector_clocks WHERE namespace_id = ?`, ns).Scan(&raw)
	current := model.Clock{}
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil {
		if current, err = decodeClock(raw); err != nil {
			return err
		}
	}

	merged := current.Merge(observed)
	encoded, err := encodeClock(merged)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vector_clocks (namespace_id, clock) VALUES (?, ?)
		ON CONFLICT(namespace_id) DO UPDATE SET clock = excluded.clock
	`, ns, encoded); err != nil {
		return err
	}
	return tx.Commit()
}

func referenceClockNamespace(project string) string {
	return "project:" + project
}

// GetState reads a key-value runtime state entry.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetState writes a key-value runtime state entry.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

const checkpointStateKey = "ingest_checkpoint"

// SaveIngestCheckpoint persists batch-ingest progress so a crashed batch
// resumes from the last fully-ingested session (spec.md §9 supplemented
// resumable ingestion, ported from the teacher's IndexCheckpoint).
func (s *SQLiteStore) SaveIngestCheckpoint(ctx context.Context, cp IngestCheckpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.SetState(ctx, checkpointStateKey, string(b))
}

// LoadIngestCheckpoint loads the last saved checkpoint, or nil if none
// exists.
func (s *SQLiteStore) LoadIngestCheckpoint(ctx context.Context) (*IngestCheckpoint, error) {
	raw, err := s.GetState(ctx, checkpointStateKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var cp IngestCheckpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
