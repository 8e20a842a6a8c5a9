package ingest

import (
	"context"
	"time"

	"github.com/recallgraph/recallgraph/internal/graph"
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/parser"
	"github.com/recallgraph/recallgraph/internal/store"
	"github.com/recallgraph/recallgraph/internal/topology"
)

// transcript is one parsed+chunked unit (the main transcript or one
// sub-agent's sidechain), carried through topology detection and edge
// construction together.
type transcript struct {
	agentID    string
	spawnDepth int
	turns      []parser.Turn
	progress   map[string]string
	chunks     []model.Chunk
	finalClock model.Clock
}

func (t transcript) firstChunkID() string {
	if len(t.chunks) == 0 {
		return ""
	}
	return t.chunks[0].ID
}

func (t transcript) lastChunkID() string {
	if len(t.chunks) == 0 {
		return ""
	}
	return t.chunks[len(t.chunks)-1].ID
}

// ingestSession runs C1-C4 for one transcript file and writes its chunks
// and edges through the stores. It never returns a partial write as
// "success" — on any failure the session is left unmarked, so a retry
// redoes it from the start (spec.md §5).
func (d *Driver) ingestSession(ctx context.Context, path, project string) SessionResult {
	sessionID := sessionIDOf(path)
	res := SessionResult{SessionID: sessionID, Path: path}

	done, err := d.deps.Metadata.GetState(ctx, stateKey(project, sessionID))
	if err != nil {
		res.Err = err
		return res
	}
	if done == "complete" {
		res.Skipped = true
		return res
	}

	// A previous attempt may have partially written this session; clear it
	// before redoing so within-chain edges and chunk rows aren't duplicated.
	if existing, err := d.deps.Metadata.ListChunksBySession(ctx, project, sessionID); err == nil && len(existing) > 0 {
		ids := idsOf(existing)
		_ = d.deps.Metadata.DeleteChunks(ctx, ids)
		_ = d.deps.Vectors.Delete(ctx, ids)
		_ = d.deps.Lexical.Delete(ctx, ids)
	}

	mainResult, err := parser.ParseMainTranscript(ctx, path)
	if err != nil {
		res.Err = err
		return res
	}

	projectClock, err := d.deps.Metadata.GetReferenceClock(ctx, project)
	if err != nil {
		res.Err = err
		return res
	}

	all, err := d.chunkTranscriptTree(ctx, path, sessionID, project, mainResult, projectClock, model.AgentMain, 0)
	if err != nil {
		res.Err = err
		return res
	}

	var allChunks []model.Chunk
	finalClock := projectClock
	for _, t := range all {
		allChunks = append(allChunks, t.chunks...)
		finalClock = finalClock.Merge(t.finalClock)
	}

	edges := d.buildEdges(ctx, project, sessionID, all)

	if err := d.deps.Metadata.SaveChunks(ctx, allChunks); err != nil {
		res.Err = err
		return res
	}
	if err := d.indexChunks(ctx, allChunks); err != nil {
		res.Err = err
		return res
	}
	for _, e := range edges {
		if err := upsertEdge(ctx, d.deps.Metadata, e); err != nil {
			res.Err = err
			return res
		}
	}
	if err := d.deps.Metadata.AdvanceReferenceClock(ctx, project, finalClock); err != nil {
		res.Err = err
		return res
	}
	if err := d.deps.Metadata.SetState(ctx, stateKey(project, sessionID), "complete"); err != nil {
		res.Err = err
		return res
	}
	_ = d.deps.Metadata.SaveIngestCheckpoint(ctx, store.IngestCheckpoint{
		Stage: sessionID, Total: len(allChunks), Processed: len(allChunks), Timestamp: time.Now().UTC(),
	})

	res.Chunks = len(allChunks)
	return res
}

// chunkTranscriptTree parses+chunks the main transcript and, recursively,
// every non-dead-end sub-agent sidechain, seeding each sub-agent's starting
// clock from the clock of the chunk covering its spawn point (spec.md §4.3
// "a sub-agent's clock starts as a clone of its parent's at the spawn
// point").
func (d *Driver) chunkTranscriptTree(ctx context.Context, path, sessionID, project string, parsed parser.Result, startClock model.Clock, agentID string, spawnDepth int) ([]transcript, error) {
	chunks, finalClock, err := d.chunker.Chunk(ctx, parsed.Turns, sessionID, project, startClock, agentID, spawnDepth)
	if err != nil {
		return nil, err
	}
	root := transcript{
		agentID:    agentID,
		spawnDepth: spawnDepth,
		turns:      parsed.Turns,
		progress:   parsed.ProgressMappings,
		chunks:     chunks,
		finalClock: finalClock,
	}
	out := []transcript{root}

	sidechains, err := parser.DiscoverSidechains(path)
	if err != nil {
		return nil, err
	}
	chunkOf := turnChunkIndex(chunks)
	for _, sc := range sidechains {
		subParsed, err := parser.ParseSidechain(ctx, sc.Path)
		if err != nil {
			continue
		}
		if parser.IsDeadEnd(subParsed.Turns) {
			continue
		}
		spawnClock := findSpawnClock(root.turns, chunkOf, chunks, parsed.ProgressMappings, sc.AgentID, startClock)
		children, err := d.chunkTranscriptTree(ctx, sc.Path, sessionID, project, subParsed, spawnClock, sc.AgentID, spawnDepth+1)
		if err != nil {
			continue
		}
		out = append(out, children...)
	}
	return out, nil
}

func turnChunkIndex(chunks []model.Chunk) map[int]string {
	idx := make(map[int]string)
	for _, c := range chunks {
		for _, t := range c.TurnIndices {
			idx[t] = c.ID
		}
	}
	return idx
}

// findSpawnClock locates the clock snapshot of the chunk covering the turn
// that spawned agentID, falling back to the parent's starting clock when no
// matching spawn turn is found (e.g. the progress mapping was dropped).
func findSpawnClock(turns []parser.Turn, chunkOf map[int]string, chunks []model.Chunk, progress map[string]string, agentID string, fallback model.Clock) model.Clock {
	clockByChunk := make(map[string]model.Clock, len(chunks))
	for _, c := range chunks {
		clockByChunk[c.ID] = c.Clock
	}
	for ti, turn := range turns {
		for _, ex := range turn.ToolExchanges {
			if progress[ex.Use.ToolUseID] == agentID {
				if cid, ok := chunkOf[ti]; ok {
					return clockByChunk[cid].Clone()
				}
			}
		}
	}
	return fallback.Clone()
}

// buildEdges materializes within-chain, brief/debrief (or team-spawn/
// team-report when the spawn is part of an explicit team), and cross-session
// edges for one session's full transcript tree (spec.md §4.4).
func (d *Driver) buildEdges(ctx context.Context, project, sessionID string, all []transcript) []model.Edge {
	now := time.Now().UTC()
	var edges []model.Edge

	byAgent := make(map[string]transcript, len(all))
	for _, t := range all {
		edges = append(edges, graph.WithinChainEdges(t.chunks, now)...)
		byAgent[t.agentID] = t
	}

	subAgents := make(map[string]topology.SubAgent, len(all))
	for _, t := range all {
		if t.agentID == model.AgentMain {
			continue
		}
		subAgents[t.agentID] = topology.SubAgent{
			AgentID:      t.agentID,
			FirstChunkID: t.firstChunkID(),
			LastChunkID:  t.lastChunkID(),
		}
	}

	for _, t := range all {
		topoResult := topology.Detect(sessionID, t.turns, t.chunks, t.progress, t.spawnDepth, subAgents)
		isTeam := topoResult.Team != nil

		for _, brief := range topoResult.Briefs {
			child, ok := subAgents[brief.AgentID]
			if !ok || child.FirstChunkID == "" {
				continue
			}
			if isTeam && topoResult.Team.Members[brief.AgentID] {
				edges = append(edges, graph.TeamSpawnEdge(brief.ParentChunkID, child.FirstChunkID, brief.Clock, now))
			} else {
				edges = append(edges, graph.BriefEdge(brief.ParentChunkID, child.FirstChunkID, brief.Clock, now))
			}
		}

		for _, debrief := range topoResult.Debriefs {
			child, ok := byAgentLastChunkClock(all, debrief.ChildChunkID)
			if !ok {
				continue
			}
			if isTeam {
				edges = append(edges, graph.TeamReportEdge(debrief.ChildChunkID, debrief.ParentChunkID, child, now))
			} else {
				edges = append(edges, graph.DebriefEdge(debrief.ChildChunkID, debrief.ParentChunkID, child, now))
			}
		}
	}

	if prevLast, ok := d.previousSessionLastChunk(ctx, project, sessionID); ok {
		if main, ok := byAgent[model.AgentMain]; ok && len(main.chunks) > 0 {
			if e, ok := graph.CrossSessionEdge(prevLast, main.chunks[0], now); ok {
				edges = append(edges, e)
			}
		}
	}

	return edges
}

func byAgentLastChunkClock(all []transcript, chunkID string) (model.Clock, bool) {
	for _, t := range all {
		for _, c := range t.chunks {
			if c.ID == chunkID {
				return c.Clock, true
			}
		}
	}
	return nil, false
}

// previousSessionLastChunk finds the chronologically last chunk of the most
// recently completed session in the project, the anchor for a cross-session
// continuation edge (spec.md §4.4, §8 scenario 2).
func (d *Driver) previousSessionLastChunk(ctx context.Context, project, excludeSessionID string) (model.Chunk, bool) {
	sessions, err := d.deps.Metadata.ListSessions(ctx, project)
	if err != nil || len(sessions) == 0 {
		return model.Chunk{}, false
	}
	var latest *model.Chunk
	var latestSeen time.Time
	for _, s := range sessions {
		if s.SessionID == excludeSessionID {
			continue
		}
		if s.LastChunkTime.Before(latestSeen) {
			continue
		}
		chunks, err := d.deps.Metadata.ListChunksBySession(ctx, project, s.SessionID)
		if err != nil || len(chunks) == 0 {
			continue
		}
		c := chunks[len(chunks)-1]
		latest = &c
		latestSeen = s.LastChunkTime
	}
	if latest == nil {
		return model.Chunk{}, false
	}
	return *latest, true
}

func (d *Driver) indexChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := d.deps.Embedder.EmbedBatch(ctx, textsOf(chunks))
	if err != nil {
		return err
	}
	if err := d.deps.Vectors.Add(ctx, idsOf(chunks), projectsOf(chunks), vectors); err != nil {
		return err
	}
	return d.deps.Lexical.Index(ctx, docsOf(chunks))
}
