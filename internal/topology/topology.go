// Package topology discovers fork/join points created when an assistant
// spawns sub-agents, organizes them into a team, or exchanges peer messages
// (spec.md §4.3 C3). There is no teacher analog (amanmcp indexes source
// files, never transcripts); its detection rules are expressed in the same
// single-pass-over-turns style the chunker (internal/chunk) uses to walk a
// turn sequence.
package topology

import (
	"encoding/json"
	"strings"

	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/parser"
)

// spawnTools is the small set of tool names that spawn a sub-agent
// (spec.md §4.3 "a tool use whose name is in a small spawn-tool set").
var spawnTools = map[string]bool{
	"Task":     true,
	"Agent":    true,
	"SubAgent": true,
}

// teamCreateTools mark explicit team-session creation.
var teamCreateTools = map[string]bool{
	"team-create": true,
}

const sendMessageTool = "send-message"

// SubAgent describes one sub-agent transcript already chunked by the
// caller, as topology needs only its boundary chunk ids.
type SubAgent struct {
	AgentID      string
	FirstChunkID string
	LastChunkID  string
}

// Result is everything the detector finds for one (main transcript, its
// sub-agents) unit.
type Result struct {
	Briefs   []model.BriefPoint
	Debriefs []model.DebriefPoint
	Team     *model.TeamTopology
}

// turnChunkIndex maps a turn ordinal to the chunk id that covers it, built
// from a chunked turn sequence's TurnIndices lists.
func turnChunkIndex(chunks []model.Chunk) map[int]string {
	idx := make(map[int]string)
	for _, c := range chunks {
		for _, t := range c.TurnIndices {
			idx[t] = c.ID
		}
	}
	return idx
}

func clockByChunkID(chunks []model.Chunk) map[string]model.Clock {
	idx := make(map[string]model.Clock, len(chunks))
	for _, c := range chunks {
		idx[c.ID] = c.Clock
	}
	return idx
}

// Detect walks the main transcript's turns and finds brief/debrief points
// and team topology (spec.md §4.3 "Detection rules" / "Output").
func Detect(sessionID string, turns []parser.Turn, chunks []model.Chunk, progress map[string]string, spawnDepth int, subAgents map[string]SubAgent) Result {
	chunkOf := turnChunkIndex(chunks)
	clockOf := clockByChunkID(chunks)
	var res Result
	names := make(map[string]string) // agent id -> human name
	members := make(map[string]bool)

	for ti, turn := range turns {
		for _, ex := range turn.ToolExchanges {
			if spawnTools[ex.Use.ToolName] {
				agentID, ok := progress[ex.Use.ToolUseID]
				if !ok {
					continue
				}
				parentChunkID := chunkOf[ti]

				res.Briefs = append(res.Briefs, model.BriefPoint{
					ParentChunkID: parentChunkID,
					AgentID:       agentID,
					Clock:         clockOf[parentChunkID],
					SpawnDepth:    spawnDepth + 1,
				})
				members[agentID] = true

				if name := resolveTeammateName(ex, progress, names); name != "" {
					names[agentID] = name
				}

				childChunkID := ""
				if sa, ok := subAgents[agentID]; ok {
					childChunkID = sa.LastChunkID
				}
				parentReturnChunkID := debriefParentChunk(turns, ti, chunkOf)
				if childChunkID != "" {
					res.Debriefs = append(res.Debriefs, model.DebriefPoint{
						ChildChunkID:  childChunkID,
						ParentChunkID: parentReturnChunkID,
					})
				}
			}

			if teamCreateTools[ex.Use.ToolName] || hasTeamNameParam(ex.Use) || ex.Use.ToolName == sendMessageTool {
				if res.Team == nil {
					res.Team = &model.TeamTopology{SessionID: sessionID, Names: map[string]string{}, Members: map[string]bool{}}
				}
			}
		}
	}

	if res.Team != nil {
		for id, ok := range members {
			res.Team.Members[id] = ok
		}
		for id, n := range names {
			res.Team.Names[id] = n
		}
	}
	return res
}

// debriefParentChunk resolves the chunk in which the spawn's return is
// recognized: the chunk of the turn immediately after the spawn turn, or the
// spawn turn's own chunk when no later turn has a chunk. The transcript is
// not searched for the assistant message that follows the sub-agent's
// output; the next turn is always used (spec.md §4.3 "A debrief point marks
// a return").
func debriefParentChunk(turns []parser.Turn, spawnTurn int, chunkOf map[int]string) string {
	if spawnTurn+1 < len(turns) {
		if id, ok := chunkOf[spawnTurn+1]; ok {
			return id
		}
	}
	return chunkOf[spawnTurn]
}

// hasTeamNameParam reports whether a Task-style tool use carries an
// explicit team-name input parameter (spec.md §4.3 "or by a 'Task' call
// carrying a team-name parameter").
func hasTeamNameParam(use parser.ContentBlock) bool {
	if use.ToolName != "Task" || len(use.ToolInput) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(use.ToolInput, &fields); err != nil {
		return false
	}
	_, hasTeamName := fields["team_name"]
	_, hasTeamNameCamel := fields["teamName"]
	return hasTeamName || hasTeamNameCamel
}

// resolveTeammateName implements spec.md §4.3's three-step teammate name
// resolution, with collision disambiguation by path prefix.
func resolveTeammateName(ex parser.ToolExchange, progress map[string]string, existing map[string]string) string {
	if name := explicitNameFromInput(ex.Use.ToolInput); name != "" {
		return disambiguate(name, ex.Use.ToolUseID, existing)
	}
	if ex.Result != nil {
		if name := nameFromResultText(ex.Result.ToolResultText); name != "" {
			return disambiguate(name, ex.Use.ToolUseID, existing)
		}
	}
	if agentID, ok := progress[ex.Use.ToolUseID]; ok {
		return disambiguate(agentID, ex.Use.ToolUseID, existing)
	}
	return ""
}

func explicitNameFromInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"name", "agent_name", "agentName"} {
		if v, ok := fields[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s
			}
		}
	}
	return ""
}

// nameFromResultText looks for a simple "name: <value>" or "id: <value>"
// marker in a tool result's flattened text.
func nameFromResultText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"name:", "agent:", "id:"} {
			if strings.HasPrefix(strings.ToLower(line), prefix) {
				return strings.TrimSpace(line[len(prefix):])
			}
		}
	}
	return ""
}

// disambiguate appends a short tool-use-id suffix when name collides with
// an already-assigned teammate name (spec.md §4.3 "collision disambiguation
// by path prefix" — generalized here to a stable id prefix since transcript
// teammates have no filesystem path).
func disambiguate(name, toolUseID string, existing map[string]string) string {
	for _, taken := range existing {
		if taken == name {
			suffix := toolUseID
			if len(suffix) > 6 {
				suffix = suffix[:6]
			}
			return name + "-" + suffix
		}
	}
	return name
}
