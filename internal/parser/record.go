// Package parser streams raw transcript records and assembles them into
// turns per spec.md §4.1 C1. There is no teacher analog (amanmcp never reads
// assistant transcripts); the streaming-iterator shape is grounded on
// internal/scanner's channel-based Scan, generalized from "walk a file tree"
// to "walk a JSONL transcript".
package parser

import (
	"encoding/json"
	"strings"
	"time"
)

// RecordType tags the kind of line found in a transcript file.
type RecordType string

const (
	RecordUser      RecordType = "user"
	RecordAssistant RecordType = "assistant"
	RecordSystem    RecordType = "system"
	RecordProgress  RecordType = "progress"
	RecordSnapshot  RecordType = "snapshot"
)

// noiseTypes are dropped outright per spec.md §4.1 "Rules": "Records of
// noise types (progress, snapshot) are dropped."
var noiseTypes = map[RecordType]bool{
	RecordProgress: true,
	RecordSnapshot: true,
}

// BlockType tags the kind of content block inside a user/assistant record.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a record's content array.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text / thinking
	Text string `json:"text,omitempty"`

	// tool_use
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolResultForID string          `json:"tool_use_id,omitempty"`
	ToolResultText  string          `json:"-"`
	ToolResultRaw   json.RawMessage `json:"content,omitempty"`
	IsError         bool            `json:"is_error,omitempty"`
}

// wireMessage mirrors the "message" field shape of a user/assistant record.
type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Record is one parsed line of a transcript file.
type Record struct {
	Type        RecordType
	Timestamp   time.Time
	SessionID   string
	UUID        string
	ParentUUID  string
	IsSidechain bool
	Role        string
	Content     []ContentBlock

	// Progress records carry a tool-use id -> spawned-agent id mapping used
	// by the topology detector (spec.md §4.3).
	ProgressToolUseID string
	ProgressAgentID   string
}

// wireRecord is the raw on-disk shape of one transcript line.
type wireRecord struct {
	Type        RecordType      `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	SessionID   string          `json:"sessionId"`
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid"`
	IsSidechain bool            `json:"isSidechain"`
	Message     json.RawMessage `json:"message"`

	// progress-record fields
	ToolUseID string `json:"toolUseId"`
	AgentID   string `json:"agentId"`
}

// decodeRecord unmarshals a single transcript line into a Record. Malformed
// lines return an error; the caller (streamRecords) drops them individually rather
// than treating them as fatal, per spec.md §4.1 "Failure semantics".
func decodeRecord(line []byte) (Record, error) {
	var wr wireRecord
	if err := json.Unmarshal(line, &wr); err != nil {
		return Record{}, err
	}

	rec := Record{
		Type:              wr.Type,
		Timestamp:         wr.Timestamp,
		SessionID:         wr.SessionID,
		UUID:              wr.UUID,
		ParentUUID:        wr.ParentUUID,
		IsSidechain:       wr.IsSidechain,
		ProgressToolUseID: wr.ToolUseID,
		ProgressAgentID:   wr.AgentID,
	}

	if len(wr.Message) == 0 {
		return rec, nil
	}

	var msg wireMessage
	if err := json.Unmarshal(wr.Message, &msg); err != nil {
		return Record{}, err
	}
	rec.Role = msg.Role

	blocks, err := decodeContent(msg.Content)
	if err != nil {
		return Record{}, err
	}
	rec.Content = blocks
	return rec, nil
}

// decodeContent unmarshals a message's content field, which is either a
// plain string (treated as a single text block) or an array of blocks.
func decodeContent(raw json.RawMessage) ([]ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return []ContentBlock{{Type: BlockText, Text: s}}, nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].Type == BlockToolResult && len(blocks[i].ToolResultRaw) > 0 {
			blocks[i].ToolResultText = stringifyToolResult(blocks[i].ToolResultRaw)
		}
	}
	return blocks, nil
}

// stringifyToolResult renders a tool_result's content field (a string, or an
// array of {type, text} blocks) into flat text.
func stringifyToolResult(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		out := ""
		for _, b := range blocks {
			out += b.Text
		}
		return out
	}
	return string(raw)
}

// isNoise reports whether a record's type is dropped outright.
func isNoise(t RecordType) bool {
	return noiseTypes[t]
}

// interruptionMarker is the literal prefix transcripts use to flag a
// system-injected interruption notice riding on an otherwise user-typed
// record (e.g. the user hit ctrl-c mid-turn).
const interruptionMarker = "[Request interrupted"

// isSystemInterruption reports whether a user-typed record is a system
// interruption notice rather than genuine user content (spec.md §4.1
// "A new turn begins when... not a system interruption notice").
func isSystemInterruption(r Record) bool {
	if r.Type != RecordUser {
		return false
	}
	for _, b := range r.Content {
		if b.Type == BlockText && strings.HasPrefix(strings.TrimSpace(b.Text), interruptionMarker) {
			return true
		}
	}
	return false
}
