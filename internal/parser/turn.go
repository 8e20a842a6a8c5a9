package parser

import "time"

// ToolExchange pairs a tool_use block with its matching tool_result, if one
// arrived before the turn closed (spec.md §4.1 "Tool-use blocks and their
// matching tool-result blocks are paired within a turn").
type ToolExchange struct {
	Use    ContentBlock
	Result *ContentBlock // nil if unmatched when the turn closed
}

// Turn is one assembled (user prompt, assistant response) unit.
type Turn struct {
	Index         int
	StartTime     time.Time
	UserText      string
	AssistantText []ContentBlock // ordered assistant text/thinking blocks in emission order
	ToolExchanges []ToolExchange
	HasThinking   bool
	SourceRecords []Record
}

// assembler holds in-progress turn-building state across the main pass.
type assembler struct {
	turns   []Turn
	current *Turn
	pending map[string]int // tool_use id -> index into current.ToolExchanges, unmatched

	// carryUses holds tool_use blocks left unmatched when a turn closed;
	// their results, if they ever arrive, are paired into the NEXT turn
	// (spec.md §4.1 "unmatched tool uses stay pending into the next record").
	carryUses map[string]ContentBlock
}

func newAssembler() *assembler {
	return &assembler{carryUses: make(map[string]ContentBlock)}
}

// feed processes one non-noise record into the in-progress turn state.
func (a *assembler) feed(r Record) {
	if isNoise(r.Type) {
		return
	}

	if r.Type == RecordUser && !isSystemInterruption(r) && hasNonToolResultContent(r) {
		a.closeCurrent()
		a.startTurn(r)
		return
	}

	if a.current == nil {
		// A tool-result-only record arriving before any turn has opened has
		// nowhere to attach; drop it. An assistant record opens a turn with
		// empty user text instead.
		if r.Type != RecordAssistant {
			return
		}
		a.startTurn(r)
		a.current.UserText = ""
		a.appendAssistant(r)
		return
	}

	a.current.SourceRecords = append(a.current.SourceRecords, r)

	switch r.Type {
	case RecordUser:
		// tool-result-only record: match against pending tool uses.
		a.matchResults(r)
	case RecordAssistant:
		a.appendAssistant(r)
	}
}

func hasNonToolResultContent(r Record) bool {
	if len(r.Content) == 0 {
		return false
	}
	for _, b := range r.Content {
		if b.Type != BlockToolResult {
			return true
		}
	}
	return false
}

func (a *assembler) startTurn(r Record) {
	t := &Turn{
		Index:         len(a.turns),
		StartTime:     r.Timestamp,
		SourceRecords: []Record{r},
	}
	for _, b := range r.Content {
		if b.Type == BlockText {
			t.UserText += b.Text
		}
	}
	// carry forward any tool uses left unmatched by the previous turn.
	for id, use := range a.carryUses {
		t.ToolExchanges = append(t.ToolExchanges, ToolExchange{Use: use})
		_ = id
	}
	a.current = t
	a.pending = make(map[string]int, len(t.ToolExchanges))
	for i, ex := range t.ToolExchanges {
		a.pending[ex.Use.ToolUseID] = i
	}
	a.carryUses = make(map[string]ContentBlock)
}

func (a *assembler) appendAssistant(r Record) {
	for _, b := range r.Content {
		switch b.Type {
		case BlockText:
			a.current.AssistantText = append(a.current.AssistantText, b)
		case BlockThinking:
			a.current.HasThinking = true
			a.current.AssistantText = append(a.current.AssistantText, b)
		case BlockToolUse:
			a.current.ToolExchanges = append(a.current.ToolExchanges, ToolExchange{Use: b})
			a.pending[b.ToolUseID] = len(a.current.ToolExchanges) - 1
		}
	}
}

func (a *assembler) matchResults(r Record) {
	for i := range r.Content {
		b := r.Content[i]
		if b.Type != BlockToolResult {
			continue
		}
		if idx, ok := a.pending[b.ToolResultForID]; ok {
			result := b
			a.current.ToolExchanges[idx].Result = &result
			delete(a.pending, b.ToolResultForID)
		}
	}
}

// closeCurrent finalizes the in-progress turn, stashing any tool uses that
// never matched a result so the next turn can inherit them.
func (a *assembler) closeCurrent() {
	if a.current == nil {
		return
	}
	for id, idx := range a.pending {
		a.carryUses[id] = a.current.ToolExchanges[idx].Use
	}
	a.turns = append(a.turns, *a.current)
	a.current = nil
	a.pending = nil
}

// finish flushes any in-progress turn and returns the assembled sequence.
func (a *assembler) finish() []Turn {
	a.closeCurrent()
	return a.turns
}
