package chunk

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recallgraph/recallgraph/internal/parser"
)

// Section markers delimit a rendered turn's parts so the splitter can cut at
// a boundary instead of mid-sentence (spec.md §4.2 "Rendering").
const (
	markerUser      = "### USER"
	markerThinking  = "### THINKING"
	markerAssistant = "### ASSISTANT"
	markerToolPrefix = "### TOOL: "
)

// toolResultCap is the fixed character cap a tool result is truncated to
// (spec.md §4.2 "Tool results are truncated to a fixed character cap with
// an ellipsis marker").
const toolResultCap = 1000

// salientInputFields are tried in order when summarizing a tool invocation's
// input; the first one present wins (spec.md §4.2 "Tool invocations are
// summarized by a single salient input field").
var salientInputFields = []string{"command", "pattern", "file_path", "path", "query", "url"}

// RenderedTurn is one turn rendered into section-marked text, plus the
// counts the chunker needs to stamp onto the resulting model.Chunk.
type RenderedTurn struct {
	Text        string
	TokenCount  int
	CodeBlocks  int
	ToolUses    int
	HasThinking bool
}

// RenderTurn renders a parser.Turn into marked text per spec.md §4.2.
func RenderTurn(t parser.Turn, includeThinking bool) RenderedTurn {
	var b strings.Builder
	rt := RenderedTurn{}

	if t.UserText != "" {
		b.WriteString(markerUser)
		b.WriteString("\n")
		b.WriteString(t.UserText)
		b.WriteString("\n\n")
	}

	if includeThinking {
		for _, block := range t.AssistantText {
			if block.Type == parser.BlockThinking && block.Text != "" {
				rt.HasThinking = true
				b.WriteString(markerThinking)
				b.WriteString("\n")
				b.WriteString(block.Text)
				b.WriteString("\n\n")
			}
		}
	} else {
		for _, block := range t.AssistantText {
			if block.Type == parser.BlockThinking && block.Text != "" {
				rt.HasThinking = true
			}
		}
	}

	var assistantText strings.Builder
	for _, block := range t.AssistantText {
		if block.Type == parser.BlockText && block.Text != "" {
			assistantText.WriteString(block.Text)
			assistantText.WriteString("\n")
		}
	}
	if assistantText.Len() > 0 {
		b.WriteString(markerAssistant)
		b.WriteString("\n")
		b.WriteString(assistantText.String())
		b.WriteString("\n")
	}
	rt.CodeBlocks = countFencedCodeBlocks(assistantText.String())

	for _, ex := range t.ToolExchanges {
		rt.ToolUses++
		b.WriteString(markerToolPrefix)
		b.WriteString(ex.Use.ToolName)
		b.WriteString("\n")
		b.WriteString(summarizeToolInput(ex.Use.ToolInput))
		b.WriteString("\n")
		if ex.Result != nil {
			b.WriteString(truncateWithEllipsis(ex.Result.ToolResultText, toolResultCap))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	rt.Text = strings.TrimRight(b.String(), "\n") + "\n"
	rt.TokenCount = EstimateTokens(rt.Text)
	return rt
}

// summarizeToolInput picks the first salient field present in a tool_use's
// input, or falls back to a truncated JSON rendering of the whole input.
func summarizeToolInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		for _, key := range salientInputFields {
			if v, ok := fields[key]; ok {
				var s string
				if json.Unmarshal(v, &s) == nil && s != "" {
					return fmt.Sprintf("%s=%s", key, s)
				}
			}
		}
	}
	return truncateWithEllipsis(string(raw), 300)
}

func truncateWithEllipsis(s string, cap int) string {
	if len(s) <= cap {
		return s
	}
	return s[:cap] + "…"
}

func countFencedCodeBlocks(text string) int {
	count := 0
	fenced := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if !fenced {
				count++
			}
			fenced = !fenced
		}
	}
	return count
}

// EstimateTokens approximates a token count from character length (spec.md
// §3 "approximate token count"), using the teacher's TokensPerChar ratio.
func EstimateTokens(s string) int {
	n := len(s) / TokensPerChar
	if n == 0 && s != "" {
		n = 1
	}
	return n
}
