package chunk

import "strings"

// Group is one packed unit of rendered turn text, still carrying the
// aggregated counts needed to stamp a model.Chunk.
type Group struct {
	Text        string
	TurnIndices []int
	TokenCount  int
	CodeBlocks  int
	ToolUses    int
	HasThinking bool
}

// Pack implements spec.md §4.2's packing algorithm: merge below-minimum
// turns into a growing buffer, split above-maximum turns at their nearest
// boundary, and flush the buffer whenever the next piece would overflow it.
func Pack(turns []RenderedTurn, maxTokens, minTokens int, registry *LanguageRegistry) []Group {
	var groups []Group
	var buf Group

	flush := func() {
		if len(buf.TurnIndices) > 0 {
			buf.Text = strings.TrimRight(buf.Text, "\n")
			groups = append(groups, buf)
			buf = Group{}
		}
	}

	for i, rt := range turns {
		switch {
		case rt.TokenCount > maxTokens:
			flush()
			pieces := splitOversizedText(rt.Text, maxTokens, registry)
			for _, piece := range pieces {
				groups = append(groups, Group{
					Text:        piece,
					TurnIndices: []int{i},
					TokenCount:  EstimateTokens(piece),
					CodeBlocks:  countFencedCodeBlocks(piece),
					ToolUses:    rt.ToolUses,
					HasThinking: rt.HasThinking,
				})
			}

		case rt.TokenCount < minTokens:
			if buf.TokenCount+rt.TokenCount <= maxTokens {
				appendToGroup(&buf, rt, i)
			} else {
				flush()
				appendToGroup(&buf, rt, i)
			}

		default:
			if buf.TokenCount+rt.TokenCount > maxTokens {
				flush()
			}
			appendToGroup(&buf, rt, i)
		}
	}
	flush()
	return groups
}

func appendToGroup(g *Group, rt RenderedTurn, turnIndex int) {
	g.Text += rt.Text
	g.TurnIndices = append(g.TurnIndices, turnIndex)
	g.TokenCount += rt.TokenCount
	g.CodeBlocks += rt.CodeBlocks
	g.ToolUses += rt.ToolUses
	g.HasThinking = g.HasThinking || rt.HasThinking
}
