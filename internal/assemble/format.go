package assemble

import (
	"fmt"
	"strings"

	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/search"
)

const chunkSeparator = "\n---\n"

// truncateTrailingBudget is the minimum leftover budget (in tokens) below
// which the assembler drops the final chunk entirely rather than truncating
// it at a paragraph boundary (spec.md §4.8 "if the leftover budget is large
// enough (>100 tokens)").
const truncateTrailingBudget = 100

// formatChunks renders an ordered chunk list into recall/predict's `text`
// field: each chunk gets a `[i/N | project | agent? | date]` header, chunks
// are joined by a separator line, and the whole thing is greedily
// token-budgeted (spec.md §4.8 "Token budgeting").
func formatChunks(chunks []model.Chunk, tokenBudget int) (text string, tokenCount int, truncated bool) {
	if len(chunks) == 0 {
		return "", 0, false
	}

	n := len(chunks)
	var parts []string
	budget := tokenBudget

	for i, c := range chunks {
		header := chunkHeader(i+1, n, c)
		body := c.Text
		cost := c.TokenCount

		if tokenBudget <= 0 {
			parts = append(parts, header+"\n"+body)
			tokenCount += cost
			continue
		}

		if cost <= budget {
			parts = append(parts, header+"\n"+body)
			tokenCount += cost
			budget -= cost
			continue
		}

		// This chunk doesn't fit whole. Truncate it at a paragraph boundary
		// if there's enough budget left to make truncation worthwhile;
		// otherwise drop it and stop (spec.md §4.8).
		if budget > truncateTrailingBudget {
			clipped := truncateAtParagraph(body, budget)
			parts = append(parts, header+" (truncated)\n"+clipped)
			tokenCount += estimateTokens(clipped)
			truncated = true
		} else {
			truncated = true
		}
		break
	}

	return strings.Join(parts, chunkSeparator), tokenCount, truncated
}

func chunkHeader(i, n int, c model.Chunk) string {
	date := c.StartTime.Format("2006-01-02 15:04")
	if c.AgentID != "" && c.AgentID != model.AgentMain {
		return fmt.Sprintf("[%d/%d | %s | %s | %s]", i, n, c.Project, c.AgentID, date)
	}
	return fmt.Sprintf("[%d/%d | %s | %s]", i, n, c.Project, date)
}

// truncateAtParagraph cuts text to roughly budget tokens, preferring the
// nearest preceding blank-line paragraph boundary so a truncated chunk still
// reads as complete prose/code up to the cut (spec.md §4.8).
func truncateAtParagraph(text string, budget int) string {
	approxChars := budget * 4 // same tokens-per-char estimate used elsewhere in the pipeline
	if approxChars >= len(text) {
		return text
	}
	cut := text[:approxChars]
	if idx := strings.LastIndex(cut, "\n\n"); idx > 0 {
		return cut[:idx]
	}
	if idx := strings.LastIndex(cut, "\n"); idx > 0 {
		return cut[:idx]
	}
	return cut
}

func estimateTokens(s string) int {
	return len(s) / 4
}

// sourceBreakdown tallies how many result chunks each retrieval source
// contributed, for search()'s `sourceBreakdown` field (spec.md §6).
func sourceBreakdown(chunks []search.RankedChunk) map[string]int {
	out := make(map[string]int)
	for _, c := range chunks {
		out[string(c.Source)]++
	}
	return out
}
