package mcp

import (
	"fmt"
	"strings"

	"github.com/recallgraph/recallgraph/internal/search"
)

// FormatChunkResults renders a flat search result set as markdown.
func FormatChunkResults(query string, chunks []search.RankedChunk) string {
	if len(chunks) == 0 {
		return fmt.Sprintf("No memory found for %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Memory search for %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d chunk", len(chunks))
	if len(chunks) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, c := range chunks {
		formatChunkResult(&sb, i+1, c)
	}

	return sb.String()
}

func formatChunkResult(sb *strings.Builder, num int, c search.RankedChunk) {
	fmt.Fprintf(sb, "### %d. %s [%s] (%s, %d tokens)\n\n",
		num, c.ChunkID, c.Project, c.StartTime.Format("2006-01-02 15:04"), c.TokenCount)
	if c.Source != "" {
		fmt.Fprintf(sb, "_source: %s_\n\n", c.Source)
	}
	sb.WriteString(c.Preview)
	sb.WriteString("\n\n---\n\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
