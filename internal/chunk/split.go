package chunk

import (
	"context"
	"regexp"
	"strings"
)

// sectionMarkerRe matches any of the render markers at the start of a line,
// used to split an oversized turn's rendered text back into its sections
// (spec.md §4.2 rule 4: "split that turn's rendered text at section-marker
// boundaries (preferred)").
var sectionMarkerRe = regexp.MustCompile(`(?m)^(### (?:USER|THINKING|ASSISTANT|TOOL: .*))$`)

// fencedCodeBlockRe finds fenced code blocks with an optional language tag,
// used to locate oversized embedded code for tree-sitter-assisted splitting
// (SPEC_FULL.md §B tree-sitter wiring).
var fencedCodeBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)\\n```")

// codeBlockSplitThreshold is the token size above which a fenced code block
// inside an oversized section is parsed with tree-sitter rather than simply
// cut at a paragraph boundary.
const codeBlockSplitThreshold = 200

// splitOversizedText splits one turn's rendered text into pieces that each
// fit within maxTokens, preferring section-marker boundaries, falling back
// to paragraph boundaries within an oversized section.
func splitOversizedText(text string, maxTokens int, registry *LanguageRegistry) []string {
	sections := splitAtMarkers(text)
	if len(sections) <= 1 {
		return splitAtParagraphs(text, maxTokens, registry)
	}

	var pieces []string
	var buf strings.Builder
	bufTokens := 0

	flush := func() {
		if buf.Len() > 0 {
			pieces = append(pieces, strings.TrimRight(buf.String(), "\n"))
			buf.Reset()
			bufTokens = 0
		}
	}

	for _, sec := range sections {
		secTokens := EstimateTokens(sec)
		if secTokens > maxTokens {
			flush()
			pieces = append(pieces, splitAtParagraphs(sec, maxTokens, registry)...)
			continue
		}
		if bufTokens+secTokens > maxTokens {
			flush()
		}
		buf.WriteString(sec)
		buf.WriteString("\n")
		bufTokens += secTokens
	}
	flush()
	return pieces
}

// splitAtMarkers splits rendered text into its section-marker-delimited
// pieces, each piece starting with its marker line.
func splitAtMarkers(text string) []string {
	locs := sectionMarkerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var sections []string
	for i, loc := range locs {
		start := loc[0]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, strings.TrimRight(text[start:end], "\n"))
	}
	return sections
}

// splitAtParagraphs splits a section at blank-line paragraph boundaries
// (spec.md §4.2 rule 4 fallback), further splitting any paragraph that is
// itself an oversized fenced code block via splitCodeBlock.
func splitAtParagraphs(text string, maxTokens int, registry *LanguageRegistry) []string {
	paragraphs := mergeFencedParagraphs(strings.Split(text, "\n\n"))

	var pieces []string
	var buf strings.Builder
	bufTokens := 0

	flush := func() {
		if buf.Len() > 0 {
			pieces = append(pieces, strings.TrimRight(buf.String(), "\n"))
			buf.Reset()
			bufTokens = 0
		}
	}

	for _, p := range paragraphs {
		pTokens := EstimateTokens(p)
		if pTokens > maxTokens {
			flush()
			pieces = append(pieces, splitOversizedParagraph(p, maxTokens, registry)...)
			continue
		}
		if bufTokens+pTokens > maxTokens {
			flush()
		}
		buf.WriteString(p)
		buf.WriteString("\n\n")
		bufTokens += pTokens
	}
	flush()
	if len(pieces) == 0 {
		return []string{text}
	}
	return pieces
}

// mergeFencedParagraphs rejoins paragraphs that a naive "\n\n" split cut in
// the middle of a fenced code block.
func mergeFencedParagraphs(paragraphs []string) []string {
	var out []string
	var open strings.Builder
	inFence := false

	for _, p := range paragraphs {
		fences := strings.Count(p, "```")
		if inFence {
			open.WriteString("\n\n")
			open.WriteString(p)
			if fences%2 == 1 {
				inFence = false
				out = append(out, open.String())
				open.Reset()
			}
			continue
		}
		if fences%2 == 1 {
			inFence = true
			open.WriteString(p)
			continue
		}
		out = append(out, p)
	}
	if open.Len() > 0 {
		out = append(out, open.String())
	}
	return out
}

// splitOversizedParagraph handles a single paragraph too big for maxTokens.
// If it is (or contains) a fenced code block above codeBlockSplitThreshold,
// it is parsed with tree-sitter and cut at the nearest symbol boundary;
// otherwise it is cut at plain line boundaries as a last resort.
func splitOversizedParagraph(p string, maxTokens int, registry *LanguageRegistry) []string {
	if m := fencedCodeBlockRe.FindStringSubmatch(p); m != nil && EstimateTokens(m[2]) > codeBlockSplitThreshold {
		lang, ok := registry.GetByName(normalizeFenceLang(m[1]))
		if ok {
			if pieces := splitCodeBlock(m[2], lang.Name, maxTokens, registry); pieces != nil {
				wrapped := make([]string, len(pieces))
				for i, piece := range pieces {
					wrapped[i] = "```" + m[1] + "\n" + piece + "\n```"
				}
				return wrapped
			}
		}
	}
	return splitAtLines(p, maxTokens)
}

// splitAtLines is the last-resort splitter: accumulate lines until the
// token budget would be exceeded.
func splitAtLines(p string, maxTokens int) []string {
	lines := strings.Split(p, "\n")
	var pieces []string
	var buf strings.Builder
	bufTokens := 0
	for _, l := range lines {
		lTokens := EstimateTokens(l)
		if bufTokens > 0 && bufTokens+lTokens > maxTokens {
			pieces = append(pieces, strings.TrimRight(buf.String(), "\n"))
			buf.Reset()
			bufTokens = 0
		}
		buf.WriteString(l)
		buf.WriteString("\n")
		bufTokens += lTokens
	}
	if buf.Len() > 0 {
		pieces = append(pieces, strings.TrimRight(buf.String(), "\n"))
	}
	if len(pieces) == 0 {
		return []string{p}
	}
	return pieces
}

// splitCodeBlock parses source with tree-sitter and groups consecutive
// top-level symbols into pieces that each fit maxTokens, preferring a
// function/method boundary over a raw paragraph break. Returns nil if the
// language has no tree-sitter grammar or parsing fails, letting the caller
// fall back to splitAtLines.
func splitCodeBlock(source, language string, maxTokens int, registry *LanguageRegistry) []string {
	p := NewParserWithRegistry(registry)
	defer p.Close()

	tree, err := p.Parse(context.Background(), []byte(source), language)
	if err != nil || tree == nil {
		return nil
	}

	extractor := NewSymbolExtractorWithRegistry(registry)
	symbols := extractor.Extract(tree, []byte(source))
	if len(symbols) == 0 {
		return nil
	}

	lines := strings.Split(source, "\n")
	var pieces []string
	start := 0
	bufTokens := 0
	for _, sym := range symbols {
		end := sym.EndLine // 1-indexed inclusive
		if end > len(lines) {
			end = len(lines)
		}
		piece := strings.Join(lines[start:end], "\n")
		pieceTokens := EstimateTokens(piece)
		if bufTokens > 0 && bufTokens+pieceTokens > maxTokens {
			pieces = append(pieces, strings.Join(lines[start:sym.StartLine-1], "\n"))
			start = sym.StartLine - 1
			bufTokens = 0
		}
		bufTokens += pieceTokens
	}
	if start < len(lines) {
		pieces = append(pieces, strings.Join(lines[start:], "\n"))
	}
	return pieces
}

func normalizeFenceLang(tag string) string {
	switch strings.ToLower(tag) {
	case "js":
		return "javascript"
	case "ts":
		return "typescript"
	case "py":
		return "python"
	default:
		return strings.ToLower(tag)
	}
}
