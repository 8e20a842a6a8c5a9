package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func userLine(ts string, text string) string {
	return `{"type":"user","timestamp":"` + ts + `","sessionId":"s1","message":{"role":"user","content":"` + text + `"}}`
}

func TestParseMainTranscriptAssemblesSingleTurn(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{
		userLine("2026-01-01T00:00:00Z", "hello"),
		`{"type":"assistant","timestamp":"2026-01-01T00:00:01Z","sessionId":"s1","message":{"role":"assistant","content":[{"type":"text","text":"hi there"}]}}`,
	})

	res, err := ParseMainTranscript(context.Background(), path)
	require.NoError(t, err)
	require.Empty(t, res.Errs)
	require.Len(t, res.Turns, 1)
	assert.Equal(t, "hello", res.Turns[0].UserText)
	require.Len(t, res.Turns[0].AssistantText, 1)
	assert.Equal(t, "hi there", res.Turns[0].AssistantText[0].Text)
}

func TestParseMainTranscriptPairsToolUseAndResult(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{
		userLine("2026-01-01T00:00:00Z", "run a command"),
		`{"type":"assistant","timestamp":"2026-01-01T00:00:01Z","sessionId":"s1","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu1","name":"Bash","input":{"command":"ls"}}]}}`,
		`{"type":"user","timestamp":"2026-01-01T00:00:02Z","sessionId":"s1","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu1","content":"file1\nfile2"}]}}`,
	})

	res, err := ParseMainTranscript(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Turns, 1)
	require.Len(t, res.Turns[0].ToolExchanges, 1)
	ex := res.Turns[0].ToolExchanges[0]
	assert.Equal(t, "tu1", ex.Use.ToolUseID)
	require.NotNil(t, ex.Result)
	assert.Equal(t, "file1\nfile2", ex.Result.ToolResultText)
}

func TestParseMainTranscriptStartsNewTurnOnUserText(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{
		userLine("2026-01-01T00:00:00Z", "first"),
		`{"type":"assistant","timestamp":"2026-01-01T00:00:01Z","sessionId":"s1","message":{"role":"assistant","content":[{"type":"text","text":"ack"}]}}`,
		userLine("2026-01-01T00:01:00Z", "second"),
	})

	res, err := ParseMainTranscript(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Turns, 2)
	assert.Equal(t, "first", res.Turns[0].UserText)
	assert.Equal(t, "second", res.Turns[1].UserText)
}

func TestParseMainTranscriptSkipsSidechainAndNoiseRecords(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{
		userLine("2026-01-01T00:00:00Z", "hello"),
		`{"type":"progress","timestamp":"2026-01-01T00:00:00Z","sessionId":"s1"}`,
		`{"type":"user","timestamp":"2026-01-01T00:00:00Z","sessionId":"s1","isSidechain":true,"message":{"role":"user","content":"sub agent text"}}`,
		`{"type":"assistant","timestamp":"2026-01-01T00:00:01Z","sessionId":"s1","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}}`,
	})

	res, err := ParseMainTranscript(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Turns, 1)
	assert.Equal(t, "hello", res.Turns[0].UserText)
}

func TestParseMainTranscriptSkipsMalformedLinesWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{
		`not json at all`,
		userLine("2026-01-01T00:00:00Z", "hello"),
	})

	res, err := ParseMainTranscript(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Turns, 1)
	assert.NotEmpty(t, res.Errs)
}

func TestParseMainTranscriptDropsSystemInterruptionNotices(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{
		userLine("2026-01-01T00:00:00Z", "first"),
		`{"type":"assistant","timestamp":"2026-01-01T00:00:01Z","sessionId":"s1","message":{"role":"assistant","content":[{"type":"text","text":"working"}]}}`,
		userLine("2026-01-01T00:00:02Z", "[Request interrupted by user]"),
	})

	res, err := ParseMainTranscript(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Turns, 1)
}

func TestDiscoverSidechainsReturnsNilWhenNoSiblingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(userLine("2026-01-01T00:00:00Z", "hi")+"\n"), 0o644))

	files, err := DiscoverSidechains(path)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestDiscoverSidechainsListsSubAgentFilesSorted(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "t.jsonl")
	require.NoError(t, os.WriteFile(mainPath, []byte(""), 0o644))
	sideDir := SidechainDir(mainPath)
	require.NoError(t, os.MkdirAll(sideDir, 0o755))
	writeTranscript(t, sideDir, "zeta.jsonl", []string{userLine("2026-01-01T00:00:00Z", "x")})
	writeTranscript(t, sideDir, "alpha.jsonl", []string{userLine("2026-01-01T00:00:00Z", "y")})

	files, err := DiscoverSidechains(mainPath)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "alpha", files[0].AgentID)
	assert.Equal(t, "zeta", files[1].AgentID)
}

func TestIsDeadEndDetectsShortFileWithNoAssistantContent(t *testing.T) {
	assert.True(t, IsDeadEnd([]Turn{{UserText: "hi"}}))
	assert.False(t, IsDeadEnd([]Turn{
		{UserText: "hi", AssistantText: []ContentBlock{{Type: BlockText, Text: "ok"}}},
	}))
}

func TestParseMainTranscriptRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{userLine("2026-01-01T00:00:00Z", "hi")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParseMainTranscript(ctx, path)
	assert.Error(t, err)
}

func TestParseMainTranscriptOnMissingFileReturnsOpenError(t *testing.T) {
	_, err := ParseMainTranscript(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	var openErr *OpenError
	assert.True(t, errors.As(err, &openErr))
}
