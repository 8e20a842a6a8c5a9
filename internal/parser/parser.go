package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Result is one transcript file's assembled output plus the errors
// encountered decoding individual malformed lines along the way.
type Result struct {
	Turns []Turn
	Errs  []error

	// ProgressMappings carries toolUseId -> agentId links read from dropped
	// progress records (spec.md §4.1 "Records of noise types... are
	// dropped"; spec.md §4.3 relies on exactly this mapping to resolve brief
	// points and teammate names, so it is surfaced here rather than
	// discarded with the rest of the noise).
	ProgressMappings map[string]string
}

// ParseMainTranscript streams path and assembles its non-sidechain records
// into turns (spec.md §4.1 "Sidechain records... are skipped by default in
// the main pass").
func ParseMainTranscript(ctx context.Context, path string) (Result, error) {
	records, errs := streamRecords(ctx, path)
	a := newAssembler()
	var collected []error
	progress := make(map[string]string)

	done := false
	for !done {
		select {
		case r, ok := <-records:
			if !ok {
				done = true
				continue
			}
			if r.IsSidechain {
				continue
			}
			if r.Type == RecordProgress && r.ProgressToolUseID != "" && r.ProgressAgentID != "" {
				progress[r.ProgressToolUseID] = r.ProgressAgentID
			}
			a.feed(r)
		case e, ok := <-errs:
			if ok && e != nil {
				var openErr *OpenError
				if errors.As(e, &openErr) {
					return Result{}, e
				}
				collected = append(collected, e)
			}
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	// drain any buffered error left after records closed.
	select {
	case e := <-errs:
		if e != nil {
			collected = append(collected, e)
		}
	default:
	}

	return Result{Turns: a.finish(), Errs: collected, ProgressMappings: progress}, nil
}

// SidechainDir returns the conventional sibling directory holding a main
// transcript's sub-agent files: "<session>.jsonl" pairs with a
// "<session>/" directory of per-sub-agent JSONL files (spec.md §4.1 "read
// in a separate pass from a sibling directory").
func SidechainDir(mainPath string) string {
	ext := filepath.Ext(mainPath)
	return strings.TrimSuffix(mainPath, ext)
}

// SubAgentFile is one sidechain transcript discovered alongside the main
// file, identified by its file basename (the sub-agent id).
type SubAgentFile struct {
	AgentID string
	Path    string
}

// DiscoverSidechains lists the sub-agent transcript files in a main
// transcript's sibling directory, sorted by agent id for determinism. A
// missing directory is not an error: most sessions spawn no sub-agents.
func DiscoverSidechains(mainPath string) ([]SubAgentFile, error) {
	dir := SidechainDir(mainPath)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sidechain dir %s: %w", dir, err)
	}

	var files []SubAgentFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		agentID := strings.TrimSuffix(e.Name(), ".jsonl")
		files = append(files, SubAgentFile{AgentID: agentID, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].AgentID < files[j].AgentID })
	return files, nil
}

// ParseSidechain streams and assembles one sub-agent's own transcript file.
// A sidechain file is itself a self-contained record stream — there is no
// further nested sidechain filter to apply.
func ParseSidechain(ctx context.Context, path string) (Result, error) {
	return ParseMainTranscript(ctx, path)
}

// IsDeadEnd reports whether a sub-agent's turns look like a dead end: very
// short, with no assistant content in its first turns (spec.md §4.3 "Dead-
// end sub-agent files... are excluded"). The topology detector calls this
// to decide whether to wire brief/debrief edges for a sub-agent at all.
func IsDeadEnd(turns []Turn) bool {
	const shortThreshold = 2
	if len(turns) >= shortThreshold {
		return false
	}
	for _, t := range turns {
		if len(t.AssistantText) > 0 || len(t.ToolExchanges) > 0 {
			return false
		}
	}
	return true
}
