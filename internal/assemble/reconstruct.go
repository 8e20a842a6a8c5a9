package assemble

import (
	"context"
	"sort"
	"time"

	amanerrors "github.com/recallgraph/recallgraph/internal/errors"
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/store"
)

// Reconstruct implements spec.md §4.9 C9: a chronological window over a
// project's chunks, located by session id, absolute time range, days-back,
// or "the session before this one" — and budgeted like recall/predict, but
// never touching the vector or graph machinery (spec.md §4.9 "This path does
// not use vector or graph machinery").
func (a *Assembler) Reconstruct(ctx context.Context, q ReconstructQuery) (ReconstructResponse, error) {
	if q.Project == "" {
		return ReconstructResponse{}, amanerrors.ValidationError("reconstruct requires a project tag", nil)
	}

	sessionIDs, err := a.resolveSessions(ctx, q)
	if err != nil {
		return ReconstructResponse{}, err
	}
	if len(sessionIDs) == 0 {
		return ReconstructResponse{}, amanerrors.NotFoundError("no sessions matched the reconstruct query", nil)
	}

	var all []model.Chunk
	for _, sid := range sessionIDs {
		chunks, err := a.Metadata.ListChunksBySession(ctx, q.Project, sid)
		if err != nil {
			return ReconstructResponse{}, amanerrors.StoreUnavailableError("failed to list session chunks", err)
		}
		all = append(all, chunks...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })

	if !q.From.IsZero() || !q.To.IsZero() {
		all = filterByTime(all, q.From, q.To)
	}

	selected, truncated, total := budgetWindow(all, q.MaxTokens, q.KeepNewest)

	sessions, err := a.Metadata.ListSessions(ctx, q.Project)
	if err != nil {
		return ReconstructResponse{}, amanerrors.StoreUnavailableError("failed to list sessions", err)
	}
	touched := make(map[string]bool, len(sessionIDs))
	for _, sid := range sessionIDs {
		touched[sid] = true
	}
	var summaries []store.SessionSummary
	for _, s := range sessions {
		if touched[s.SessionID] {
			summaries = append(summaries, s)
		}
	}

	var window TimeRange
	if len(selected) > 0 {
		window = TimeRange{From: selected[0].StartTime, To: selected[len(selected)-1].EndTime}
	}

	return ReconstructResponse{
		Chunks:      selected,
		Sessions:    summaries,
		TotalTokens: total,
		Truncated:   truncated,
		TimeRange:   window,
	}, nil
}

// resolveSessions turns one of ReconstructQuery's four locator styles into a
// concrete list of session ids (spec.md §4.9).
func (a *Assembler) resolveSessions(ctx context.Context, q ReconstructQuery) ([]string, error) {
	if q.SessionID != "" {
		return []string{q.SessionID}, nil
	}

	sessions, err := a.Metadata.ListSessions(ctx, q.Project)
	if err != nil {
		return nil, amanerrors.StoreUnavailableError("failed to list sessions", err)
	}

	if q.PreviousSessionOf != "" {
		for i, s := range sessions {
			if s.SessionID == q.PreviousSessionOf && i > 0 {
				return []string{sessions[i-1].SessionID}, nil
			}
		}
		return nil, nil
	}

	if q.DaysBack > 0 {
		cutoff := time.Now().AddDate(0, 0, -q.DaysBack)
		var ids []string
		for _, s := range sessions {
			if s.LastChunkTime.After(cutoff) {
				ids = append(ids, s.SessionID)
			}
		}
		return ids, nil
	}

	if !q.From.IsZero() || !q.To.IsZero() {
		var ids []string
		for _, s := range sessions {
			if sessionOverlaps(s, q.From, q.To) {
				ids = append(ids, s.SessionID)
			}
		}
		return ids, nil
	}

	return nil, amanerrors.ValidationError("reconstruct requires a session id, time range, days-back, or previous-session locator", nil)
}

func sessionOverlaps(s store.SessionSummary, from, to time.Time) bool {
	if !from.IsZero() && s.LastChunkTime.Before(from) {
		return false
	}
	if !to.IsZero() && s.FirstChunkTime.After(to) {
		return false
	}
	return true
}

func filterByTime(chunks []model.Chunk, from, to time.Time) []model.Chunk {
	out := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !from.IsZero() && c.EndTime.Before(from) {
			continue
		}
		if !to.IsZero() && c.StartTime.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// budgetWindow applies the token budget from whichever end keepNewest
// selects (spec.md §4.9 "Applies the same token budget either from newest
// back or from oldest forward, depending on a flag"), returning chunks still
// in chronological order.
func budgetWindow(chunks []model.Chunk, maxTokens int, keepNewest bool) (selected []model.Chunk, truncated bool, total int) {
	if maxTokens <= 0 {
		sum := 0
		for _, c := range chunks {
			sum += c.TokenCount
		}
		return chunks, false, sum
	}

	if keepNewest {
		budget := maxTokens
		var kept []model.Chunk
		for i := len(chunks) - 1; i >= 0; i-- {
			if chunks[i].TokenCount > budget {
				truncated = true
				break
			}
			budget -= chunks[i].TokenCount
			kept = append(kept, chunks[i])
		}
		for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
			kept[i], kept[j] = kept[j], kept[i]
		}
		selected = kept
	} else {
		budget := maxTokens
		for _, c := range chunks {
			if c.TokenCount > budget {
				truncated = true
				break
			}
			budget -= c.TokenCount
			selected = append(selected, c)
		}
	}

	for _, c := range selected {
		total += c.TokenCount
	}
	return selected, truncated, total
}
