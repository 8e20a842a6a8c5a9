package chunk

import (
	"github.com/recallgraph/recallgraph/internal/model"
	"github.com/recallgraph/recallgraph/internal/parser"
)

// AdvanceClock ticks clk once in the human namespace (if the turn produced
// user text) and once in the agent namespace, and returns the resulting
// clock snapshot, never mutating the input (spec.md §4.2 "Clock
// advancement"). Tick order is deterministic: human before agent.
func AdvanceClock(clk model.Clock, t parser.Turn, agentID string) model.Clock {
	next := clk.Clone()
	if t.UserText != "" {
		next.Tick(model.AgentHuman)
	}
	next.Tick(agentID)
	return next
}
