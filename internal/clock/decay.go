// Package clock implements the pure-math half of spec.md C11: hop-decay and
// time-decay curves, and the weighted-edge read that combines a stored
// initial weight with a link-count boost and a direction-appropriate decay
// curve.
//
// The shape of a decay curve as a standalone, named, pure function —
// separate from the traversal loop that calls it — is grounded on
// go-libp2p-connmgr's decayingTag (_examples/other_examples/5ecd7581_...
// decay.go.go): there, a tag's decay is a registered DecayFn independent of
// the scheduler that invokes it. recallgraph keeps that separation: Curve is
// a pure function of a hop count (or duration), and the traversal code in
// internal/graph and internal/chain never computes decay inline.
package clock

import (
	"math"
	"time"
)

// Curve maps a hop count (or, for time-decay curves, a rounded duration) to
// a multiplier in [0,1].
type Curve func(hops int) float64

// HoldDecayConfig configures a hold-then-linear-decay curve: the multiplier
// stays at 1.0 until hold hops have elapsed, then decays linearly to 0 by
// diesAt hops.
type HoldDecayConfig struct {
	Hold   int
	DiesAt int
}

// LinearFrom0 returns a curve that is 1.0 at h=0 and decays linearly to 0 at
// h=diesAt. Used for backward (recall) hop-decay per spec.md §4.10.
func LinearFrom0(diesAt int) Curve {
	if diesAt <= 0 {
		diesAt = 1
	}
	return func(hops int) float64 {
		if hops <= 0 {
			return 1.0
		}
		if hops >= diesAt {
			return 0.0
		}
		return 1.0 - float64(hops)/float64(diesAt)
	}
}

// HoldThenLinear returns a curve that holds at 1.0 through cfg.Hold hops,
// then decays linearly to 0 at cfg.DiesAt hops. Used for forward (predict)
// hop-decay per spec.md §4.10.
func HoldThenLinear(cfg HoldDecayConfig) Curve {
	diesAt := cfg.DiesAt
	if diesAt <= cfg.Hold {
		diesAt = cfg.Hold + 1
	}
	return func(hops int) float64 {
		if hops <= cfg.Hold {
			return 1.0
		}
		if hops >= diesAt {
			return 0.0
		}
		span := float64(diesAt - cfg.Hold)
		return 1.0 - float64(hops-cfg.Hold)/span
	}
}

// DefaultBackwardDecay is the default recall-direction hop-decay curve:
// linear from 1.0 at h=0 to 0 at h=10.
func DefaultBackwardDecay() Curve {
	return LinearFrom0(10)
}

// DefaultForwardDecay is the default predict-direction hop-decay curve:
// hold at 1.0 through h=1, linear to 0 at h=20.
func DefaultForwardDecay() Curve {
	return HoldThenLinear(HoldDecayConfig{Hold: 1, DiesAt: 20})
}

// TimeDecayConfig configures the wall-clock fallback curve used when an
// edge carries no usable vector clock (spec.md §4.10 "time-decay fallback").
type TimeDecayConfig struct {
	Hold     time.Duration
	DecaySpan time.Duration
}

// DelayedLinearTime returns a time-based curve: holds at 1.0 for cfg.Hold,
// then decays linearly to 0 over the following cfg.DecaySpan.
func DelayedLinearTime(cfg TimeDecayConfig) func(elapsed time.Duration) float64 {
	return func(elapsed time.Duration) float64 {
		if elapsed <= cfg.Hold {
			return 1.0
		}
		past := elapsed - cfg.Hold
		if cfg.DecaySpan <= 0 || past >= cfg.DecaySpan {
			return 0.0
		}
		return 1.0 - float64(past)/float64(cfg.DecaySpan)
	}
}

// ExponentialHalfLife returns a time-based curve decaying exponentially with
// the given half-life; used for some forward cases per spec.md §4.10.
func ExponentialHalfLife(halfLife time.Duration) func(elapsed time.Duration) float64 {
	return func(elapsed time.Duration) float64 {
		if halfLife <= 0 {
			return 1.0
		}
		return math.Pow(0.5, float64(elapsed)/float64(halfLife))
	}
}

// LinkBoost implements the saturating link-count multiplier.
//
// spec.md §9 Open Question #1 resolution (documented in SPEC_FULL.md §D.1):
// logarithmic growth with a hard cap, rather than a bare constant cap,
// rewards repeated continuation detection without letting a single edge
// dominate traversal.
func LinkBoost(linkCount int, alpha, cap float64) float64 {
	if linkCount <= 1 {
		return 1.0
	}
	boost := 1.0 + alpha*math.Log(float64(linkCount))
	if boost > cap {
		return cap
	}
	return boost
}

// DefaultLinkBoost applies LinkBoost with alpha=0.15, cap=1.5.
func DefaultLinkBoost(linkCount int) float64 {
	return LinkBoost(linkCount, 0.15, 1.5)
}

// EffectiveWeight computes an edge's effective weight at traversal time:
// initialWeight * linkBoost(linkCount) * decay(hops). Pure function, no I/O;
// the caller (internal/graph) supplies the hop count already derived from
// clock algebra, and the decay curve appropriate to the edge's direction.
func EffectiveWeight(initialWeight float64, linkCount int, hops int, decay Curve) float64 {
	return initialWeight * DefaultLinkBoost(linkCount) * decay(hops)
}
