// Package agents implements the four analysis agents that turn a user's
// raw financial inputs into a health snapshot, market context, what-if
// scenarios and a weekly action plan.
//
// Every agent is a pure, total function over its inputs: no I/O, no
// errors, no panics on missing data. Missing or zero-valued fields
// degrade to zero-valued components rather than failing — inputs are
// often partially completed during onboarding.
package agents

import "time"

// Clock supplies the current time. Injected so tests can pin timestamps
// and verify determinism at a fixed instant.
type Clock func() time.Time

// confidence floor/ceiling for completeness-scaled agents.
const (
	minConfidence = 0.5
	maxConfidence = 0.95
)

// confidenceFor scales agent confidence by input completeness. A fully
// blank form still yields a usable (if cautious) result, so the floor is
// well above zero.
func confidenceFor(completeness float64) float64 {
	c := minConfidence + (maxConfidence-minConfidence)*completeness
	if c > maxConfidence {
		return maxConfidence
	}
	if c < minConfidence {
		return minConfidence
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
