package intervention

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/finsight/finsight/pkg/models"
	"github.com/rs/zerolog/log"
)

// effectivenessThreshold is the trailing response ratio a type must hold
// to enter the effective set.
const effectivenessThreshold = 0.5

// minSamplesForEffectiveness keeps one lucky response from promoting a
// type.
const minSamplesForEffectiveness = 2

// bumpTypeStats records a fresh dispatch immediately so the displayed
// state is consistent before the next full recompute.
func bumpTypeStats(state *models.AgentState, t models.InterventionType) {
	ts := state.TypeStats[t]
	ts.Dispatched++
	state.TypeStats[t] = ts
}

// recomputeLearning rebuilds the rolling response rate and the per-type
// effectiveness set over the trailing window of dispatched interventions.
// Recomputing from the store (rather than incrementing counters) keeps
// the math correct when interventions expire out of order and shrinks
// the read-modify-write race window to a single state write.
func (c *Controller) recomputeLearning(ctx context.Context, now time.Time) error {
	state, err := c.loadState(ctx, now)
	if err != nil {
		return fmt.Errorf("read agent state: %w", err)
	}

	ivs, err := c.store.ListInterventions(ctx, c.cfg.WindowSize)
	if err != nil {
		return fmt.Errorf("list trailing interventions: %w", err)
	}

	stats := make(map[models.InterventionType]models.TypeStats)
	total, responded := 0, 0
	for _, iv := range ivs {
		// Only settled or in-window dispatches count toward the rate.
		switch iv.Status {
		case models.InterventionDispatched, models.InterventionResponded, models.InterventionExpired:
		default:
			continue
		}
		total++
		ts := stats[iv.Type]
		ts.Dispatched++
		if iv.Status == models.InterventionResponded {
			responded++
			ts.Responded++
		}
		stats[iv.Type] = ts
	}

	state.TypeStats = stats
	if total > 0 {
		state.UserResponseRate = float64(responded) / float64(total)
	} else {
		state.UserResponseRate = 0
	}

	var effective []models.InterventionType
	for t, ts := range stats {
		if ts.Dispatched >= minSamplesForEffectiveness && ts.ResponseRate() >= effectivenessThreshold {
			effective = append(effective, t)
		}
	}
	sort.Slice(effective, func(i, j int) bool { return effective[i] < effective[j] })
	state.EffectiveInterventionTypes = effective
	state.UpdatedAt = now

	if err := c.store.PutAgentState(ctx, state); err != nil {
		return fmt.Errorf("persist agent state: %w", err)
	}

	log.Debug().
		Float64("response_rate", state.UserResponseRate).
		Int("window", total).
		Int("effective_types", len(effective)).
		Msg("Learning state recomputed")
	return nil
}
