// Package intervention implements the autonomous control loop that
// decides when and how to proactively contact the user about their
// portfolio.
//
// Per intervention the state machine is:
//
//	created → dispatched → {responded | expired}
//
// Responded and expired are terminal; expiry happens after a fixed
// response window. Every evaluation cycle reads fresh state, computes
// drift, gates on cooldown and the weekly cap, selects a type with an
// epsilon-greedy policy biased toward historically effective types,
// composes copy (with template fallback), dispatches, and persists.
//
// Cycles may be triggered by three independent paths — a one-shot timer
// after the snapshot refreshes, the background scheduler, and a manual
// "run now" — which race freely. An in-flight guard makes them mutually
// exclusive: a concurrently requested cycle short-circuits instead of
// double-evaluating.
package intervention

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finsight/finsight/internal/agents"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/phrasing"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("finsight/intervention")

// Response event errors, surfaced at the API boundary.
var (
	ErrAlreadyResponded      = errors.New("intervention already responded")
	ErrResponseWindowElapsed = errors.New("response window elapsed")
)

// milestoneMarks are the emergency-fund progress points worth celebrating.
var milestoneMarks = []int{25, 50, 75, 100}

// goalCheckLeadTime is how close a goal date must be before a goal_check
// trigger qualifies.
const goalCheckLeadTime = 30 * 24 * time.Hour

// Notifier delivers a composed notification. Satisfied by
// *notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// Outcome explains what one evaluation cycle did.
type Outcome struct {
	Trigger      string               `json:"trigger"`
	Ran          bool                 `json:"ran"`
	SkipReason   string               `json:"skip_reason,omitempty"`
	Drift        float64              `json:"drift"`
	Intervention *models.Intervention `json:"intervention,omitempty"`
}

// Controller is the intervention control loop.
type Controller struct {
	store    store.Store
	notifier Notifier
	composer phrasing.Composer
	cfg      config.ControllerConfig
	now      agents.Clock

	// randFloat drives exploration; injectable for deterministic tests.
	randFloat func() float64

	// inFlight guards one evaluation at a time across trigger paths.
	inFlight atomic.Bool

	// mu serializes state read-modify-write sequences between evaluation
	// cycles and response events, so neither overwrites the other's fields.
	mu sync.Mutex
}

// New creates a controller. now and randFloat may be nil for the wall
// clock and math/rand.
func New(s store.Store, notifier Notifier, composer phrasing.Composer, cfg config.ControllerConfig, now agents.Clock, randFloat func() float64) *Controller {
	if now == nil {
		now = time.Now
	}
	if randFloat == nil {
		randFloat = rand.Float64
	}
	if composer == nil {
		composer = phrasing.TemplateComposer{}
	}
	return &Controller{
		store:     s,
		notifier:  notifier,
		composer:  composer,
		cfg:       cfg,
		now:       now,
		randFloat: randFloat,
	}
}

// RunCycle performs one guarded evaluation. trigger names the path that
// requested it ("post_snapshot", "background", "manual") for logging.
// I/O failures abandon the cycle without partial writes; the next
// scheduled trigger retries.
func (c *Controller) RunCycle(ctx context.Context, trigger string) (Outcome, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		log.Debug().Str("trigger", trigger).Msg("Evaluation already in flight, skipping")
		return Outcome{Trigger: trigger, SkipReason: "evaluation_in_flight"}, nil
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "intervention.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("trigger", trigger))

	out, err := c.evaluate(ctx, trigger)
	if err != nil {
		log.Warn().Err(err).Str("trigger", trigger).Msg("Evaluation cycle abandoned")
		return out, err
	}

	ev := log.Info().Str("trigger", trigger).Bool("ran", out.Ran).Float64("drift", out.Drift)
	if out.SkipReason != "" {
		ev = ev.Str("skip_reason", out.SkipReason)
	}
	if out.Intervention != nil {
		ev = ev.Str("intervention_type", string(out.Intervention.Type))
	}
	ev.Msg("Evaluation cycle complete")
	return out, nil
}

// evaluate is the unguarded cycle body.
func (c *Controller) evaluate(ctx context.Context, trigger string) (Outcome, error) {
	now := c.now().UTC()
	out := Outcome{Trigger: trigger}

	inputs, err := c.store.GetInputs(ctx)
	if err != nil {
		if isNotFound(err) {
			out.SkipReason = "no_inputs"
			return out, nil
		}
		return out, fmt.Errorf("read inputs: %w", err)
	}

	snap, err := c.store.GetSnapshot(ctx)
	if err != nil {
		if isNotFound(err) {
			out.SkipReason = "no_snapshot"
			return out, nil
		}
		return out, fmt.Errorf("read snapshot: %w", err)
	}

	goals, err := c.store.GetGoals(ctx)
	if err != nil && !isNotFound(err) {
		return out, fmt.Errorf("read goals: %w", err)
	}

	// Expire first so the state read below reflects settled learning.
	if err := c.expireStale(ctx, now); err != nil {
		return out, fmt.Errorf("expire stale interventions: %w", err)
	}

	state, err := c.loadState(ctx, now)
	if err != nil {
		return out, fmt.Errorf("read agent state: %w", err)
	}

	// Drift against the stated target; goals take precedence over the
	// allocation embedded in inputs.
	target := inputs.TargetAllocation
	if goals != nil && len(goals.TargetAllocation) > 0 {
		target = goals.TargetAllocation
	}
	drift, driftClass := agents.AllocationDrift(inputs.CurrentAllocation, target)
	out.Drift = drift

	milestoneMark := nextMilestone(snap.EmergencyFundProgress, state)
	qualified := c.qualifiedTypes(inputs, snap, goals, drift, milestoneMark, now)
	if len(qualified) == 0 {
		out.SkipReason = "no_trigger"
		return out, nil
	}

	// Gate: cooldown, then the weekly cap over a true sliding 7-day
	// window so overlapping trigger paths can never exceed it.
	if state.CooldownUntil != nil && now.Before(*state.CooldownUntil) {
		out.SkipReason = "cooldown"
		return out, nil
	}
	weekAgo := now.Add(-7 * 24 * time.Hour)
	recent, err := c.store.ListInterventionsSince(ctx, weekAgo)
	if err != nil {
		return out, fmt.Errorf("count recent interventions: %w", err)
	}
	if len(recent) >= c.cfg.WeeklyCap {
		out.SkipReason = "weekly_cap"
		return out, nil
	}

	ivType := c.selectType(qualified, state)

	copyText := c.composer.Compose(ctx, phrasing.Material{
		Type:          ivType,
		Snapshot:      *snap,
		Drift:         drift,
		DriftClass:    driftClass,
		MilestoneMark: milestoneMark,
		GoalDate:      goalDate(goals),
	})

	iv := &models.Intervention{
		ID:        uuid.New().String(),
		Type:      ivType,
		Title:     copyText.Title,
		Message:   copyText.Message,
		Status:    models.InterventionDispatched,
		CreatedAt: now,
	}

	if err := c.notifier.Dispatch(ctx, models.Notification{
		Title:          iv.Title,
		Body:           iv.Message,
		InterventionID: iv.ID,
		Type:           iv.Type,
		Timestamp:      now,
	}); err != nil {
		return out, fmt.Errorf("dispatch notification: %w", err)
	}

	if err := c.store.CreateIntervention(ctx, iv); err != nil {
		return out, fmt.Errorf("persist intervention: %w", err)
	}

	cooldownUntil := now.Add(c.cfg.Cooldown)
	state.WeeklyInterventionCount = len(recent) + 1
	state.WeekStart = weekAgo
	state.LastInterventionAt = &now
	state.CooldownUntil = &cooldownUntil
	if ivType == models.InterventionMilestone && milestoneMark > 0 {
		state.MilestonesReached = append(state.MilestonesReached, milestoneMark)
	}
	state.UpdatedAt = now
	bumpTypeStats(state, ivType)
	if err := c.store.PutAgentState(ctx, state); err != nil {
		return out, fmt.Errorf("persist agent state: %w", err)
	}

	out.Ran = true
	out.Intervention = iv
	return out, nil
}

// RecordResponse marks an intervention responded (exactly once, within
// the response window) and feeds the engagement signal back into the
// learning state.
func (c *Controller) RecordResponse(ctx context.Context, interventionID, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()

	iv, err := c.store.GetIntervention(ctx, interventionID)
	if err != nil {
		return err
	}

	switch iv.Status {
	case models.InterventionResponded:
		return ErrAlreadyResponded
	case models.InterventionExpired:
		return ErrResponseWindowElapsed
	}

	if now.Sub(iv.CreatedAt) > c.cfg.ResponseWindow {
		iv.Status = models.InterventionExpired
		if err := c.store.UpdateIntervention(ctx, iv); err != nil {
			return fmt.Errorf("expire intervention: %w", err)
		}
		return ErrResponseWindowElapsed
	}

	iv.Status = models.InterventionResponded
	iv.Responded = true
	iv.RespondedAt = &now
	iv.ResponseChannel = channel
	if err := c.store.UpdateIntervention(ctx, iv); err != nil {
		return fmt.Errorf("record response: %w", err)
	}

	log.Info().
		Str("intervention", iv.ID).
		Str("type", string(iv.Type)).
		Str("channel", channel).
		Msg("Intervention response recorded")

	return c.recomputeLearning(ctx, now)
}

// ── Trigger detection & selection ───────────────────────────

// qualifiedTypes returns the intervention types whose triggers currently
// fire, in fixed priority order.
func (c *Controller) qualifiedTypes(in *models.FinancialInputs, snap *models.FinancialSnapshot, goals *models.Goals, drift float64, milestoneMark int, now time.Time) []models.InterventionType {
	var q []models.InterventionType

	if drift > c.cfg.DriftThreshold {
		q = append(q, models.InterventionDriftAlert, models.InterventionRebalanceSuggestion)
	}
	if goals != nil && goals.MonthlyContributionTarget > 0 && in.SavingsContribution < goals.MonthlyContributionTarget {
		q = append(q, models.InterventionContributionReminder)
	}
	if milestoneMark > 0 {
		q = append(q, models.InterventionMilestone)
	}
	if gd := goalDate(goals); gd != nil {
		until := gd.Sub(now)
		if until > 0 && until <= goalCheckLeadTime {
			q = append(q, models.InterventionGoalCheck)
		}
	}
	return q
}

// selectType applies the epsilon-greedy policy: with probability epsilon
// explore uniformly among qualified types; otherwise exploit the
// highest-priority qualified type that has proven effective, falling
// back to plain priority order when none has.
func (c *Controller) selectType(qualified []models.InterventionType, state *models.AgentState) models.InterventionType {
	if c.randFloat() < c.cfg.Epsilon {
		return qualified[int(c.randFloat()*float64(len(qualified)))%len(qualified)]
	}
	for _, t := range qualified {
		if state.IsEffective(t) {
			return t
		}
	}
	return qualified[0]
}

// nextMilestone returns the lowest uncelebrated emergency-fund mark the
// current progress has crossed, or 0.
func nextMilestone(progress float64, state *models.AgentState) int {
	for _, mark := range milestoneMarks {
		if progress >= float64(mark) && !state.MilestoneReached(mark) {
			return mark
		}
	}
	return 0
}

// ── Helpers ─────────────────────────────────────────────────

// loadState returns the persisted learning state, or a fresh one.
func (c *Controller) loadState(ctx context.Context, now time.Time) (*models.AgentState, error) {
	state, err := c.store.GetAgentState(ctx)
	if err != nil {
		if isNotFound(err) {
			return &models.AgentState{
				WeekStart: now,
				TypeStats: make(map[models.InterventionType]models.TypeStats),
				UpdatedAt: now,
			}, nil
		}
		return nil, err
	}
	if state.TypeStats == nil {
		state.TypeStats = make(map[models.InterventionType]models.TypeStats)
	}
	return state, nil
}

// expireStale transitions dispatched interventions past the response
// window to expired, so they count against effectiveness.
func (c *Controller) expireStale(ctx context.Context, now time.Time) error {
	ivs, err := c.store.ListInterventions(ctx, c.cfg.WindowSize*2)
	if err != nil {
		return err
	}
	expired := false
	for i := range ivs {
		iv := ivs[i]
		if iv.Status == models.InterventionDispatched && now.Sub(iv.CreatedAt) > c.cfg.ResponseWindow {
			iv.Status = models.InterventionExpired
			if err := c.store.UpdateIntervention(ctx, &iv); err != nil {
				return err
			}
			expired = true
		}
	}
	if expired {
		return c.recomputeLearning(ctx, now)
	}
	return nil
}

func goalDate(goals *models.Goals) *time.Time {
	if goals == nil {
		return nil
	}
	return goals.GoalDate
}

func isNotFound(err error) bool {
	var nf *store.ErrNotFound
	return errors.As(err, &nf)
}
