// Package pipeline runs the agent analysis pipeline: Reality → Market →
// Scenario → Adaptation, in fixed dependency order, assembling one
// insight per agent for display.
//
// A fault in one agent never aborts the others: every agent call is
// isolated so a panic yields a degraded insight for that agent only and
// the run continues with zero-valued output for that stage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/finsight/finsight/internal/agents"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("finsight/pipeline")

// Result is everything one pipeline run produces for the presentation
// layer.
type Result struct {
	Snapshot  models.FinancialSnapshot `json:"snapshot"`
	Market    agents.MarketContext     `json:"market"`
	Scenarios []models.Scenario        `json:"scenarios"`
	Actions   []models.WeeklyAction    `json:"actions"`
	Insights  []models.AgentInsight    `json:"insights"`
}

// Orchestrator wires the four agents together and persists the derived
// artifacts after each run.
type Orchestrator struct {
	store      store.Store
	reality    *agents.FinancialRealityAgent
	market     *agents.MarketContextAgent
	scenario   *agents.ScenarioLearningAgent
	adaptation *agents.AdaptationAgent
	now        agents.Clock
}

// New creates an orchestrator. source may be nil for the static default
// market feed; now may be nil for the wall clock.
func New(s store.Store, source agents.MarketDataSource, now agents.Clock) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:      s,
		reality:    agents.NewFinancialRealityAgent(now),
		market:     agents.NewMarketContextAgent(now, source),
		scenario:   agents.NewScenarioLearningAgent(now),
		adaptation: agents.NewAdaptationAgent(now),
		now:        now,
	}
}

// Run executes the full pipeline for the given inputs and persists the
// outputs. Identical inputs at the same instant produce identical fields
// except timestamps.
func (o *Orchestrator) Run(ctx context.Context, in models.FinancialInputs) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	start := o.now()
	res := &Result{}

	// Reality (everything downstream depends on the snapshot)
	o.guard("financial_reality", &res.Insights, func() {
		snap, insight := o.reality.Assess(in)
		res.Snapshot = snap
		res.Insights = append(res.Insights, insight)
	})

	// Market context (independent of personal data)
	o.guard("market_context", &res.Insights, func() {
		mkt, insight := o.market.Assess()
		res.Market = mkt
		res.Insights = append(res.Insights, insight)
	})

	// Scenarios
	o.guard("scenario_learning", &res.Insights, func() {
		scenarios, insight := o.scenario.Project(in, res.Snapshot)
		res.Scenarios = scenarios
		res.Insights = append(res.Insights, insight)
	})

	// Weekly plan
	o.guard("adaptation", &res.Insights, func() {
		actions, insight := o.adaptation.Plan(in, res.Snapshot)
		res.Actions = actions
		res.Insights = append(res.Insights, insight)
	})

	// Carry completion flags forward: action IDs are stable per rule, so
	// a regenerated action the user already completed stays completed.
	if prev, err := o.store.GetActions(ctx); err == nil {
		mergeCompletion(res.Actions, prev)
	}

	if err := o.persist(ctx, res); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("health_score", res.Snapshot.HealthScore),
		attribute.Int("actions", len(res.Actions)),
	)
	log.Info().
		Int("health_score", res.Snapshot.HealthScore).
		Str("health_label", string(res.Snapshot.HealthLabel)).
		Int("scenarios", len(res.Scenarios)).
		Int("actions", len(res.Actions)).
		Dur("elapsed", o.now().Sub(start)).
		Msg("Pipeline run complete")

	return res, nil
}

// guard runs one agent stage, converting a panic into a degraded insight
// so the remaining stages still run.
func (o *Orchestrator) guard(agent string, insights *[]models.AgentInsight, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("agent", agent).Interface("panic", r).Msg("Agent stage failed")
			*insights = append(*insights, models.AgentInsight{
				Agent:      agent,
				Timestamp:  o.now().UTC(),
				Message:    fmt.Sprintf("The %s analysis is temporarily unavailable.", agent),
				Reasoning:  fmt.Sprintf("agent stage panicked: %v", r),
				Confidence: 0,
			})
		}
	}()
	fn()
}

func (o *Orchestrator) persist(ctx context.Context, res *Result) error {
	if err := o.store.PutSnapshot(ctx, &res.Snapshot); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	if err := o.store.PutScenarios(ctx, res.Scenarios); err != nil {
		return fmt.Errorf("persist scenarios: %w", err)
	}
	if err := o.store.PutActions(ctx, res.Actions); err != nil {
		return fmt.Errorf("persist actions: %w", err)
	}
	if err := o.store.PutInsights(ctx, res.Insights); err != nil {
		return fmt.Errorf("persist insights: %w", err)
	}
	return nil
}

func mergeCompletion(current []models.WeeklyAction, previous []models.WeeklyAction) {
	done := make(map[string]bool, len(previous))
	for _, p := range previous {
		if p.Completed {
			done[p.ID] = true
		}
	}
	for i := range current {
		if done[current[i].ID] {
			current[i].Completed = true
		}
	}
}
