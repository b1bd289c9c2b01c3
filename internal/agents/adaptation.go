package agents

import (
	"fmt"
	"math"
	"time"

	"github.com/finsight/finsight/pkg/models"
)

// maxWeeklyActions caps the plan so the user sees a short, doable list.
const maxWeeklyActions = 3

// Rule thresholds for the priority ladder.
const (
	highDebtRatioPct     = 20.0
	savingsRateFloorPct  = 20.0
	diversificationGapPP = 10.0
)

// AdaptationAgent produces the prioritized weekly action list by
// evaluating a fixed rule ladder in order until the cap is reached:
// emergency shortfall > high debt > low savings rate > diversification
// gap > generic check-in.
type AdaptationAgent struct {
	now Clock
}

func NewAdaptationAgent(now Clock) *AdaptationAgent {
	if now == nil {
		now = time.Now
	}
	return &AdaptationAgent{now: now}
}

func (a *AdaptationAgent) Name() string { return "adaptation" }

// Plan evaluates the rule ladder. Every action's reasoning cites the
// numeric condition that fired it. Action IDs are stable per rule so the
// presentation layer can track completion across regenerations.
func (a *AdaptationAgent) Plan(in models.FinancialInputs, snap models.FinancialSnapshot) ([]models.WeeklyAction, models.AgentInsight) {
	now := a.now().UTC()

	var actions []models.WeeklyAction
	add := func(act models.WeeklyAction) {
		if len(actions) < maxWeeklyActions {
			actions = append(actions, act)
		}
	}

	if in.EmergencyFundGoal > 0 && snap.EmergencyFundProgress < 100 {
		shortfall := in.EmergencyFundGoal - in.CurrentSavings
		add(models.WeeklyAction{
			ID:          "action-emergency-fund",
			Title:       "Build your emergency fund",
			Description: fmt.Sprintf("Set aside part of this month's disposable income toward the remaining $%.0f.", shortfall),
			Priority:    models.PriorityHigh,
			Category:    "safety_net",
			Reasoning: fmt.Sprintf("Emergency fund is at %.0f%% of the $%.0f goal ($%.0f short).",
				snap.EmergencyFundProgress, in.EmergencyFundGoal, shortfall),
		})
	}

	if snap.DebtToIncome > highDebtRatioPct {
		add(models.WeeklyAction{
			ID:          "action-debt-paydown",
			Title:       "Pay down high-interest debt",
			Description: "Direct extra payments at the highest-rate balance first.",
			Priority:    models.PriorityHigh,
			Category:    "debt",
			Reasoning: fmt.Sprintf("Debt payments consume %.1f%% of income, above the %.0f%% threshold.",
				snap.DebtToIncome, highDebtRatioPct),
		})
	}

	if in.MonthlyIncome > 0 && snap.SavingsRate < savingsRateFloorPct {
		add(models.WeeklyAction{
			ID:          "action-savings-rate",
			Title:       "Raise your savings rate",
			Description: "Automate a slightly larger transfer on payday.",
			Priority:    models.PriorityMedium,
			Category:    "savings",
			Reasoning: fmt.Sprintf("Savings rate is %.1f%%, below the %.0f%% target.",
				snap.SavingsRate, savingsRateFloorPct),
		})
	}

	if gap, class := AllocationDrift(in.CurrentAllocation, in.TargetAllocation); gap > diversificationGapPP {
		add(models.WeeklyAction{
			ID:          "action-diversify",
			Title:       "Close your diversification gap",
			Description: fmt.Sprintf("Review your %s allocation against the target mix.", class),
			Priority:    models.PriorityMedium,
			Category:    "allocation",
			Reasoning: fmt.Sprintf("%s is %.1f percentage points off target, above the %.0f pp tolerance.",
				class, gap, diversificationGapPP),
		})
	}

	if len(actions) == 0 {
		add(models.WeeklyAction{
			ID:          "action-checkin",
			Title:       "Quick weekly check-in",
			Description: "Skim your spending for the week and confirm nothing drifted.",
			Priority:    models.PriorityLow,
			Category:    "habit",
			Reasoning:   "No rule thresholds were breached this week.",
		})
	}

	insight := models.AgentInsight{
		Agent:      a.Name(),
		Timestamp:  now,
		Message:    fmt.Sprintf("Your weekly focus has %d item(s), led by %q.", len(actions), actions[0].Title),
		Reasoning:  "Rules evaluated in priority order: emergency shortfall, debt load, savings rate, diversification, check-in.",
		Confidence: confidenceFor(in.Completeness()),
	}

	return actions, insight
}

// AllocationDrift returns the largest absolute percentage-point deviation
// between current and target allocation, and the asset class it occurs
// in. Classes missing from either side count from zero. The intervention
// controller shares this definition for its drift gate.
func AllocationDrift(current, target map[string]float64) (float64, string) {
	classes := make(map[string]struct{}, len(current)+len(target))
	for c := range current {
		classes[c] = struct{}{}
	}
	for c := range target {
		classes[c] = struct{}{}
	}

	var worst float64
	var worstClass string
	for c := range classes {
		gap := math.Abs(current[c] - target[c])
		if gap > worst {
			worst = gap
			worstClass = c
		}
	}
	return worst, worstClass
}
