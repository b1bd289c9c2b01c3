package agents

import (
	"fmt"
	"math"
	"time"

	"github.com/finsight/finsight/pkg/models"
)

// Health score weights. Runway dominates because cash on hand is the
// strongest predictor of surviving an income shock.
const (
	runwayWeight  = 0.40
	savingsWeight = 0.35
	debtWeight    = 0.25

	runwayTargetMonths = 6.0  // full marks at 6 months of runway
	savingsRateTarget  = 20.0 // full marks at a 20% savings rate
	debtRatioCeiling   = 60.0 // zero marks at 60% debt-to-income
)

// FinancialRealityAgent computes the deterministic health snapshot from
// raw inputs.
type FinancialRealityAgent struct {
	now Clock
}

// NewFinancialRealityAgent creates the agent with an injected clock.
func NewFinancialRealityAgent(now Clock) *FinancialRealityAgent {
	if now == nil {
		now = time.Now
	}
	return &FinancialRealityAgent{now: now}
}

// Name returns the agent's display name.
func (a *FinancialRealityAgent) Name() string { return "financial_reality" }

// Assess derives the snapshot and an insight from the inputs. Total
// function: any FinancialInputs value, including the zero value, yields a
// valid snapshot with score in [0,100] and no NaN/Inf fields.
func (a *FinancialRealityAgent) Assess(in models.FinancialInputs) (models.FinancialSnapshot, models.AgentInsight) {
	now := a.now().UTC()

	disposable := in.MonthlyIncome - in.FixedCosts()

	savingsRate := 0.0
	if in.MonthlyIncome > 0 {
		savingsRate = 100 * in.SavingsContribution / in.MonthlyIncome
	}

	runway := 0.0
	if spend := in.EssentialSpend(); spend > 0 {
		runway = in.CurrentSavings / spend
	}

	debtToIncome := 0.0
	if in.MonthlyIncome > 0 {
		debtToIncome = 100 * in.DebtPayments / in.MonthlyIncome
	}

	emergencyProgress := 0.0
	if in.EmergencyFundGoal > 0 {
		emergencyProgress = clamp(100*in.CurrentSavings/in.EmergencyFundGoal, 0, 100)
	}

	// Normalized sub-scores in [0,100].
	runwayScore := clamp(runway/runwayTargetMonths, 0, 1) * 100
	savingsScore := clamp(savingsRate/savingsRateTarget, 0, 1) * 100
	debtScore := clamp(1-debtToIncome/debtRatioCeiling, 0, 1) * 100

	score := int(math.Round(
		runwayWeight*runwayScore + savingsWeight*savingsScore + debtWeight*debtScore))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	snap := models.FinancialSnapshot{
		HealthScore:           score,
		HealthLabel:           models.LabelForScore(score),
		DisposableIncome:      disposable,
		SavingsRate:           savingsRate,
		MonthsOfRunway:        runway,
		EmergencyFundProgress: emergencyProgress,
		DebtToIncome:          debtToIncome,
		GeneratedAt:           now,
	}

	insight := models.AgentInsight{
		Agent:     a.Name(),
		Timestamp: now,
		Message: fmt.Sprintf("Your financial health is %s (%d/100) with %.1f months of runway.",
			snap.HealthLabel, snap.HealthScore, snap.MonthsOfRunway),
		Reasoning: fmt.Sprintf(
			"Weighted sub-scores: runway %.0f (%.1f of %.0f target months), savings rate %.0f (%.1f%% of %.0f%% target), debt load %.0f (%.1f%% debt-to-income).",
			runwayScore, runway, runwayTargetMonths,
			savingsScore, savingsRate, savingsRateTarget,
			debtScore, debtToIncome),
		Confidence: confidenceFor(in.Completeness()),
	}

	return snap, insight
}
