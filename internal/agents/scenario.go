package agents

import (
	"fmt"
	"math"
	"time"

	"github.com/finsight/finsight/pkg/models"
)

// posture pins the assumptions for one scenario: the annual return and
// the share of disposable income assumed to be contributed.
type posture struct {
	label           models.RiskLabel
	annualReturnPct float64
	disposableShare float64
	tradeOff        string
}

var postures = []posture{
	{
		label:           models.RiskConservative,
		annualReturnPct: 3.0,
		disposableShare: 0.50,
		tradeOff:        "Lower growth in exchange for stability: the projected values barely wobble, but inflation eats into real returns.",
	},
	{
		label:           models.RiskBalanced,
		annualReturnPct: 6.0,
		disposableShare: 0.70,
		tradeOff:        "Moderate growth with moderate swings: a classic middle path that tolerates short downturns for better long-run value.",
	},
	{
		label:           models.RiskAggressive,
		annualReturnPct: 9.0,
		disposableShare: 0.90,
		tradeOff:        "Highest projected values, highest drawdowns: expect multi-year dips and commit most of your disposable income.",
	},
}

// FutureValue projects a monthly contribution compounded at the given
// annual rate (percent) over the horizon, using the future value of an
// ordinary annuity. Zero rate degrades to simple accumulation.
func FutureValue(monthlyContribution, annualRatePct float64, years int) float64 {
	months := float64(years * 12)
	if monthlyContribution <= 0 || years <= 0 {
		return 0
	}
	r := annualRatePct / 100 / 12
	if r == 0 {
		return monthlyContribution * months
	}
	return monthlyContribution * (math.Pow(1+r, months) - 1) / r
}

// ScenarioLearningAgent produces the fixed set of labeled what-if
// projections from inputs and the derived snapshot.
type ScenarioLearningAgent struct {
	now Clock
}

func NewScenarioLearningAgent(now Clock) *ScenarioLearningAgent {
	if now == nil {
		now = time.Now
	}
	return &ScenarioLearningAgent{now: now}
}

func (a *ScenarioLearningAgent) Name() string { return "scenario_learning" }

// Project builds one scenario per posture, funding contributions from
// disposable income. Deterministic; for equal horizon and contribution
// the projected values are monotonic in risk because the rate is the
// only lever.
func (a *ScenarioLearningAgent) Project(in models.FinancialInputs, snap models.FinancialSnapshot) ([]models.Scenario, models.AgentInsight) {
	now := a.now().UTC()

	disposable := snap.DisposableIncome
	if disposable < 0 {
		disposable = 0
	}

	scenarios := make([]models.Scenario, 0, len(postures))
	for _, p := range postures {
		contribution := disposable * p.disposableShare
		projections := make(map[int]float64, len(models.ScenarioHorizons))
		for _, h := range models.ScenarioHorizons {
			projections[h] = FutureValue(contribution, p.annualReturnPct, h)
		}
		scenarios = append(scenarios, models.Scenario{
			ID:                  "scenario-" + string(p.label),
			RiskLabel:           p.label,
			MonthlyContribution: contribution,
			AnnualReturnRate:    p.annualReturnPct,
			Projections:         projections,
			TradeOff:            p.tradeOff,
		})
	}

	insight := models.AgentInsight{
		Agent:     a.Name(),
		Timestamp: now,
		Message: fmt.Sprintf("Projected three savings paths from your $%.0f/month disposable income.",
			disposable),
		Reasoning: fmt.Sprintf(
			"Contributions assume %d%%/%d%%/%d%% of disposable income at %.0f%%/%.0f%%/%.0f%% annual returns, compounded monthly over 1/3/5 year horizons.",
			int(postures[0].disposableShare*100), int(postures[1].disposableShare*100), int(postures[2].disposableShare*100),
			postures[0].annualReturnPct, postures[1].annualReturnPct, postures[2].annualReturnPct),
		Confidence: confidenceFor(in.Completeness()),
	}

	return scenarios, insight
}
