package agents_test

import (
	"math"
	"testing"
	"time"

	"github.com/finsight/finsight/internal/agents"
	"github.com/finsight/finsight/pkg/models"
)

// fixedClock pins agent timestamps so determinism can be asserted.
func fixedClock(t *testing.T) agents.Clock {
	t.Helper()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestAssess_ConcreteScenario(t *testing.T) {
	a := agents.NewFinancialRealityAgent(fixedClock(t))

	in := models.FinancialInputs{
		MonthlyIncome:     5000,
		Housing:           1500,
		Transport:         300,
		Essentials:        700,
		CurrentSavings:    3000,
		EmergencyFundGoal: 15000,
	}

	snap, _ := a.Assess(in)

	if snap.DisposableIncome != 2500 {
		t.Errorf("DisposableIncome = %v, want 2500", snap.DisposableIncome)
	}
	if snap.EmergencyFundProgress != 20 {
		t.Errorf("EmergencyFundProgress = %v, want 20", snap.EmergencyFundProgress)
	}
}

func TestAssess_StableAcrossRuns(t *testing.T) {
	a := agents.NewFinancialRealityAgent(fixedClock(t))
	in := models.FinancialInputs{
		MonthlyIncome:     5000,
		Housing:           1500,
		Transport:         300,
		Essentials:        700,
		CurrentSavings:    3000,
		EmergencyFundGoal: 15000,
	}

	first, _ := a.Assess(in)
	for i := 0; i < 10; i++ {
		got, _ := a.Assess(in)
		if got != first {
			t.Fatalf("run %d snapshot = %+v, want %+v", i, got, first)
		}
	}
}

func TestAssess_ZeroIncome(t *testing.T) {
	a := agents.NewFinancialRealityAgent(fixedClock(t))

	snap, _ := a.Assess(models.FinancialInputs{CurrentSavings: 1000})

	if snap.SavingsRate != 0 {
		t.Errorf("SavingsRate with zero income = %v, want 0", snap.SavingsRate)
	}
	if snap.DebtToIncome != 0 {
		t.Errorf("DebtToIncome with zero income = %v, want 0", snap.DebtToIncome)
	}
	// Zero essential spend must not yield NaN/Inf runway.
	if snap.MonthsOfRunway != 0 {
		t.Errorf("MonthsOfRunway with zero spend = %v, want 0", snap.MonthsOfRunway)
	}
}

func TestAssess_TotalFunction(t *testing.T) {
	a := agents.NewFinancialRealityAgent(fixedClock(t))

	cases := []models.FinancialInputs{
		{}, // fully blank
		{MonthlyIncome: -100},
		{MonthlyIncome: 1000, DebtPayments: 5000}, // debt exceeds income
		{MonthlyIncome: 1e9, CurrentSavings: 1e12, Essentials: 1},
		{EmergencyFundGoal: 10000},
	}

	for i, in := range cases {
		snap, insight := a.Assess(in)
		if snap.HealthScore < 0 || snap.HealthScore > 100 {
			t.Errorf("case %d: HealthScore = %d, want in [0,100]", i, snap.HealthScore)
		}
		if math.IsNaN(snap.MonthsOfRunway) || math.IsInf(snap.MonthsOfRunway, 0) {
			t.Errorf("case %d: MonthsOfRunway = %v, want finite", i, snap.MonthsOfRunway)
		}
		if math.IsNaN(snap.SavingsRate) || math.IsInf(snap.SavingsRate, 0) {
			t.Errorf("case %d: SavingsRate = %v, want finite", i, snap.SavingsRate)
		}
		if insight.Confidence < 0 || insight.Confidence > 1 {
			t.Errorf("case %d: Confidence = %v, want in [0,1]", i, insight.Confidence)
		}
	}
}

func TestLabelForScore_Monotonic(t *testing.T) {
	rank := map[models.HealthLabel]int{
		models.HealthCritical:       0,
		models.HealthNeedsAttention: 1,
		models.HealthStable:         2,
		models.HealthStrong:         3,
		models.HealthExcellent:      4,
	}

	prev := rank[models.LabelForScore(0)]
	for score := 1; score <= 100; score++ {
		cur := rank[models.LabelForScore(score)]
		if cur < prev {
			t.Fatalf("label rank decreased at score %d", score)
		}
		prev = cur
	}
}

func TestLabelForScore_CutPoints(t *testing.T) {
	cases := []struct {
		score int
		want  models.HealthLabel
	}{
		{100, models.HealthExcellent},
		{85, models.HealthExcellent},
		{84, models.HealthStrong},
		{70, models.HealthStrong},
		{69, models.HealthStable},
		{50, models.HealthStable},
		{49, models.HealthNeedsAttention},
		{30, models.HealthNeedsAttention},
		{29, models.HealthCritical},
		{0, models.HealthCritical},
	}
	for _, c := range cases {
		if got := models.LabelForScore(c.score); got != c.want {
			t.Errorf("LabelForScore(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}
