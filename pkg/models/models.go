// Package models defines the domain types shared across the FinSight
// service: the user's raw financial inputs, the derived health snapshot
// and planning artifacts, and the intervention/learning records used by
// the autonomous controller.
package models

import (
	"time"
)

// ── Financial Inputs ─────────────────────────────────────────

// FinancialInputs is the user's raw financial picture. All monetary
// fields are monthly amounts unless noted. Zero values are valid —
// inputs are often partially completed during onboarding, and every
// downstream computation degrades gracefully to zero-valued components.
type FinancialInputs struct {
	MonthlyIncome       float64 `json:"monthly_income"`
	Housing             float64 `json:"housing"`
	Transport           float64 `json:"transport"`
	Essentials          float64 `json:"essentials"`
	DebtPayments        float64 `json:"debt_payments"`
	SavingsContribution float64 `json:"savings_contribution"`
	CurrentSavings      float64 `json:"current_savings"`
	EmergencyFundGoal   float64 `json:"emergency_fund_goal"`

	// Allocations are percent-of-portfolio per asset class (e.g.
	// "stocks": 60). Current reflects holdings, Target the desired mix.
	CurrentAllocation map[string]float64 `json:"current_allocation,omitempty"`
	TargetAllocation  map[string]float64 `json:"target_allocation,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FixedCosts returns the sum of housing, transport, essentials and debt
// payments — everything the user cannot easily cut month to month.
func (in FinancialInputs) FixedCosts() float64 {
	return in.Housing + in.Transport + in.Essentials + in.DebtPayments
}

// EssentialSpend is the monthly spend used for runway math: fixed costs
// excluding debt payments would understate real burn, so debt is included.
func (in FinancialInputs) EssentialSpend() float64 {
	return in.FixedCosts()
}

// Completeness returns the fraction of core numeric fields the user has
// filled in (non-zero), in [0,1]. Agents scale their confidence by it.
func (in FinancialInputs) Completeness() float64 {
	fields := []float64{
		in.MonthlyIncome, in.Housing, in.Transport, in.Essentials,
		in.DebtPayments, in.SavingsContribution, in.CurrentSavings,
		in.EmergencyFundGoal,
	}
	filled := 0
	for _, f := range fields {
		if f != 0 {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

// ── Goals ────────────────────────────────────────────────────

// Goals captures the user's stated objectives beyond raw inputs:
// the target mix, a goal date, and the contribution they committed to.
type Goals struct {
	TargetAllocation          map[string]float64 `json:"target_allocation,omitempty"`
	GoalDate                  *time.Time         `json:"goal_date,omitempty"`
	MonthlyContributionTarget float64            `json:"monthly_contribution_target"`
	UpdatedAt                 time.Time          `json:"updated_at"`
}

// ── Financial Snapshot ───────────────────────────────────────

// HealthLabel is the qualitative band derived from HealthScore.
type HealthLabel string

const (
	HealthExcellent      HealthLabel = "excellent"       // score ≥ 85
	HealthStrong         HealthLabel = "strong"          // score ≥ 70
	HealthStable         HealthLabel = "stable"          // score ≥ 50
	HealthNeedsAttention HealthLabel = "needs_attention" // score ≥ 30
	HealthCritical       HealthLabel = "critical"        // score < 30
)

// LabelForScore maps a health score to its band. Monotonic: a higher
// score never maps to a worse label.
func LabelForScore(score int) HealthLabel {
	switch {
	case score >= 85:
		return HealthExcellent
	case score >= 70:
		return HealthStrong
	case score >= 50:
		return HealthStable
	case score >= 30:
		return HealthNeedsAttention
	default:
		return HealthCritical
	}
}

// FinancialSnapshot is the point-in-time derived health summary.
// Always derived from FinancialInputs, never mutated directly.
type FinancialSnapshot struct {
	HealthScore           int         `json:"health_score"` // 0–100
	HealthLabel           HealthLabel `json:"health_label"`
	DisposableIncome      float64     `json:"disposable_income"`
	SavingsRate           float64     `json:"savings_rate"`            // percent; 0 when income is 0
	MonthsOfRunway        float64     `json:"months_of_runway"`        // 0 when essential spend is 0
	EmergencyFundProgress float64     `json:"emergency_fund_progress"` // percent; 0 when goal is 0
	DebtToIncome          float64     `json:"debt_to_income"`          // percent; 0 when income is 0
	GeneratedAt           time.Time   `json:"generated_at"`
}

// ── Scenarios ────────────────────────────────────────────────

// RiskLabel identifies a scenario's posture.
type RiskLabel string

const (
	RiskConservative RiskLabel = "conservative"
	RiskBalanced     RiskLabel = "balanced"
	RiskAggressive   RiskLabel = "aggressive"
)

// ScenarioHorizons are the projection horizons, in years.
var ScenarioHorizons = []int{1, 3, 5}

// Scenario is one labeled what-if projection. For equal horizon and
// contribution the projected values are monotonic in risk:
// aggressive ≥ balanced ≥ conservative.
type Scenario struct {
	ID                  string          `json:"id"`
	RiskLabel           RiskLabel       `json:"risk_label"`
	MonthlyContribution float64         `json:"monthly_contribution"`
	AnnualReturnRate    float64         `json:"annual_return_rate"` // percent
	Projections         map[int]float64 `json:"projections"`        // horizon years → projected value
	TradeOff            string          `json:"trade_off"`
}

// ── Weekly Actions ───────────────────────────────────────────

// ActionPriority orders weekly actions for display.
type ActionPriority string

const (
	PriorityHigh   ActionPriority = "high"
	PriorityMedium ActionPriority = "medium"
	PriorityLow    ActionPriority = "low"
)

// WeeklyAction is one prioritized, reasoned to-do item for the current
// week. Reasoning always cites the numeric condition that triggered it.
type WeeklyAction struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    ActionPriority `json:"priority"`
	Category    string         `json:"category"`
	Completed   bool           `json:"completed"`
	Reasoning   string         `json:"reasoning"`
}

// ── Agent Insights ───────────────────────────────────────────

// AgentInsight is one agent's human-readable contribution to a pipeline
// run. Confidence is in [0,1]; a degraded insight (agent fault) carries 0.
type AgentInsight struct {
	Agent      string    `json:"agent"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"`
}

// ── Interventions ────────────────────────────────────────────

// InterventionType is the typed purpose of a proactive user contact.
type InterventionType string

const (
	InterventionDriftAlert           InterventionType = "drift_alert"
	InterventionContributionReminder InterventionType = "contribution_reminder"
	InterventionMilestone            InterventionType = "milestone"
	InterventionRebalanceSuggestion  InterventionType = "rebalance_suggestion"
	InterventionGoalCheck            InterventionType = "goal_check"
)

// InterventionStatus tracks the per-intervention state machine:
// created → dispatched → {responded | expired}.
type InterventionStatus string

const (
	InterventionCreated    InterventionStatus = "created"
	InterventionDispatched InterventionStatus = "dispatched"
	InterventionResponded  InterventionStatus = "responded"
	InterventionExpired    InterventionStatus = "expired"
)

// Intervention is one proactive, agent-initiated user contact.
// Immutable after dispatch except the response fields.
type Intervention struct {
	ID              string             `json:"id"`
	Type            InterventionType   `json:"type"`
	Title           string             `json:"title"`
	Message         string             `json:"message"`
	Status          InterventionStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	Responded       bool               `json:"responded"`
	RespondedAt     *time.Time         `json:"responded_at,omitempty"`
	ResponseChannel string             `json:"response_channel,omitempty"`
}

// ── Agent State (adaptive learning) ──────────────────────────

// TypeStats tracks dispatch/response counts for one intervention type
// over the trailing window.
type TypeStats struct {
	Dispatched int `json:"dispatched"`
	Responded  int `json:"responded"`
}

// ResponseRate returns responded/dispatched, or 0 with no samples.
func (ts TypeStats) ResponseRate() float64 {
	if ts.Dispatched == 0 {
		return 0
	}
	return float64(ts.Responded) / float64(ts.Dispatched)
}

// AgentState is the persisted learning state of the intervention
// controller. Mutated only by the controller; read by the UI for display.
type AgentState struct {
	WeeklyInterventionCount    int                            `json:"weekly_intervention_count"`
	WeekStart                  time.Time                      `json:"week_start"`
	UserResponseRate           float64                        `json:"user_response_rate"` // rolling, trailing window
	EffectiveInterventionTypes []InterventionType             `json:"effective_intervention_types,omitempty"`
	TypeStats                  map[InterventionType]TypeStats `json:"type_stats,omitempty"`
	LastInterventionAt         *time.Time                     `json:"last_intervention_at,omitempty"`
	CooldownUntil              *time.Time                     `json:"cooldown_until,omitempty"`
	MilestonesReached          []int                          `json:"milestones_reached,omitempty"` // emergency-fund percent marks already celebrated
	UpdatedAt                  time.Time                      `json:"updated_at"`
}

// IsEffective reports whether the given type is currently in the
// effective set.
func (s AgentState) IsEffective(t InterventionType) bool {
	for _, e := range s.EffectiveInterventionTypes {
		if e == t {
			return true
		}
	}
	return false
}

// MilestoneReached reports whether the given emergency-fund percent mark
// was already celebrated.
func (s AgentState) MilestoneReached(mark int) bool {
	for _, m := range s.MilestonesReached {
		if m == mark {
			return true
		}
	}
	return false
}

// ── Notifications ────────────────────────────────────────────

// Notification is the payload handed to the notification collaborator.
// Delivery is asynchronous and failure is not reported back to callers.
type Notification struct {
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	InterventionID string           `json:"intervention_id"`
	Type           InterventionType `json:"type"`
	Timestamp      time.Time        `json:"timestamp"`
}
