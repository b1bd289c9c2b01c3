// Package store provides the storage interface and implementations for
// FinSight. The store is a key/document abstraction: singleton documents
// for inputs, goals, learning state and the derived planning artifacts,
// plus a history of interventions. No multi-key transactions are assumed —
// callers follow a read-fresh → compute → write discipline.
package store

import (
	"context"
	"time"

	"github.com/finsight/finsight/pkg/models"
)

// Store is the primary storage interface. All service code depends on
// this interface, making it easy to swap between in-memory (tests, local
// dev) and PostgreSQL (production) implementations.
type Store interface {
	InputsStore
	DerivedStore
	InterventionStore
	StateStore

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate prepares the backing store (tables, directories).
	Migrate(ctx context.Context) error
}

// ── Inputs & Goals ──────────────────────────────────────────

// InputsStore persists the user-supplied financial picture.
type InputsStore interface {
	GetInputs(ctx context.Context) (*models.FinancialInputs, error)
	PutInputs(ctx context.Context, in *models.FinancialInputs) error
	GetGoals(ctx context.Context) (*models.Goals, error)
	PutGoals(ctx context.Context, g *models.Goals) error
}

// ── Derived artifacts ───────────────────────────────────────

// DerivedStore persists the latest pipeline outputs. These are always
// regenerated wholesale on input changes, never edited in place.
type DerivedStore interface {
	GetSnapshot(ctx context.Context) (*models.FinancialSnapshot, error)
	PutSnapshot(ctx context.Context, s *models.FinancialSnapshot) error
	GetScenarios(ctx context.Context) ([]models.Scenario, error)
	PutScenarios(ctx context.Context, scenarios []models.Scenario) error
	GetActions(ctx context.Context) ([]models.WeeklyAction, error)
	PutActions(ctx context.Context, actions []models.WeeklyAction) error
	GetInsights(ctx context.Context) ([]models.AgentInsight, error)
	PutInsights(ctx context.Context, insights []models.AgentInsight) error
}

// ── Interventions ───────────────────────────────────────────

// InterventionStore persists the intervention activity log.
type InterventionStore interface {
	CreateIntervention(ctx context.Context, iv *models.Intervention) error
	GetIntervention(ctx context.Context, id string) (*models.Intervention, error)
	UpdateIntervention(ctx context.Context, iv *models.Intervention) error

	// ListInterventions returns interventions newest-first, up to limit.
	ListInterventions(ctx context.Context, limit int) ([]models.Intervention, error)

	// ListInterventionsSince returns interventions created at or after t,
	// newest-first.
	ListInterventionsSince(ctx context.Context, t time.Time) ([]models.Intervention, error)
}

// ── Agent State ─────────────────────────────────────────────

// StateStore persists the controller's adaptive learning state.
type StateStore interface {
	GetAgentState(ctx context.Context) (*models.AgentState, error)
	PutAgentState(ctx context.Context, s *models.AgentState) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	if e.Key == "" {
		return e.Entity + " not found"
	}
	return e.Entity + " not found: " + e.Key
}
