// Package store — PostgreSQL-backed Store implementation.
// Singleton documents (inputs, goals, derived artifacts, agent state) live
// in a key→jsonb table; interventions get their own table so the activity
// log can be listed and filtered by time without unpacking a document.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finsight/finsight/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Document keys for the singleton table.
const (
	docInputs     = "inputs"
	docGoals      = "goals"
	docSnapshot   = "snapshot"
	docScenarios  = "scenarios"
	docActions    = "actions"
	docInsights   = "insights"
	docAgentState = "agent_state"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and runs migrations.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("Postgres store initialized")
	return s, nil
}

// Migrate creates the required tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS fs_documents (
			key        TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS fs_interventions (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			doc        JSONB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_fs_interventions_created
			ON fs_interventions (created_at DESC);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ── Document helpers ────────────────────────────────────────

func (s *PostgresStore) getDoc(ctx context.Context, key string, out interface{}) error {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM fs_documents WHERE key = $1`, key).Scan(&doc)
	if err == pgx.ErrNoRows {
		return &ErrNotFound{Entity: key}
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) putDoc(ctx context.Context, key string, v interface{}) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fs_documents (key, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		key, doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ── Inputs & Goals ──────────────────────────────────────────

func (s *PostgresStore) GetInputs(ctx context.Context) (*models.FinancialInputs, error) {
	var in models.FinancialInputs
	if err := s.getDoc(ctx, docInputs, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *PostgresStore) PutInputs(ctx context.Context, in *models.FinancialInputs) error {
	return s.putDoc(ctx, docInputs, in)
}

func (s *PostgresStore) GetGoals(ctx context.Context) (*models.Goals, error) {
	var g models.Goals
	if err := s.getDoc(ctx, docGoals, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PostgresStore) PutGoals(ctx context.Context, g *models.Goals) error {
	return s.putDoc(ctx, docGoals, g)
}

// ── Derived artifacts ───────────────────────────────────────

func (s *PostgresStore) GetSnapshot(ctx context.Context) (*models.FinancialSnapshot, error) {
	var snap models.FinancialSnapshot
	if err := s.getDoc(ctx, docSnapshot, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresStore) PutSnapshot(ctx context.Context, snap *models.FinancialSnapshot) error {
	return s.putDoc(ctx, docSnapshot, snap)
}

func (s *PostgresStore) GetScenarios(ctx context.Context) ([]models.Scenario, error) {
	var out []models.Scenario
	err := s.getDoc(ctx, docScenarios, &out)
	if _, ok := err.(*ErrNotFound); ok {
		return nil, nil
	}
	return out, err
}

func (s *PostgresStore) PutScenarios(ctx context.Context, scenarios []models.Scenario) error {
	return s.putDoc(ctx, docScenarios, scenarios)
}

func (s *PostgresStore) GetActions(ctx context.Context) ([]models.WeeklyAction, error) {
	var out []models.WeeklyAction
	err := s.getDoc(ctx, docActions, &out)
	if _, ok := err.(*ErrNotFound); ok {
		return nil, nil
	}
	return out, err
}

func (s *PostgresStore) PutActions(ctx context.Context, actions []models.WeeklyAction) error {
	return s.putDoc(ctx, docActions, actions)
}

func (s *PostgresStore) GetInsights(ctx context.Context) ([]models.AgentInsight, error) {
	var out []models.AgentInsight
	err := s.getDoc(ctx, docInsights, &out)
	if _, ok := err.(*ErrNotFound); ok {
		return nil, nil
	}
	return out, err
}

func (s *PostgresStore) PutInsights(ctx context.Context, insights []models.AgentInsight) error {
	return s.putDoc(ctx, docInsights, insights)
}

// ── Interventions ───────────────────────────────────────────

func (s *PostgresStore) CreateIntervention(ctx context.Context, iv *models.Intervention) error {
	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("encode intervention: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fs_interventions (id, type, status, created_at, doc)
		VALUES ($1, $2, $3, $4, $5)`,
		iv.ID, string(iv.Type), string(iv.Status), iv.CreatedAt, doc)
	if err != nil {
		return fmt.Errorf("create intervention: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIntervention(ctx context.Context, id string) (*models.Intervention, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM fs_interventions WHERE id = $1`, id).Scan(&doc)
	if err == pgx.ErrNoRows {
		return nil, &ErrNotFound{Entity: "intervention", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get intervention: %w", err)
	}
	var iv models.Intervention
	if err := json.Unmarshal(doc, &iv); err != nil {
		return nil, fmt.Errorf("decode intervention: %w", err)
	}
	return &iv, nil
}

func (s *PostgresStore) UpdateIntervention(ctx context.Context, iv *models.Intervention) error {
	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("encode intervention: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE fs_interventions SET status = $2, doc = $3 WHERE id = $1`,
		iv.ID, string(iv.Status), doc)
	if err != nil {
		return fmt.Errorf("update intervention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "intervention", Key: iv.ID}
	}
	return nil
}

func (s *PostgresStore) ListInterventions(ctx context.Context, limit int) ([]models.Intervention, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM fs_interventions
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	defer rows.Close()
	return scanInterventions(rows)
}

func (s *PostgresStore) ListInterventionsSince(ctx context.Context, t time.Time) ([]models.Intervention, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM fs_interventions
		WHERE created_at >= $1
		ORDER BY created_at DESC`, t)
	if err != nil {
		return nil, fmt.Errorf("list interventions since: %w", err)
	}
	defer rows.Close()
	return scanInterventions(rows)
}

func scanInterventions(rows pgx.Rows) ([]models.Intervention, error) {
	var out []models.Intervention
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		var iv models.Intervention
		if err := json.Unmarshal(doc, &iv); err != nil {
			return nil, fmt.Errorf("decode intervention: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// ── Agent State ─────────────────────────────────────────────

func (s *PostgresStore) GetAgentState(ctx context.Context) (*models.AgentState, error) {
	var st models.AgentState
	if err := s.getDoc(ctx, docAgentState, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) PutAgentState(ctx context.Context, st *models.AgentState) error {
	return s.putDoc(ctx, docAgentState, st)
}
