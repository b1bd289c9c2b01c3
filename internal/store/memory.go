// Package store — in-memory Store implementation.
// Used for local dev and tests. Supports file-based snapshot persistence
// so data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/finsight/finsight/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Inputs        *models.FinancialInputs   `json:"inputs,omitempty"`
	Goals         *models.Goals             `json:"goals,omitempty"`
	Snapshot      *models.FinancialSnapshot `json:"snapshot,omitempty"`
	Scenarios     []models.Scenario         `json:"scenarios,omitempty"`
	Actions       []models.WeeklyAction     `json:"actions,omitempty"`
	Insights      []models.AgentInsight     `json:"insights,omitempty"`
	Interventions []*models.Intervention    `json:"interventions,omitempty"`
	AgentState    *models.AgentState        `json:"agent_state,omitempty"`
}

// MemoryStore implements Store with in-memory state.
type MemoryStore struct {
	mu            sync.RWMutex
	inputs        *models.FinancialInputs
	goals         *models.Goals
	snap          *models.FinancialSnapshot
	scenarios     []models.Scenario
	actions       []models.WeeklyAction
	insights      []models.AgentInsight
	interventions map[string]*models.Intervention
	state         *models.AgentState

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save goroutine to stop
	closeOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. If dataDir is non-empty,
// data is persisted to a JSON file in that directory.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		interventions: make(map[string]*models.Intervention),
		saveCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	ivs := make([]*models.Intervention, 0, len(m.interventions))
	for _, iv := range m.interventions {
		ivs = append(ivs, iv)
	}
	snap := snapshot{
		Inputs:        m.inputs,
		Goals:         m.goals,
		Snapshot:      m.snap,
		Scenarios:     m.scenarios,
		Actions:       m.actions,
		Insights:      m.insights,
		Interventions: ivs,
		AgentState:    m.state,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Snapshot file corrupt, starting fresh")
		return
	}

	m.mu.Lock()
	m.inputs = snap.Inputs
	m.goals = snap.Goals
	m.snap = snap.Snapshot
	m.scenarios = snap.Scenarios
	m.actions = snap.Actions
	m.insights = snap.Insights
	for _, iv := range snap.Interventions {
		m.interventions[iv.ID] = iv
	}
	m.state = snap.AgentState
	m.mu.Unlock()

	log.Info().
		Int("interventions", len(snap.Interventions)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

// ── Store lifecycle ─────────────────────────────────────────

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close flushes pending data to disk and stops background goroutines.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// ── Inputs & Goals ──────────────────────────────────────────

func (m *MemoryStore) GetInputs(ctx context.Context) (*models.FinancialInputs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.inputs == nil {
		return nil, &ErrNotFound{Entity: "financial inputs"}
	}
	cp := *m.inputs
	return &cp, nil
}

func (m *MemoryStore) PutInputs(ctx context.Context, in *models.FinancialInputs) error {
	m.mu.Lock()
	cp := *in
	m.inputs = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetGoals(ctx context.Context) (*models.Goals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.goals == nil {
		return nil, &ErrNotFound{Entity: "goals"}
	}
	cp := *m.goals
	return &cp, nil
}

func (m *MemoryStore) PutGoals(ctx context.Context, g *models.Goals) error {
	m.mu.Lock()
	cp := *g
	m.goals = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Derived artifacts ───────────────────────────────────────

func (m *MemoryStore) GetSnapshot(ctx context.Context) (*models.FinancialSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, &ErrNotFound{Entity: "snapshot"}
	}
	cp := *m.snap
	return &cp, nil
}

func (m *MemoryStore) PutSnapshot(ctx context.Context, s *models.FinancialSnapshot) error {
	m.mu.Lock()
	cp := *s
	m.snap = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetScenarios(ctx context.Context) ([]models.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Scenario(nil), m.scenarios...), nil
}

func (m *MemoryStore) PutScenarios(ctx context.Context, scenarios []models.Scenario) error {
	m.mu.Lock()
	m.scenarios = append([]models.Scenario(nil), scenarios...)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetActions(ctx context.Context) ([]models.WeeklyAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.WeeklyAction(nil), m.actions...), nil
}

func (m *MemoryStore) PutActions(ctx context.Context, actions []models.WeeklyAction) error {
	m.mu.Lock()
	m.actions = append([]models.WeeklyAction(nil), actions...)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetInsights(ctx context.Context) ([]models.AgentInsight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AgentInsight(nil), m.insights...), nil
}

func (m *MemoryStore) PutInsights(ctx context.Context, insights []models.AgentInsight) error {
	m.mu.Lock()
	m.insights = append([]models.AgentInsight(nil), insights...)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Interventions ───────────────────────────────────────────

func (m *MemoryStore) CreateIntervention(ctx context.Context, iv *models.Intervention) error {
	m.mu.Lock()
	cp := *iv
	m.interventions[iv.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetIntervention(ctx context.Context, id string) (*models.Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iv, ok := m.interventions[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "intervention", Key: id}
	}
	cp := *iv
	return &cp, nil
}

func (m *MemoryStore) UpdateIntervention(ctx context.Context, iv *models.Intervention) error {
	m.mu.Lock()
	if _, ok := m.interventions[iv.ID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "intervention", Key: iv.ID}
	}
	cp := *iv
	m.interventions[iv.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListInterventions(ctx context.Context, limit int) ([]models.Intervention, error) {
	m.mu.RLock()
	out := make([]models.Intervention, 0, len(m.interventions))
	for _, iv := range m.interventions {
		out = append(out, *iv)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListInterventionsSince(ctx context.Context, t time.Time) ([]models.Intervention, error) {
	m.mu.RLock()
	var out []models.Intervention
	for _, iv := range m.interventions {
		if !iv.CreatedAt.Before(t) {
			out = append(out, *iv)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ── Agent State ─────────────────────────────────────────────

func (m *MemoryStore) GetAgentState(ctx context.Context) (*models.AgentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, &ErrNotFound{Entity: "agent state"}
	}
	cp := *m.state
	return &cp, nil
}

func (m *MemoryStore) PutAgentState(ctx context.Context, s *models.AgentState) error {
	m.mu.Lock()
	cp := *s
	m.state = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}
