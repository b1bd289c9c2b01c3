package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/pkg/models"
)

func TestMemoryStore_NotFoundBeforeFirstWrite(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()

	var nf *store.ErrNotFound
	if _, err := s.GetInputs(ctx); !errors.As(err, &nf) {
		t.Errorf("GetInputs() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetSnapshot(ctx); !errors.As(err, &nf) {
		t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetAgentState(ctx); !errors.As(err, &nf) {
		t.Errorf("GetAgentState() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetIntervention(ctx, "missing"); !errors.As(err, &nf) {
		t.Errorf("GetIntervention() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_InputsRoundTrip(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()

	in := &models.FinancialInputs{MonthlyIncome: 5000, CurrentSavings: 3000}
	if err := s.PutInputs(ctx, in); err != nil {
		t.Fatalf("PutInputs() error: %v", err)
	}

	got, err := s.GetInputs(ctx)
	if err != nil {
		t.Fatalf("GetInputs() error: %v", err)
	}
	if got.MonthlyIncome != 5000 || got.CurrentSavings != 3000 {
		t.Errorf("GetInputs() = %+v, want the stored values", got)
	}

	// Reads hand out copies, not the live pointer.
	got.MonthlyIncome = 1
	again, _ := s.GetInputs(ctx)
	if again.MonthlyIncome != 5000 {
		t.Error("mutating a read result leaked into the store")
	}
}

func TestMemoryStore_InterventionLifecycle(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()

	iv := &models.Intervention{
		ID:        "iv-1",
		Type:      models.InterventionDriftAlert,
		Status:    models.InterventionDispatched,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.CreateIntervention(ctx, iv); err != nil {
		t.Fatalf("CreateIntervention() error: %v", err)
	}

	iv.Status = models.InterventionResponded
	if err := s.UpdateIntervention(ctx, iv); err != nil {
		t.Fatalf("UpdateIntervention() error: %v", err)
	}
	got, err := s.GetIntervention(ctx, "iv-1")
	if err != nil {
		t.Fatalf("GetIntervention() error: %v", err)
	}
	if got.Status != models.InterventionResponded {
		t.Errorf("status = %q, want responded", got.Status)
	}

	var nf *store.ErrNotFound
	missing := &models.Intervention{ID: "iv-404"}
	if err := s.UpdateIntervention(ctx, missing); !errors.As(err, &nf) {
		t.Errorf("UpdateIntervention(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListInterventionsNewestFirst(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := s.CreateIntervention(ctx, &models.Intervention{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateIntervention(%q) error: %v", id, err)
		}
	}

	all, err := s.ListInterventions(ctx, 0)
	if err != nil {
		t.Fatalf("ListInterventions() error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("ListInterventions() order = %v, want newest first", ids(all))
	}

	limited, _ := s.ListInterventions(ctx, 2)
	if len(limited) != 2 || limited[0].ID != "c" {
		t.Errorf("ListInterventions(2) = %v, want [c b]", ids(limited))
	}

	since, _ := s.ListInterventionsSince(ctx, base.Add(time.Hour))
	if len(since) != 2 {
		t.Errorf("ListInterventionsSince() returned %d, want 2 (boundary inclusive)", len(since))
	}
}

func ids(ivs []models.Intervention) []string {
	out := make([]string, len(ivs))
	for i, iv := range ivs {
		out[i] = iv.ID
	}
	return out
}

func TestMemoryStore_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := store.NewMemoryStore(dir)
	if err := s.PutInputs(ctx, &models.FinancialInputs{MonthlyIncome: 4200}); err != nil {
		t.Fatalf("PutInputs() error: %v", err)
	}
	if err := s.CreateIntervention(ctx, &models.Intervention{
		ID:        "iv-1",
		Type:      models.InterventionMilestone,
		Status:    models.InterventionDispatched,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateIntervention() error: %v", err)
	}
	if err := s.PutAgentState(ctx, &models.AgentState{WeeklyInterventionCount: 2}); err != nil {
		t.Fatalf("PutAgentState() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened := store.NewMemoryStore(dir)
	defer reopened.Close()

	in, err := reopened.GetInputs(ctx)
	if err != nil {
		t.Fatalf("GetInputs() after reopen error: %v", err)
	}
	if in.MonthlyIncome != 4200 {
		t.Errorf("income after reopen = %v, want 4200", in.MonthlyIncome)
	}
	if _, err := reopened.GetIntervention(ctx, "iv-1"); err != nil {
		t.Errorf("GetIntervention() after reopen error: %v", err)
	}
	state, err := reopened.GetAgentState(ctx)
	if err != nil {
		t.Fatalf("GetAgentState() after reopen error: %v", err)
	}
	if state.WeeklyInterventionCount != 2 {
		t.Errorf("weekly count after reopen = %d, want 2", state.WeeklyInterventionCount)
	}
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := store.NewMemoryStore(t.TempDir())
	if err := s.Close(); err != nil {
		t.Fatalf("first Close() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
