package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/intervention"
	"github.com/finsight/finsight/internal/notify"
	"github.com/finsight/finsight/internal/schedule"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/pkg/models"
)

func newTestScheduler(t *testing.T, spec string) (*schedule.Scheduler, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })

	cfg := config.ControllerConfig{
		DriftThreshold: 10,
		WeeklyCap:      3,
		Cooldown:       24 * time.Hour,
		ResponseWindow: 48 * time.Hour,
		WindowSize:     20,
	}
	c := intervention.New(s, notify.NewDispatcher(), nil, cfg, nil, nil)
	return schedule.New(c, spec), s
}

func TestStart_RejectsInvalidSpec(t *testing.T) {
	sched, _ := newTestScheduler(t, "not a cron spec")
	if err := sched.Start(context.Background()); err == nil {
		t.Error("Start() with invalid cron spec returned nil")
	}
}

func TestStartAndStop(t *testing.T) {
	sched, _ := newTestScheduler(t, "0 */6 * * *")
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	sched.Stop()
}

func TestArmReviewTimer_FiresOnce(t *testing.T) {
	sched, s := newTestScheduler(t, "0 */6 * * *")
	defer sched.Stop()
	ctx := context.Background()

	// Seed drifted inputs so the fired cycle actually dispatches.
	err := s.PutInputs(ctx, &models.FinancialInputs{
		MonthlyIncome:     5000,
		CurrentAllocation: map[string]float64{"stocks": 72, "bonds": 28},
		TargetAllocation:  map[string]float64{"stocks": 60, "bonds": 40},
	})
	if err != nil {
		t.Fatalf("seed inputs: %v", err)
	}
	if err := s.PutSnapshot(ctx, &models.FinancialSnapshot{}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	// Re-arming replaces the pending timer, so only one cycle fires.
	sched.ArmReviewTimer(ctx, time.Hour)
	sched.ArmReviewTimer(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ivs, err := s.ListInterventions(ctx, 0)
		if err != nil {
			t.Fatalf("ListInterventions() error: %v", err)
		}
		if len(ivs) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("review timer did not fire within 2s")
}
