package phrasing_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/phrasing"
	"github.com/finsight/finsight/pkg/models"
)

func TestTemplateComposer_CoversEveryType(t *testing.T) {
	goalDate := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	c := phrasing.TemplateComposer{}

	types := []models.InterventionType{
		models.InterventionDriftAlert,
		models.InterventionRebalanceSuggestion,
		models.InterventionContributionReminder,
		models.InterventionMilestone,
		models.InterventionGoalCheck,
	}
	for _, typ := range types {
		out := c.Compose(context.Background(), phrasing.Material{
			Type:          typ,
			Snapshot:      models.FinancialSnapshot{SavingsRate: 12.5},
			Drift:         14.2,
			DriftClass:    "stocks",
			MilestoneMark: 50,
			GoalDate:      &goalDate,
		})
		if out.Title == "" {
			t.Errorf("type %q: empty title", typ)
		}
		if out.Message == "" {
			t.Errorf("type %q: empty message", typ)
		}
	}
}

func TestTemplateComposer_NumericFills(t *testing.T) {
	c := phrasing.TemplateComposer{}

	drift := c.Compose(context.Background(), phrasing.Material{
		Type:       models.InterventionDriftAlert,
		Drift:      14.2,
		DriftClass: "stocks",
	})
	if !strings.Contains(drift.Message, "14.2") || !strings.Contains(drift.Message, "stocks") {
		t.Errorf("drift message %q does not cite the drift numbers", drift.Message)
	}

	milestone := c.Compose(context.Background(), phrasing.Material{
		Type:          models.InterventionMilestone,
		MilestoneMark: 75,
	})
	if !strings.Contains(milestone.Message, "75%") {
		t.Errorf("milestone message %q does not cite the mark", milestone.Message)
	}

	goalDate := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	check := c.Compose(context.Background(), phrasing.Material{
		Type:     models.InterventionGoalCheck,
		GoalDate: &goalDate,
	})
	if !strings.Contains(check.Message, "Apr 15") {
		t.Errorf("goal check message %q does not cite the date", check.Message)
	}
}

func TestTemplateComposer_UnknownTypeStillComposes(t *testing.T) {
	c := phrasing.TemplateComposer{}
	out := c.Compose(context.Background(), phrasing.Material{Type: "something_new"})
	if out.Title == "" || out.Message == "" {
		t.Errorf("unknown type produced empty copy: %+v", out)
	}
}

func TestNew_TemplateOnlyWithoutAPIKey(t *testing.T) {
	c := phrasing.New(context.Background(), config.PhrasingConfig{})
	if _, ok := c.(phrasing.TemplateComposer); !ok {
		t.Errorf("New() without API key = %T, want TemplateComposer", c)
	}
}
