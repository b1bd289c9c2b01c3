package config_test

import (
	"testing"
	"time"

	"github.com/finsight/finsight/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Controller.DriftThreshold != 10.0 {
		t.Errorf("DriftThreshold = %v, want 10.0", cfg.Controller.DriftThreshold)
	}
	if cfg.Controller.WeeklyCap != 3 {
		t.Errorf("WeeklyCap = %d, want 3", cfg.Controller.WeeklyCap)
	}
	if cfg.Controller.Cooldown != 24*time.Hour {
		t.Errorf("Cooldown = %v, want 24h", cfg.Controller.Cooldown)
	}
	if cfg.Controller.ResponseWindow != 48*time.Hour {
		t.Errorf("ResponseWindow = %v, want 48h", cfg.Controller.ResponseWindow)
	}
	if cfg.Schedule.CronSpec != "0 */6 * * *" {
		t.Errorf("CronSpec = %q, want every 6 hours", cfg.Schedule.CronSpec)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINSIGHT_PORT", "9999")
	t.Setenv("FINSIGHT_WEEKLY_CAP", "5")
	t.Setenv("FINSIGHT_COOLDOWN", "1h")
	t.Setenv("FINSIGHT_EPSILON", "0.25")

	cfg := config.Load()
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.Controller.WeeklyCap != 5 {
		t.Errorf("WeeklyCap = %d, want 5", cfg.Controller.WeeklyCap)
	}
	if cfg.Controller.Cooldown != time.Hour {
		t.Errorf("Cooldown = %v, want 1h", cfg.Controller.Cooldown)
	}
	if cfg.Controller.Epsilon != 0.25 {
		t.Errorf("Epsilon = %v, want 0.25", cfg.Controller.Epsilon)
	}
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("FINSIGHT_PORT", "not-a-number")
	t.Setenv("FINSIGHT_COOLDOWN", "soon")

	cfg := config.Load()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want the 8080 default on parse failure", cfg.Port)
	}
	if cfg.Controller.Cooldown != 24*time.Hour {
		t.Errorf("Cooldown = %v, want the 24h default on parse failure", cfg.Controller.Cooldown)
	}
}
