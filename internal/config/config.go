package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the FinSight service.
type Config struct {
	Port       int
	Version    string
	Store      StoreConfig
	Controller ControllerConfig
	Schedule   ScheduleConfig
	Notify     NotifyConfig
	Phrasing   PhrasingConfig
	Telemetry  TelemetryConfig
}

type StoreConfig struct {
	// PostgresURL selects the pgx-backed store when set; otherwise the
	// in-memory store with file snapshots is used.
	PostgresURL string
	DataDir     string
}

type ControllerConfig struct {
	DriftThreshold float64 // percentage points
	WeeklyCap      int
	Cooldown       time.Duration
	ResponseWindow time.Duration
	Epsilon        float64 // exploration rate for type selection
	WindowSize     int     // trailing interventions for response-rate math
}

type ScheduleConfig struct {
	CronSpec    string        // background evaluation cadence
	ReviewDelay time.Duration // one-shot delay after a pipeline run
}

type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
}

type PhrasingConfig struct {
	// GeminiAPIKey enables the generative copywriter. Empty means
	// template-only composition.
	GeminiAPIKey string
	Model        string
	Timeout      time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("FINSIGHT_PORT", 8080),
		Version: envStr("FINSIGHT_VERSION", "0.2.0"),
		Store: StoreConfig{
			PostgresURL: envStr("FINSIGHT_POSTGRES_URL", ""),
			DataDir:     envStr("FINSIGHT_DATA_DIR", ""),
		},
		Controller: ControllerConfig{
			DriftThreshold: envFloat("FINSIGHT_DRIFT_THRESHOLD", 10.0),
			WeeklyCap:      envInt("FINSIGHT_WEEKLY_CAP", 3),
			Cooldown:       envDuration("FINSIGHT_COOLDOWN", 24*time.Hour),
			ResponseWindow: envDuration("FINSIGHT_RESPONSE_WINDOW", 48*time.Hour),
			Epsilon:        envFloat("FINSIGHT_EPSILON", 0.1),
			WindowSize:     envInt("FINSIGHT_WINDOW_SIZE", 20),
		},
		Schedule: ScheduleConfig{
			CronSpec:    envStr("FINSIGHT_CRON", "0 */6 * * *"),
			ReviewDelay: envDuration("FINSIGHT_REVIEW_DELAY", 15*time.Second),
		},
		Notify: NotifyConfig{
			WebhookURL:    envStr("FINSIGHT_WEBHOOK_URL", ""),
			WebhookSecret: envStr("FINSIGHT_WEBHOOK_SECRET", ""),
		},
		Phrasing: PhrasingConfig{
			GeminiAPIKey: envStr("GEMINI_API_KEY", ""),
			Model:        envStr("FINSIGHT_PHRASING_MODEL", "gemini-2.0-flash"),
			Timeout:      envDuration("FINSIGHT_PHRASING_TIMEOUT", 5*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "finsight"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
