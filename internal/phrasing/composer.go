// Package phrasing composes intervention copy. The generative composer
// (Gemini) is optional and non-blocking: any error, timeout, or missing
// API key falls back to canned per-type templates, so composing never
// fails and never costs more than the configured budget.
package phrasing

import (
	"context"
	"fmt"
	"time"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/pkg/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Material is everything a composer may weave into the copy.
type Material struct {
	Type          models.InterventionType
	Snapshot      models.FinancialSnapshot
	Drift         float64 // percentage points
	DriftClass    string  // asset class with the largest deviation
	MilestoneMark int     // emergency-fund percent mark, milestone type only
	GoalDate      *time.Time
}

// Copy is a composed title/message pair.
type Copy struct {
	Title   string
	Message string
}

// Composer turns material into user-facing copy.
type Composer interface {
	Compose(ctx context.Context, m Material) Copy
}

// New builds the composer stack from config: template-only without an
// API key, Gemini-over-template with one.
func New(ctx context.Context, cfg config.PhrasingConfig) Composer {
	tmpl := TemplateComposer{}
	if cfg.GeminiAPIKey == "" {
		log.Info().Msg("Phrasing: template composer (no API key)")
		return tmpl
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		log.Warn().Err(err).Msg("Phrasing: Gemini client init failed, using templates")
		return tmpl
	}
	log.Info().Str("model", cfg.Model).Msg("Phrasing: Gemini composer enabled")
	return &GenAIComposer{
		client:   client,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		fallback: tmpl,
	}
}

// ── Template composer ────────────────────────────────────────

// TemplateComposer produces canned copy with numeric fills. It never
// fails, making it the terminal fallback.
type TemplateComposer struct{}

func (TemplateComposer) Compose(_ context.Context, m Material) Copy {
	switch m.Type {
	case models.InterventionDriftAlert:
		return Copy{
			Title: "Your portfolio has drifted",
			Message: fmt.Sprintf("Your %s allocation is %.1f percentage points away from your target. A quick review would bring it back in line.",
				m.DriftClass, m.Drift),
		}
	case models.InterventionRebalanceSuggestion:
		return Copy{
			Title: "Time to rebalance",
			Message: fmt.Sprintf("Rebalancing now would close a %.1f point gap in %s and keep your risk where you chose it.",
				m.Drift, m.DriftClass),
		}
	case models.InterventionContributionReminder:
		return Copy{
			Title: "Contribution check",
			Message: fmt.Sprintf("Your savings rate is %.1f%% this month — a small top-up keeps your plan on schedule.",
				m.Snapshot.SavingsRate),
		}
	case models.InterventionMilestone:
		return Copy{
			Title: "Milestone reached 🎉",
			Message: fmt.Sprintf("Your emergency fund just passed %d%% of its goal. Nice work — momentum like this compounds.",
				m.MilestoneMark),
		}
	case models.InterventionGoalCheck:
		msg := "Your goal date is coming up. Worth a quick look at where you stand."
		if m.GoalDate != nil {
			msg = fmt.Sprintf("Your goal date (%s) is coming up. Worth a quick look at where you stand.",
				m.GoalDate.Format("Jan 2"))
		}
		return Copy{Title: "Goal check-in", Message: msg}
	default:
		return Copy{
			Title:   "Portfolio update",
			Message: "There's something worth a look in your financial plan.",
		}
	}
}

// ── Generative composer ──────────────────────────────────────

// GenAIComposer rephrases the template copy with Gemini. Strictly
// best-effort: any error or empty response returns the template copy.
type GenAIComposer struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	fallback TemplateComposer
}

func (g *GenAIComposer) Compose(ctx context.Context, m Material) Copy {
	canned := g.fallback.Compose(ctx, m)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Rewrite this financial nudge in one warm, concise sentence. Keep every number exactly as given. Do not add advice.\nTitle: %s\nMessage: %s",
		canned.Title, canned.Message)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		log.Warn().Err(err).Str("type", string(m.Type)).Msg("Phrasing: generation failed, using template")
		return canned
	}
	text := resp.Text()
	if text == "" {
		return canned
	}
	return Copy{Title: canned.Title, Message: text}
}
