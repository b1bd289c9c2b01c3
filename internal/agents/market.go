package agents

import (
	"fmt"
	"time"

	"github.com/finsight/finsight/pkg/models"
)

// VolatilityLevel is the single market-wide signal the context agent
// consumes.
type VolatilityLevel string

const (
	VolatilityLow      VolatilityLevel = "low"
	VolatilityModerate VolatilityLevel = "moderate"
	VolatilityElevated VolatilityLevel = "elevated"
)

// Sentiment is the agent's generic market read.
type Sentiment string

const (
	SentimentCautious   Sentiment = "cautious"
	SentimentNeutral    Sentiment = "neutral"
	SentimentOptimistic Sentiment = "optimistic"
)

// MarketDataSource supplies the volatility signal. In production this is
// backed by a market-data feed; StaticMarketSource is the zero-config
// default.
type MarketDataSource interface {
	VolatilityLevel() VolatilityLevel
}

// StaticMarketSource returns a fixed volatility level.
type StaticMarketSource struct {
	Level VolatilityLevel
}

func (s StaticMarketSource) VolatilityLevel() VolatilityLevel {
	if s.Level == "" {
		return VolatilityModerate
	}
	return s.Level
}

// MarketContext is the agent's non-personalized output.
type MarketContext struct {
	Sentiment       Sentiment         `json:"sentiment"`
	AssetNarratives map[string]string `json:"asset_narratives"`
	EducationalNote string            `json:"educational_note"`
}

// MarketContextAgent produces a generic market narrative. Stateless and
// non-personalized; confidence is fixed in a narrow band because the
// narrative is educational, not predictive.
type MarketContextAgent struct {
	now    Clock
	source MarketDataSource
}

const marketConfidence = 0.87

func NewMarketContextAgent(now Clock, source MarketDataSource) *MarketContextAgent {
	if now == nil {
		now = time.Now
	}
	if source == nil {
		source = StaticMarketSource{}
	}
	return &MarketContextAgent{now: now, source: source}
}

func (a *MarketContextAgent) Name() string { return "market_context" }

// Assess maps the current volatility level to a sentiment and per-asset
// narratives.
func (a *MarketContextAgent) Assess() (MarketContext, models.AgentInsight) {
	now := a.now().UTC()
	level := a.source.VolatilityLevel()

	var sentiment Sentiment
	switch level {
	case VolatilityLow:
		sentiment = SentimentOptimistic
	case VolatilityElevated:
		sentiment = SentimentCautious
	default:
		sentiment = SentimentNeutral
	}

	ctx := MarketContext{
		Sentiment:       sentiment,
		AssetNarratives: narrativesFor(sentiment),
		EducationalNote: "Time in the market beats timing the market: consistent contributions matter more than entry points over multi-year horizons.",
	}

	insight := models.AgentInsight{
		Agent:      a.Name(),
		Timestamp:  now,
		Message:    fmt.Sprintf("Market conditions look %s with %s volatility.", sentiment, level),
		Reasoning:  fmt.Sprintf("Volatility signal %q maps to a %s posture for long-horizon savers.", level, sentiment),
		Confidence: marketConfidence,
	}

	return ctx, insight
}

func narrativesFor(s Sentiment) map[string]string {
	switch s {
	case SentimentOptimistic:
		return map[string]string{
			"stocks": "Equities have room to run in calm conditions; staying invested captures the upside.",
			"bonds":  "Bonds offer ballast but trail equities when volatility is low.",
			"cash":   "Cash drags in calm markets — keep only your emergency buffer liquid.",
		}
	case SentimentCautious:
		return map[string]string{
			"stocks": "Elevated volatility means wider swings; dollar-cost averaging smooths the ride.",
			"bonds":  "Bonds earn their keep in choppy markets as a stabilizer.",
			"cash":   "A fuller cash buffer is reasonable while volatility stays elevated.",
		}
	default:
		return map[string]string{
			"stocks": "Equities remain the growth engine for horizons beyond five years.",
			"bonds":  "Bonds temper portfolio swings and fund near-term goals.",
			"cash":   "Cash covers emergencies; beyond that it loses ground to inflation.",
		}
	}
}
