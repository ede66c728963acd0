package ceg

import (
	"context"
	"time"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// minTotalConfidence is the discard threshold for scored links.
const minTotalConfidence = 0.3

// MarketScorer supplies the market confidence component for an effect
// event: best event-study significance over its tickers, in [0,1].
type MarketScorer interface {
	MarketConfidence(ctx context.Context, effect *models.Event) (float64, error)
}

// Engine scores candidate cause → effect pairs into causal links.
type Engine struct {
	market MarketScorer
	logger *logging.Logger
}

// NewEngine builds the inference engine. A nil market scorer scores the
// market component as zero, which keeps the engine usable offline.
func NewEngine(market MarketScorer) *Engine {
	return &Engine{market: market, logger: logging.GetLogger("ceg")}
}

// DetectCausality evaluates whether cause plausibly caused effect.
// effectText is the effect's source text, scanned for causal markers.
// Returns nil (no error) when the pair fails the temporal guard or the
// combined confidence is below the discard threshold.
func (e *Engine) DetectCausality(ctx context.Context, cause, effect *models.Event, effectText string) (*models.CausalLink, error) {
	if !cause.Timestamp.Before(effect.Timestamp) {
		return nil, nil
	}
	delta := effect.Timestamp.Sub(cause.Timestamp)

	confPrior := 0.0
	sign := models.SignBoth
	lag := lagClassFor(delta)
	if prior, ok := findPrior(cause.Type, effect.Type, delta); ok {
		confPrior = prior.ConfPrior
		sign = prior.Sign
		lag = prior.ExpectedLag
		// Out-of-class lag keeps the rule but halves its weight.
		if !prior.ExpectedLag.Contains(delta) {
			confPrior *= 0.5
		}
	}

	confText := TextConfidence(effectText)

	confMarket := 0.0
	if e.market != nil && len(effect.Attrs.Tickers) > 0 {
		var err error
		confMarket, err = e.market.MarketConfidence(ctx, effect)
		if err != nil {
			return nil, err
		}
	}

	total := models.CombineConfidence(confPrior, confText, confMarket)
	if total < minTotalConfidence {
		return nil, nil
	}

	link := &models.CausalLink{
		CauseID:        cause.ID,
		EffectID:       effect.ID,
		Kind:           determineKind(confPrior, confText),
		Status:         models.LinkProposed,
		Sign:           sign,
		LagClass:       lag,
		ConfPrior:      confPrior,
		ConfText:       confText,
		ConfMarket:     confMarket,
		ConfTotal:      total,
		WeightsVersion: models.WeightsVersion,
		CreatedAt:      time.Now().UTC(),
	}
	e.logger.Debug("causal link %s->%s kind=%s total=%.3f (prior=%.2f text=%.2f market=%.2f)",
		cause.ID, effect.ID, link.Kind, total, confPrior, confText, confMarket)
	return link, nil
}

// determineKind classifies a link by its evidence profile: explicit text
// plus a strong prior confirms it, a strong prior alone is retroactive,
// anything weaker stays a hypothesis.
func determineKind(confPrior, confText float64) models.LinkKind {
	switch {
	case confPrior >= 0.6 && confText >= 0.6:
		return models.LinkConfirmed
	case confPrior >= 0.5:
		return models.LinkRetro
	default:
		return models.LinkHypothesis
	}
}

// lagClassFor picks the narrowest lag class containing delta, for pairs
// without a domain prior.
func lagClassFor(delta time.Duration) models.LagClass {
	for _, c := range []models.LagClass{
		models.Lag0To1h, models.Lag1hTo1d, models.Lag0To1d,
		models.Lag0To3d, models.Lag1To7d, models.Lag1To4w,
	} {
		if c.Contains(delta) {
			return c
		}
	}
	return models.Lag1To4w
}
