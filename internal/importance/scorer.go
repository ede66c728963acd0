// Package importance scores events on a [0,1] scale from five weighted
// components: novelty, burst, credibility, breadth and price impact.
// Scores are append-only history rows; reads take the most recent.
package importance

import (
	"context"
	"math"
	"time"

	"github.com/finradar/finradar/internal/linker"
	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// Component weights. They sum to 1, so a valid score never leaves [0,1]
// as long as each component is clamped.
const (
	weightNovelty     = 0.25
	weightBurst       = 0.20
	weightCredibility = 0.25
	weightBreadth     = 0.15
	weightPriceImpact = 0.15
)

// Aggregation windows for the history-dependent components.
const (
	burstWindow       = 24 * time.Hour
	burstRecentWindow = 6 * time.Hour
	corroborationSpan = 6 * time.Hour
)

// Stats provides the historical counts the scorer needs. Backed by the
// relational store in production, by fixtures in tests.
type Stats interface {
	// SimilarEventCount counts prior events of the same type sharing at
	// least one ticker with the given event, within the lookback window.
	SimilarEventCount(ctx context.Context, event *models.Event) (int, error)

	// BurstCounts returns how many events of the same type were seen in
	// the burst window, and how many of those fell in the most recent
	// part of it.
	BurstCounts(ctx context.Context, eventType models.EventType, until time.Time) (total, recent int, err error)

	// CorroboratingSources counts distinct other sources reporting the
	// same event type within the corroboration span around the event.
	CorroboratingSources(ctx context.Context, event *models.Event) (int, error)
}

// Scorer computes importance scores.
type Scorer struct {
	stats     Stats
	anchorSet map[models.EventType]bool
	logger    *logging.Logger
}

// NewScorer builds a scorer over the given stats backend.
func NewScorer(stats Stats, anchorSet map[models.EventType]bool) *Scorer {
	return &Scorer{
		stats:     stats,
		anchorSet: anchorSet,
		logger:    logging.GetLogger("importance"),
	}
}

// Score computes all five components and the weighted total for event,
// given the impact edges the event study produced for it (may be empty).
func (s *Scorer) Score(ctx context.Context, event *models.Event, impacts []models.ImpactEdge) (*models.ImportanceScore, error) {
	novelty, err := s.novelty(ctx, event)
	if err != nil {
		return nil, err
	}
	burst, err := s.burst(ctx, event)
	if err != nil {
		return nil, err
	}
	credibility, err := s.credibility(ctx, event)
	if err != nil {
		return nil, err
	}
	breadth := s.breadth(event)
	priceImpact := priceImpactComponent(impacts)

	score := &models.ImportanceScore{
		EventID:     event.ID,
		Novelty:     novelty,
		Burst:       burst,
		Credibility: credibility,
		Breadth:     breadth,
		PriceImpact: priceImpact,
		Total: clamp(weightNovelty*novelty + weightBurst*burst +
			weightCredibility*credibility + weightBreadth*breadth +
			weightPriceImpact*priceImpact),
		CalculatedAt: time.Now().UTC(),
	}
	s.logger.Debug("scored event %s type=%s total=%.3f (n=%.2f b=%.2f c=%.2f br=%.2f p=%.2f)",
		event.ID, event.Type, score.Total, novelty, burst, credibility, breadth, priceImpact)
	return score, nil
}

// novelty rewards the first reports of a story and blends in the
// structural rarity of the event type.
func (s *Scorer) novelty(ctx context.Context, event *models.Event) (float64, error) {
	count, err := s.stats.SimilarEventCount(ctx, event)
	if err != nil {
		return 0, err
	}
	base := 0.5
	switch {
	case count == 0:
		base += 0.3
	case count == 1:
		base += 0.1
	default:
		base += 0.05 * math.Max(0, float64(5-count)) / 5
	}
	return clamp(base*0.7 + rarityOf(event.Type)*0.3), nil
}

// burst measures reporting intensity: how many same-type events landed in
// the burst window, with a bonus when most of them are very fresh.
func (s *Scorer) burst(ctx context.Context, event *models.Event) (float64, error) {
	total, recent, err := s.stats.BurstCounts(ctx, event.Type, event.Timestamp)
	if err != nil {
		return 0, err
	}
	if total < 2 {
		return 0.1, nil
	}
	v := math.Min(1, math.Pow(float64(total-1), 0.7)/10)
	if float64(recent) > 0.7*float64(total) {
		v += 0.3
	}
	return clamp(v), nil
}

// credibility starts from source trust and layers on type, anchor and
// corroboration bonuses.
func (s *Scorer) credibility(ctx context.Context, event *models.Event) (float64, error) {
	v := 0.5 + float64(event.TrustLevel-5)*0.1
	if highCredTypes[event.Type] {
		v += 0.2
	}
	if event.IsAnchor || s.anchorSet[event.Type] {
		v += 0.15
	}
	corr, err := s.stats.CorroboratingSources(ctx, event)
	if err != nil {
		return 0, err
	}
	v += float64(corr) * 0.1
	return clamp(v), nil
}

// breadth measures how wide the blast radius is: number of companies
// named, their sector diversity, and whole-market event types.
func (s *Scorer) breadth(event *models.Event) float64 {
	n := len(event.Attrs.Companies)
	if n < len(event.Attrs.Tickers) {
		n = len(event.Attrs.Tickers)
	}
	var v float64
	switch {
	case n <= 1:
		v = 0.1
	case n <= 3:
		v = 0.3
	case n <= 10:
		v = 0.6
	default:
		v = 0.9
	}
	v += sectorDiversity(event.Attrs.Tickers) * 0.2
	if broadTypes[event.Type] {
		v += 0.2
	}
	return clamp(v)
}

// sectorDiversity maps the number of distinct sectors among the event's
// tickers into [0,1].
func sectorDiversity(tickers []string) float64 {
	sectors := make(map[string]bool)
	for _, t := range tickers {
		if sector := linker.SectorForTicker(t); sector != "" {
			sectors[sector] = true
		}
	}
	if len(sectors) <= 1 {
		return 0
	}
	return math.Min(1, float64(len(sectors))/5)
}

// priceImpactComponent folds significant per-ticker market reactions into
// one component: mean of per-ticker scores, with a bonus when any single
// ticker reacted hard.
func priceImpactComponent(impacts []models.ImpactEdge) float64 {
	if len(impacts) == 0 {
		return 0
	}
	var sum, max float64
	for _, imp := range impacts {
		per := math.Min(1, math.Abs(imp.PriceImpact)*100*0.7+math.Max(0, imp.VolumeImpact-1)/5*0.3)
		sum += per
		if per > max {
			max = per
		}
	}
	v := sum / float64(len(impacts))
	if max > 0.7 {
		v += 0.2
	}
	return clamp(v)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
