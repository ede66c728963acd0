package models

import (
	"fmt"
	"math"
	"time"
)

// Combine weights for the causal-link confidence formula. Normative; any
// change must bump WeightsVersion.
const (
	WeightPrior  = 0.4
	WeightText   = 0.3
	WeightMarket = 0.3

	// WeightsVersion tags every scored link with the formula revision.
	WeightsVersion = "cmnln-1"
)

// CausalLink is a directed cause → effect edge between two events.
// Unique per ordered pair; upsert replaces only when the new total is higher.
type CausalLink struct {
	CauseID        string
	EffectID       string
	Kind           LinkKind
	Status         LinkStatus
	Sign           Sign
	LagClass       LagClass
	ConfPrior      float64
	ConfText       float64
	ConfMarket     float64
	ConfTotal      float64
	WeightsVersion string
	EvidenceIDs    []string
	CreatedAt      time.Time
}

// CombineConfidence applies the normative weighting.
func CombineConfidence(prior, text, market float64) float64 {
	return WeightPrior*prior + WeightText*text + WeightMarket*market
}

// Validate checks the link's arithmetic and endpoint invariants.
func (l *CausalLink) Validate() error {
	if l.CauseID == "" || l.EffectID == "" {
		return fmt.Errorf("causal link missing endpoint")
	}
	if l.CauseID == l.EffectID {
		return fmt.Errorf("causal link %s is a self-loop", l.CauseID)
	}
	want := CombineConfidence(l.ConfPrior, l.ConfText, l.ConfMarket)
	if math.Abs(l.ConfTotal-want) > 1e-6 {
		return fmt.Errorf("causal link %s->%s: total %.6f does not match combine formula %.6f",
			l.CauseID, l.EffectID, l.ConfTotal, want)
	}
	return nil
}

// ImpactEdge is a directed Event → Instrument edge, created only when the
// event study found a significant effect.
type ImpactEdge struct {
	EventID      string
	Ticker       string
	PriceImpact  float64
	VolumeImpact float64
	Sentiment    Sign
	Window       string
	CreatedAt    time.Time
}

// ImportanceScore is one historical scoring row for an event. Most recent
// wins for reads.
type ImportanceScore struct {
	EventID      string    `db:"event_id"`
	Novelty      float64   `db:"novelty"`
	Burst        float64   `db:"burst"`
	Credibility  float64   `db:"credibility"`
	Breadth      float64   `db:"breadth"`
	PriceImpact  float64   `db:"price_impact"`
	Total        float64   `db:"total"`
	CalculatedAt time.Time `db:"calculated_at"`
}

// Validate checks that every component and the total are within [0,1].
func (s *ImportanceScore) Validate() error {
	components := map[string]float64{
		"novelty": s.Novelty, "burst": s.Burst, "credibility": s.Credibility,
		"breadth": s.Breadth, "price_impact": s.PriceImpact, "total": s.Total,
	}
	for name, v := range components {
		if v < 0 || v > 1 {
			return fmt.Errorf("importance %s for event %s: %.3f outside [0,1]", name, s.EventID, v)
		}
	}
	return nil
}
