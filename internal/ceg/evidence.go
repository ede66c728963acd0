package ceg

import (
	"math"
	"sort"
	"strings"

	"github.com/finradar/finradar/internal/models"
)

// Evidence selection thresholds. Collection stops early once the soft
// target of strong candidates is met; the hard cap always holds.
const (
	maxEvidence        = 5
	softEvidenceTarget = 3
	strongEvidence     = 0.8
	evidenceThreshold  = 0.3
)

// Evidence component weights.
const (
	evWeightTemporal   = 0.3
	evWeightSemantic   = 0.3
	evWeightEntity     = 0.25
	evWeightTrust      = 0.1
	evWeightImportance = 0.05
)

// typeAdjacency links event types that commonly appear in the same causal
// storyline. Used for the semantic component of evidence scoring.
var typeAdjacency = map[models.EventType][]models.EventType{
	models.EventSanctions:    {models.EventMarketDrop, models.EventRubDepreciation, models.EventSectorDrop, models.EventStockDrop},
	models.EventRateHike:     {models.EventBankStockUp, models.EventRubAppreciation, models.EventBondCrash},
	models.EventRateCut:      {models.EventRubDepreciation, models.EventStockRally},
	models.EventEarnings:     {models.EventGuidanceCut, models.EventDividendCut, models.EventStockRally, models.EventStockDrop},
	models.EventEarningsBeat: {models.EventStockRally},
	models.EventEarningsMiss: {models.EventStockDrop, models.EventGuidanceCut},
	models.EventMA:           {models.EventRegulatory, models.EventStockRally, models.EventManagementChange},
	models.EventDefault:      {models.EventBondCrash, models.EventStockDrop},
	models.EventMarketDrop:   {models.EventStockVolatility, models.EventStockDrop, models.EventSectorDrop},
	models.EventAccident:     {models.EventProductionDown, models.EventStockDrop},
	models.EventSupplyChain:  {models.EventProductionDown},
	models.EventRegulatory:   {models.EventSectorDrop},
	models.EventBuyback:      {models.EventStockRally},
	models.EventDividendCut:  {models.EventStockDrop},
}

// EvidenceCandidate pairs an intermediate event with its latest
// importance score.
type EvidenceCandidate struct {
	Event      *models.Event
	Importance float64
}

// ScoredEvidence is a candidate that passed the threshold.
type ScoredEvidence struct {
	Event *models.Event
	Score float64
}

// FindEvidence scores candidates lying strictly between cause and effect
// and returns the strongest ones, best first.
func FindEvidence(cause, effect *models.Event, candidates []EvidenceCandidate) []ScoredEvidence {
	var scored []ScoredEvidence
	for _, c := range candidates {
		if c.Event.ID == cause.ID || c.Event.ID == effect.ID {
			continue
		}
		if !cause.Timestamp.Before(c.Event.Timestamp) || !c.Event.Timestamp.Before(effect.Timestamp) {
			continue
		}
		score := evidenceScore(cause, effect, c)
		if score >= evidenceThreshold {
			scored = append(scored, ScoredEvidence{Event: c.Event, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	strong := 0
	for i, s := range scored {
		if s.Score >= strongEvidence {
			strong++
		}
		if strong >= softEvidenceTarget || i+1 >= maxEvidence {
			return scored[:i+1]
		}
	}
	return scored
}

func evidenceScore(cause, effect *models.Event, c EvidenceCandidate) float64 {
	return evWeightTemporal*temporalCentrality(cause, effect, c.Event) +
		evWeightSemantic*semanticRelevance(cause, effect, c.Event) +
		evWeightEntity*entityOverlap(cause, effect, c.Event) +
		evWeightTrust*math.Min(1, float64(c.Event.TrustLevel)/10) +
		evWeightImportance*c.Importance
}

// temporalCentrality favours events near the midpoint of the causal
// interval, with a wide Gaussian so position matters but mildly.
func temporalCentrality(cause, effect, ev *models.Event) float64 {
	interval := effect.Timestamp.Sub(cause.Timestamp).Seconds()
	if interval <= 0 {
		return 0
	}
	pos := ev.Timestamp.Sub(cause.Timestamp).Seconds() / interval
	const sigma = 4.0
	return math.Min(1, 1.5*math.Exp(-((pos-0.5)*(pos-0.5))/(2*sigma*sigma)))
}

// semanticRelevance combines type adjacency with shared keywords in the
// event titles.
func semanticRelevance(cause, effect, ev *models.Event) float64 {
	var score float64
	if adjacent(cause.Type, ev.Type) {
		score += 0.6
	}
	if adjacent(effect.Type, ev.Type) {
		score += 0.6
	}
	if adjacent(ev.Type, effect.Type) {
		score += 0.4
	}
	score += keywordOverlap(cause, effect, ev) * 0.3
	return math.Min(1, score)
}

func adjacent(from, to models.EventType) bool {
	for _, t := range typeAdjacency[from] {
		if t == to {
			return true
		}
	}
	return false
}

func keywordOverlap(cause, effect, ev *models.Event) float64 {
	evWords := titleWords(ev)
	var score float64
	if cw := titleWords(cause); len(cw) > 0 {
		score += float64(intersectCount(evWords, cw)) / float64(len(cw)) * 0.5
	}
	if fw := titleWords(effect); len(fw) > 0 {
		score += float64(intersectCount(evWords, fw)) / float64(len(fw)) * 0.5
	}
	return math.Min(1, score)
}

func titleWords(ev *models.Event) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(ev.Title)) {
		w = strings.Trim(w, ".,!?:;\"'()«»")
		if len([]rune(w)) > 3 {
			words[w] = true
		}
	}
	return words
}

func intersectCount(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// entityOverlap is the Jaccard overlap between the candidate's entities
// and the union of both endpoints' entities.
func entityOverlap(cause, effect, ev *models.Event) float64 {
	endpoints := make(map[string]bool)
	for _, e := range append(entities(cause), entities(effect)...) {
		endpoints[e] = true
	}
	if len(endpoints) == 0 {
		return 0
	}
	evSet := make(map[string]bool)
	for _, e := range entities(ev) {
		evSet[e] = true
	}
	shared := intersectCount(evSet, endpoints)
	union := len(endpoints)
	for e := range evSet {
		if !endpoints[e] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func entities(ev *models.Event) []string {
	out := make([]string, 0, len(ev.Attrs.Tickers)+len(ev.Attrs.Companies))
	for _, t := range ev.Attrs.Tickers {
		out = append(out, strings.ToUpper(t))
	}
	for _, c := range ev.Attrs.Companies {
		out = append(out, strings.ToLower(c))
	}
	return out
}
