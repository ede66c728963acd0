package watchers

import (
	"context"
	"encoding/json"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/finradar/finradar/internal/ceg"
	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// Probability multiplier bounds and the connectivity saturation point.
const (
	minMultiplier       = 0.5
	maxMultiplier       = 2.0
	connectedSaturation = 5
)

// Store is the persistence the engine needs: watch and prediction rows
// plus the event lookups used for burst gating and fulfilment matching.
type Store interface {
	InsertTriggeredWatch(ctx context.Context, watch *models.TriggeredWatch) error
	MarkNotified(ctx context.Context, watchID string) error
	InsertPrediction(ctx context.Context, p *models.EventPrediction) error
	OpenPredictions(ctx context.Context, predictedType models.EventType, ts time.Time) ([]*models.EventPrediction, error)
	ResolvePrediction(ctx context.Context, predictionID string, status models.PredictionStatus, actualEventID string, at time.Time) error
	ExpireWatches(ctx context.Context, now time.Time) (int, error)
	ExpirePredictions(ctx context.Context, now time.Time) (int, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	BurstCounts(ctx context.Context, eventType models.EventType, until time.Time) (int, int, error)
}

// Evaluation is what one event triggered.
type Evaluation struct {
	Watches     []*models.TriggeredWatch
	Predictions []*models.EventPrediction
}

// Engine evaluates events against the active rule set, persists hits,
// fans out notifications and generates predictions.
type Engine struct {
	store     Store
	graph     ceg.GraphReader
	notifiers []Notifier
	rules     atomic.Pointer[RuleSet]
	logger    *logging.Logger
}

// NewEngine builds an engine. The graph reader may be nil; the
// connectivity term of the probability multiplier then contributes zero.
func NewEngine(store Store, graph ceg.GraphReader, rules *RuleSet, notifiers ...Notifier) *Engine {
	e := &Engine{
		store:     store,
		graph:     graph,
		notifiers: notifiers,
		logger:    logging.GetLogger("watchers"),
	}
	e.rules.Store(rules)
	return e
}

// SetRules atomically swaps the active rule set. Called by the rule-file
// reloader.
func (e *Engine) SetRules(rules *RuleSet) {
	e.rules.Store(rules)
	e.logger.Info("rule set swapped: %d rules", len(rules.Rules()))
}

// Evaluate runs every rule against the event. Triggered watches and
// generated predictions are persisted before being returned. A nil
// importance score evaluates as total 0.
func (e *Engine) Evaluate(ctx context.Context, event *models.Event, importance *models.ImportanceScore) (*Evaluation, error) {
	total := 0.0
	if importance != nil {
		total = importance.Total
	}

	burstTotal, _, err := e.store.BurstCounts(ctx, event.Type, event.Timestamp)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{}
	for _, rule := range e.rules.Load().Rules() {
		if !rule.Matches(event, total, burstTotal) {
			continue
		}
		watch, err := e.trigger(ctx, &rule, event, total)
		if err != nil {
			return eval, err
		}
		eval.Watches = append(eval.Watches, watch)

		if rule.Level == models.WatchL2 {
			predictions, err := e.predict(ctx, watch, event, importance)
			if err != nil {
				return eval, err
			}
			eval.Predictions = append(eval.Predictions, predictions...)
		}
	}
	return eval, nil
}

func (e *Engine) trigger(ctx context.Context, rule *Rule, event *models.Event, importanceTotal float64) (*models.TriggeredWatch, error) {
	expire := time.Duration(rule.ExpireHours) * time.Hour
	if rule.Level == models.WatchL1 && rule.FollowDays > 0 {
		expire = time.Duration(rule.FollowDays) * 24 * time.Hour
	}
	if expire == 0 {
		expire = defaultExpireHours * time.Hour
	}

	snapshot, _ := json.Marshal(map[string]interface{}{
		"event_type": string(event.Type),
		"title":      event.Title,
		"tickers":    event.Attrs.Tickers,
		"importance": importanceTotal,
	})

	watch := &models.TriggeredWatch{
		ID:           uuid.NewString(),
		RuleID:       rule.ID,
		Level:        rule.Level,
		EventID:      event.ID,
		TriggeredAt:  event.Timestamp,
		AutoExpireAt: event.Timestamp.Add(expire),
		Context:      string(snapshot),
	}
	if err := e.store.InsertTriggeredWatch(ctx, watch); err != nil {
		return nil, err
	}
	e.logger.Info("rule %s (%s) triggered by event %s", rule.ID, rule.Level, event.ID)

	e.notify(ctx, watch, event)
	return watch, nil
}

// notify fans out to all handlers. Handlers are best-effort: one failing
// does not block the rest, and the watch is marked notified as soon as
// any handler succeeds.
func (e *Engine) notify(ctx context.Context, watch *models.TriggeredWatch, event *models.Event) {
	delivered := false
	for _, n := range e.notifiers {
		if err := n.Notify(ctx, watch, event); err != nil {
			e.logger.Warn("notifier %s failed for watch %s: %v", n.Name(), watch.ID, err)
			continue
		}
		delivered = true
	}
	if !delivered {
		return
	}
	watch.NotificationsSent = true
	if err := e.store.MarkNotified(ctx, watch.ID); err != nil {
		e.logger.Warn("mark notified %s: %v", watch.ID, err)
	}
}

// predict generates prediction rows for an L2 trigger from the follow-on
// table, scaled by the causal-neighborhood multiplier.
func (e *Engine) predict(ctx context.Context, watch *models.TriggeredWatch, event *models.Event, importance *models.ImportanceScore) ([]*models.EventPrediction, error) {
	followOns := FollowOnsFor(event.Type)
	if len(followOns) == 0 {
		return nil, nil
	}
	mult := e.probabilityMultiplier(ctx, event, importance)

	var out []*models.EventPrediction
	for _, fo := range followOns {
		p := &models.EventPrediction{
			ID:            uuid.NewString(),
			WatchID:       watch.ID,
			BaseEventID:   event.ID,
			PredictedType: fo.Type,
			Probability:   clampProbability(fo.Probability * mult),
			WindowDays:    fo.WindowDays,
			TargetDate:    event.Timestamp.Add(time.Duration(fo.WindowDays) * 24 * time.Hour),
			Status:        models.PredictionPending,
			CreatedAt:     time.Now().UTC(),
		}
		if err := e.store.InsertPrediction(ctx, p); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	e.logger.Debug("event %s: %d predictions generated (multiplier %.2f)", event.ID, len(out), mult)
	return out, nil
}

// probabilityMultiplier scales follow-on base probabilities by how
// important the trigger is, how hard it hit prices, and how connected it
// already is in the graph.
func (e *Engine) probabilityMultiplier(ctx context.Context, event *models.Event, importance *models.ImportanceScore) float64 {
	total, price := 0.5, 0.0
	if importance != nil {
		total = importance.Total
		price = importance.PriceImpact
	}

	connected := 0.0
	if e.graph != nil {
		links, err := e.graph.OutgoingLinks(ctx, event.ID)
		if err != nil {
			e.logger.Debug("outgoing links for %s: %v", event.ID, err)
		} else {
			connected = math.Min(1, float64(len(links))/connectedSaturation)
		}
	}

	m := 1 + (total-0.5)*0.5 + price*0.3 + connected*0.2
	return math.Min(maxMultiplier, math.Max(minMultiplier, m))
}

func clampProbability(p float64) float64 {
	return math.Min(0.99, math.Max(0.05, p))
}

// ReconcilePredictions checks a new event against open predictions of
// its type and marks matches fulfilled. Returns the fulfilled rows.
func (e *Engine) ReconcilePredictions(ctx context.Context, event *models.Event) ([]*models.EventPrediction, error) {
	open, err := e.store.OpenPredictions(ctx, event.Type, event.Timestamp)
	if err != nil {
		return nil, err
	}

	var fulfilled []*models.EventPrediction
	for _, p := range open {
		if !p.Open(event.Timestamp) || p.BaseEventID == event.ID {
			continue
		}
		base, err := e.store.GetEvent(ctx, p.BaseEventID)
		if err != nil {
			e.logger.Warn("prediction %s: base event %s: %v", p.ID, p.BaseEventID, err)
			continue
		}
		if !entitiesOverlap(base, event) {
			continue
		}
		if err := e.store.ResolvePrediction(ctx, p.ID, models.PredictionFulfilled, event.ID, event.Timestamp); err != nil {
			return fulfilled, err
		}
		p.Status = models.PredictionFulfilled
		p.ActualEventID = event.ID
		fulfilled = append(fulfilled, p)
		e.logger.Info("prediction %s fulfilled by event %s", p.ID, event.ID)
	}
	return fulfilled, nil
}

// entitiesOverlap reports whether two events share a ticker or company.
// Events carrying no entities at all (macro moves) match anything.
func entitiesOverlap(a, b *models.Event) bool {
	if len(a.Attrs.Tickers)+len(a.Attrs.Companies) == 0 ||
		len(b.Attrs.Tickers)+len(b.Attrs.Companies) == 0 {
		return true
	}
	return overlaps(a.Attrs.Tickers, b.Attrs.Tickers) ||
		overlaps(a.Attrs.Companies, b.Attrs.Companies)
}

// Sweep expires watches past their auto-expiry and flips pending
// predictions whose window closed to unfulfilled.
func (e *Engine) Sweep(ctx context.Context, now time.Time) error {
	watches, err := e.store.ExpireWatches(ctx, now)
	if err != nil {
		return err
	}
	predictions, err := e.store.ExpirePredictions(ctx, now)
	if err != nil {
		return err
	}
	if watches > 0 || predictions > 0 {
		e.logger.Info("expiry sweep: %d watches, %d predictions", watches, predictions)
	}
	return nil
}
