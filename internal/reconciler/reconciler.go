// Package reconciler retroactively links new events into the causal
// graph. A freshly written event may be the cause of events ingested
// before it (backfill, out-of-order sources) or the effect of events
// that arrived earlier; both directions are re-evaluated pairwise.
package reconciler

import (
	"context"
	"time"

	"github.com/finradar/finradar/internal/ceg"
	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/metrics"
	"github.com/finradar/finradar/internal/models"
)

// Scan bounds per new event.
const (
	defaultScanCap  = 100
	defaultLookback = 30 * 24 * time.Hour
)

// EventSource serves events by time window, oldest first.
type EventSource interface {
	EventsInWindow(ctx context.Context, since, until time.Time, limit int) ([]*models.Event, error)
}

// LinkWriter upserts causal links, keeping the stronger of old and new.
type LinkWriter interface {
	LinkCauses(ctx context.Context, link *models.CausalLink) error
}

// ScoreSource serves the latest importance score per event, used to
// weight evidence candidates. May be nil.
type ScoreSource interface {
	LatestImportance(ctx context.Context, eventID string) (*models.ImportanceScore, error)
}

// Options bound one reconciler. Zero values take the defaults.
type Options struct {
	ScanCap  int
	Lookback time.Duration
	Scores   ScoreSource
	Metrics  *metrics.Metrics
}

// Reconciler runs the pairwise causal evaluation around each new event.
type Reconciler struct {
	events   EventSource
	engine   *ceg.Engine
	writer   LinkWriter
	scores   ScoreSource
	metrics  *metrics.Metrics
	scanCap  int
	lookback time.Duration
	logger   *logging.Logger
}

// New builds a reconciler.
func New(events EventSource, engine *ceg.Engine, writer LinkWriter, opts Options) *Reconciler {
	if opts.ScanCap <= 0 {
		opts.ScanCap = defaultScanCap
	}
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	return &Reconciler{
		events:   events,
		engine:   engine,
		writer:   writer,
		scores:   opts.Scores,
		metrics:  opts.Metrics,
		scanCap:  opts.ScanCap,
		lookback: opts.Lookback,
		logger:   logging.GetLogger("reconciler"),
	}
}

// Reconcile evaluates the new event as a cause of later events and as
// an effect of earlier ones, upserting every link that scores. A single
// pair failing does not stop the scan. Returns the number of links
// written.
func (r *Reconciler) Reconcile(ctx context.Context, event *models.Event) (int, error) {
	written := 0

	successors, err := r.events.EventsInWindow(ctx, event.Timestamp, event.Timestamp.Add(r.lookback), r.scanCap)
	if err != nil {
		return 0, err
	}
	for _, succ := range successors {
		if succ.ID == event.ID {
			continue
		}
		if r.evaluate(ctx, event, succ) {
			written++
		}
	}

	predecessors, err := r.events.EventsInWindow(ctx, event.Timestamp.Add(-r.lookback), event.Timestamp, r.scanCap)
	if err != nil {
		return written, err
	}
	for _, pred := range predecessors {
		if pred.ID == event.ID {
			continue
		}
		if r.evaluate(ctx, pred, event) {
			written++
		}
	}

	if written > 0 {
		r.logger.Debug("event %s: %d retroactive links written", event.ID, written)
	}
	return written, nil
}

// evaluate scores one ordered pair and writes the link if it survives
// the confidence gate. The stored-link upsert only replaces weaker
// links, so re-running is safe.
func (r *Reconciler) evaluate(ctx context.Context, cause, effect *models.Event) bool {
	link, err := r.engine.DetectCausality(ctx, cause, effect, effect.Title)
	if err != nil {
		r.logger.Warn("detect %s -> %s: %v", cause.ID, effect.ID, err)
		return false
	}
	if link == nil {
		return false
	}
	link.EvidenceIDs = r.collectEvidence(ctx, cause, effect)
	if err := r.writer.LinkCauses(ctx, link); err != nil {
		r.logger.Warn("link %s -> %s: %v", cause.ID, effect.ID, err)
		return false
	}
	if r.metrics != nil {
		r.metrics.LinksCreated.WithLabelValues(string(link.Kind)).Inc()
	}
	return true
}

// collectEvidence scores the events lying between cause and effect and
// attaches the strongest as the link's evidence chain.
func (r *Reconciler) collectEvidence(ctx context.Context, cause, effect *models.Event) []string {
	between, err := r.events.EventsInWindow(ctx, cause.Timestamp, effect.Timestamp, r.scanCap)
	if err != nil {
		r.logger.Warn("evidence window %s -> %s: %v", cause.ID, effect.ID, err)
		return nil
	}
	candidates := make([]ceg.EvidenceCandidate, 0, len(between))
	for _, ev := range between {
		candidates = append(candidates, ceg.EvidenceCandidate{
			Event:      ev,
			Importance: r.importanceOf(ctx, ev.ID),
		})
	}
	scored := ceg.FindEvidence(cause, effect, candidates)
	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.Event.ID)
	}
	return ids
}

func (r *Reconciler) importanceOf(ctx context.Context, eventID string) float64 {
	if r.scores == nil {
		return 0
	}
	score, err := r.scores.LatestImportance(ctx, eventID)
	if err != nil || score == nil {
		return 0
	}
	return score.Total
}
