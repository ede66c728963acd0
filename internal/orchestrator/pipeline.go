package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finradar/finradar/internal/events"
	"github.com/finradar/finradar/internal/extraction"
	"github.com/finradar/finradar/internal/linker"
	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/marketimpact"
	"github.com/finradar/finradar/internal/metrics"
	"github.com/finradar/finradar/internal/models"
	"github.com/finradar/finradar/internal/storage"
	"github.com/finradar/finradar/internal/watchers"
)

// RecordStore is the relational persistence the pipeline writes to.
type RecordStore interface {
	InsertRecord(ctx context.Context, record *models.Record) (bool, error)
	UpsertEvent(ctx context.Context, event *models.Event) error
	InsertImportance(ctx context.Context, score *models.ImportanceScore) error
}

// GraphWriter is the graph-side persistence.
type GraphWriter interface {
	UpsertRecord(ctx context.Context, record *models.Record) error
	UpsertEvent(ctx context.Context, event *models.Event) error
	UpsertInstrument(ctx context.Context, inst *models.Instrument) error
	UpsertCompany(ctx context.Context, company *models.Company) error
	LinkEventRecord(ctx context.Context, eventID, recordUID string) error
	LinkImpacts(ctx context.Context, edge *models.ImpactEdge, instrumentUID string) error
	LinkCompanyInstrument(ctx context.Context, companyID, instrumentUID string) error
}

// MarketAnalyzer runs the event study.
type MarketAnalyzer interface {
	Analyze(ctx context.Context, event *models.Event) ([]marketimpact.Result, error)
}

// WatchEngine evaluates watcher rules and prediction fulfilment.
type WatchEngine interface {
	Evaluate(ctx context.Context, event *models.Event, importance *models.ImportanceScore) (*watchers.Evaluation, error)
	ReconcilePredictions(ctx context.Context, event *models.Event) ([]*models.EventPrediction, error)
}

// Retro runs the retroactive pairwise causal scan.
type Retro interface {
	Reconcile(ctx context.Context, event *models.Event) (int, error)
}

// Scorer computes importance scores.
type Scorer interface {
	Score(ctx context.Context, event *models.Event, impacts []models.ImpactEdge) (*models.ImportanceScore, error)
}

// Resolver maps company mentions to instruments.
type Resolver interface {
	Resolve(ctx context.Context, mention string) (*linker.Result, error)
}

// Pipeline is the per-record processing chain shared by all source
// workers. Every stage is idempotent, so replaying a batch converges.
type Pipeline struct {
	extractor Client
	eventsEx  *events.Extractor
	resolver  Resolver
	scorer    Scorer
	market    MarketAnalyzer
	store     RecordStore
	graph     GraphWriter
	watch     WatchEngine
	retro     Retro
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// Client matches extraction.Client; aliased here so tests can fake it
// without touching the extraction package.
type Client = extraction.Client

// PipelineDeps wires a pipeline. Metrics may be nil.
type PipelineDeps struct {
	Extraction Client
	Events     *events.Extractor
	Resolver   Resolver
	Scorer     Scorer
	Market     MarketAnalyzer
	Store      RecordStore
	Graph      GraphWriter
	Watchers   WatchEngine
	Retro      Retro
	Metrics    *metrics.Metrics
}

// NewPipeline builds the processing chain.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		extractor: deps.Extraction,
		eventsEx:  deps.Events,
		resolver:  deps.Resolver,
		scorer:    deps.Scorer,
		market:    deps.Market,
		store:     deps.Store,
		graph:     deps.Graph,
		watch:     deps.Watchers,
		retro:     deps.Retro,
		metrics:   deps.Metrics,
		logger:    logging.GetLogger("pipeline"),
	}
}

// ProcessBatch extracts the whole batch in one client call, then fans
// the records out for the downstream stages. Extraction failures are
// retried per the transient policy; a fatal extraction error aborts and
// disables the source for the run.
func (p *Pipeline) ProcessBatch(ctx context.Context, src *models.Source, records []*models.Record) error {
	inputs := make([]extraction.Input, len(records))
	for i, r := range records {
		inputs[i] = extraction.Input{
			ID:         r.ID,
			Text:       r.Title + "\n" + r.Body,
			Timestamp:  r.PublishedAt,
			SourceName: r.SourceCode,
		}
	}

	started := time.Now()
	var extractions []models.Extraction
	err := withRetry(ctx, func() error {
		var exErr error
		extractions, exErr = p.extractor.ExtractBatch(ctx, inputs)
		if errors.Is(exErr, extraction.ErrFatal) {
			return fmt.Errorf("%w: %v", ErrFatalSource, exErr)
		}
		return exErr
	})
	if p.metrics != nil {
		p.metrics.ExtractionSeconds.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return err
	}
	if len(extractions) != len(records) {
		return fmt.Errorf("extraction returned %d results for %d records", len(extractions), len(records))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(records))
	processed := make([][]*models.Event, len(records))
	for i := range records {
		i := i
		g.Go(func() error {
			events, err := p.processRecord(gctx, src, records[i], &extractions[i])
			processed[i] = events
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// The retroactive scan runs once the whole batch is persisted, so
	// same-batch cause/effect pairs are visible in both directions.
	for _, events := range processed {
		for _, event := range events {
			if _, err := p.retro.Reconcile(ctx, event); err != nil {
				p.logger.Warn("retroactive scan for %s: %v", event.ID, err)
			}
		}
	}
	return nil
}

// processRecord runs the downstream chain for one record, returning the
// events it persisted. Malformed records are skipped, not failed.
func (p *Pipeline) processRecord(ctx context.Context, src *models.Source, record *models.Record, ext *models.Extraction) ([]*models.Event, error) {
	if err := record.Validate(); err != nil {
		p.logger.Warn("skipping malformed record: %v", err)
		return nil, nil
	}

	inserted, err := p.store.InsertRecord(ctx, record)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		if inserted {
			p.metrics.RecordsIngested.WithLabelValues(src.Code).Inc()
		} else {
			p.metrics.RecordsDuplicate.WithLabelValues(src.Code).Inc()
		}
	}
	// A duplicate row still runs the downstream stages: the cursor only
	// advances after a fully committed batch, so a replayed record may
	// have failed partway last time. Every stage is an idempotent upsert
	// keyed on stable IDs, so reprocessing converges.
	if err := p.graph.UpsertRecord(ctx, record); err != nil {
		return nil, err
	}

	var processed []*models.Event
	for _, event := range p.eventsEx.Extract(record, ext) {
		event := event
		if err := p.processEvent(ctx, &event, record); err != nil {
			return processed, err
		}
		processed = append(processed, &event)
	}
	return processed, nil
}

// processEvent persists one event and runs linking, market impact,
// scoring and the watchers.
func (p *Pipeline) processEvent(ctx context.Context, event *models.Event, record *models.Record) error {
	p.linkInstruments(ctx, event)

	if err := p.store.UpsertEvent(ctx, event); err != nil {
		return err
	}
	if err := p.graph.UpsertEvent(ctx, event); err != nil {
		return err
	}
	if err := p.graph.LinkEventRecord(ctx, event.ID, record.ID); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.EventsCreated.WithLabelValues(string(event.Type)).Inc()
	}

	// Event study. Missing market data yields no edges; the event still
	// proceeds through scoring with a zero price component.
	var edges []models.ImpactEdge
	results, err := p.market.Analyze(ctx, event)
	if err != nil {
		p.logger.Warn("market impact for %s: %v", event.ID, err)
	} else {
		edges = marketimpact.Edges(event, results)
	}
	for i := range edges {
		instrumentUID := "MOEX:" + edges[i].Ticker
		if err := p.graph.LinkImpacts(ctx, &edges[i], instrumentUID); err != nil {
			p.logger.Warn("impact edge %s -> %s: %v", event.ID, edges[i].Ticker, err)
		}
	}

	score, err := p.scorer.Score(ctx, event, edges)
	if err != nil {
		return err
	}
	if err := p.store.InsertImportance(ctx, score); err != nil {
		return err
	}

	eval, err := p.watch.Evaluate(ctx, event, score)
	if err != nil {
		p.logger.Warn("watchers for %s: %v", event.ID, err)
	} else if p.metrics != nil {
		for _, w := range eval.Watches {
			p.metrics.WatchesTriggered.WithLabelValues(string(w.Level)).Inc()
		}
		for range eval.Predictions {
			p.metrics.PredictionsTotal.WithLabelValues(string(models.PredictionPending)).Inc()
		}
	}
	fulfilled, err := p.watch.ReconcilePredictions(ctx, event)
	if err != nil {
		p.logger.Warn("prediction fulfilment for %s: %v", event.ID, err)
	} else if p.metrics != nil {
		for range fulfilled {
			p.metrics.PredictionsTotal.WithLabelValues(string(models.PredictionFulfilled)).Inc()
		}
	}
	return nil
}

// linkInstruments resolves company mentions to tickers, upserting the
// instrument and company nodes. A linker miss leaves the event with
// company-only context.
func (p *Pipeline) linkInstruments(ctx context.Context, event *models.Event) {
	seen := make(map[string]bool, len(event.Attrs.Tickers))
	// Tickers the extraction stage seeded directly still need their
	// Instrument node, or the impact edges have nothing to match.
	for _, t := range event.Attrs.Tickers {
		seen[t] = true
		inst := &models.Instrument{Symbol: t, Exchange: "MOEX", IsTraded: true}
		if err := p.graph.UpsertInstrument(ctx, inst); err != nil {
			p.logger.Warn("upsert instrument %s: %v", t, err)
		}
	}

	for _, company := range event.Attrs.Companies {
		result, err := p.resolver.Resolve(ctx, company)
		if err != nil {
			p.logger.Debug("resolve %q: %v", company, err)
			continue
		}
		if result == nil || result.Regulatory {
			continue
		}
		if !seen[result.Ticker] {
			seen[result.Ticker] = true
			event.Attrs.Tickers = append(event.Attrs.Tickers, result.Ticker)
		}

		inst := result.Instrument
		if inst == nil {
			inst = &models.Instrument{Symbol: result.Ticker, Exchange: "MOEX", IsTraded: true}
		}
		if err := p.graph.UpsertInstrument(ctx, inst); err != nil {
			p.logger.Warn("upsert instrument %s: %v", result.Ticker, err)
			continue
		}
		companyNode := &models.Company{
			ID:            linker.Normalize(company),
			Name:          company,
			PrimaryTicker: result.Ticker,
			Sector:        linker.SectorForTicker(result.Ticker),
		}
		if err := p.graph.UpsertCompany(ctx, companyNode); err != nil {
			p.logger.Warn("upsert company %q: %v", company, err)
			continue
		}
		if err := p.graph.LinkCompanyInstrument(ctx, companyNode.ID, inst.Key()); err != nil {
			p.logger.Warn("link company %q: %v", company, err)
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
