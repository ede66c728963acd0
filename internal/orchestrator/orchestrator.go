// Package orchestrator drives the pipeline: one worker per enabled
// source, each fetching records, fanning chunks out to extraction and
// running every downstream stage before advancing the cursor.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finradar/finradar/internal/batch"
	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
	"github.com/finradar/finradar/internal/source"
)

// ErrFatalSource marks an unrecoverable source failure (auth, quota).
// The CLI maps it to exit code 2.
var ErrFatalSource = errors.New("orchestrator: fatal source failure")

// Batch timing: a batch of n records gets n×2 s before it is aborted.
const perRecordDeadline = 2 * time.Second

// Retry policy for transient calls: 3 attempts, backoff 2/4/8 s.
const (
	retryAttempts    = 3
	retryBackoffBase = 2 * time.Second
)

// Options tune one orchestrator run.
type Options struct {
	BatchSize int
	// Days overrides the cursor with a historical lookback, for the
	// initial fill.
	Days int
	// SourceFilter restricts the run to one source code; empty runs all.
	SourceFilter string
}

// Orchestrator owns the source workers and the shared pipeline.
type Orchestrator struct {
	adapters []source.Adapter
	pipeline *Pipeline
	store    CursorStore
	opts     Options
	logger   *logging.Logger
}

// CursorStore persists per-source resume points.
type CursorStore interface {
	GetCursor(ctx context.Context, sourceCode string) (*models.Cursor, error)
	UpsertCursor(ctx context.Context, cursor *models.Cursor) error
}

// New builds an orchestrator over the given adapters.
func New(adapters []source.Adapter, pipeline *Pipeline, store CursorStore, opts Options) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return &Orchestrator{
		adapters: adapters,
		pipeline: pipeline,
		store:    store,
		opts:     opts,
		logger:   logging.GetLogger("orchestrator"),
	}
}

// RunOnce executes one ingestion cycle: every enabled source fetches
// and processes to completion. Workers run concurrently; a fatal source
// failure surfaces as ErrFatalSource after the others finish.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, adapter := range o.selected() {
		adapter := adapter
		g.Go(func() error {
			return o.runSource(ctx, adapter)
		})
	}
	return g.Wait()
}

// RunRealtime polls every enabled source at its configured interval
// until the context is cancelled. Returns the context error on exit.
func (o *Orchestrator) RunRealtime(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, adapter := range o.selected() {
		adapter := adapter
		g.Go(func() error {
			return o.pollSource(ctx, adapter)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) selected() []source.Adapter {
	var out []source.Adapter
	for _, adapter := range o.adapters {
		src := adapter.Source()
		if !src.Enabled {
			continue
		}
		if o.opts.SourceFilter != "" && src.Code != o.opts.SourceFilter {
			continue
		}
		out = append(out, adapter)
	}
	return out
}

func (o *Orchestrator) pollSource(ctx context.Context, adapter source.Adapter) error {
	interval := adapter.Source().PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := o.runSource(ctx, adapter); err != nil {
			if errors.Is(err, ErrFatalSource) {
				// The source stays disabled for the rest of the run.
				return err
			}
			o.logger.Warn("source %s cycle failed: %v", adapter.Source().Code, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runSource executes one cycle for one source: fetch, process batches,
// advance the cursor after each fully committed batch.
func (o *Orchestrator) runSource(ctx context.Context, adapter source.Adapter) error {
	src := adapter.Source()
	log := o.logger.WithField("source", src.Code)

	if err := adapter.Open(ctx); err != nil {
		if errors.Is(err, source.ErrAuth) {
			return fmt.Errorf("%w: %v", ErrFatalSource, err)
		}
		return err
	}
	defer adapter.Close()

	cursor, err := o.cursorFor(ctx, src)
	if err != nil {
		return err
	}

	var records []*models.Record
	err = withRetry(ctx, func() error {
		var fetchErr error
		records, fetchErr = adapter.FetchSince(ctx, cursor, src.FetchLimit)
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, source.ErrAuth) {
			return fmt.Errorf("%w: %v", ErrFatalSource, err)
		}
		return err
	}
	if len(records) == 0 {
		log.Debug("nothing new")
		return nil
	}
	log.Info("fetched %d records", len(records))

	// Chunks flow through the batcher's bounded channel: the producer
	// blocks while a chunk is still being processed, which is the
	// pipeline's backpressure.
	b := batch.New(o.opts.BatchSize, 1)
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pushErr := make(chan error, 1)
	go func() {
		defer b.Close()
		for _, r := range records {
			if err := b.Add(bctx, r); err != nil {
				pushErr <- err
				return
			}
		}
		pushErr <- b.Flush(bctx)
	}()

	for chunk := range b.Chunks() {
		if err := o.runBatch(ctx, src, chunk); err != nil {
			if errors.Is(err, ErrFatalSource) || ctx.Err() != nil {
				return err
			}
			// The batch is dropped for this run; the cursor was not
			// advanced, so the next cycle retries it.
			log.Warn("batch dropped: %v", err)
			return nil
		}
		cursor = cursorAfter(src.Code, chunk)
		if err := o.store.UpsertCursor(ctx, cursor); err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
	}
	if err := <-pushErr; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// runBatch processes one batch under its deadline, retrying once on
// transient failure.
func (o *Orchestrator) runBatch(ctx context.Context, src *models.Source, records []*models.Record) error {
	deadline := time.Duration(len(records)) * perRecordDeadline

	run := func() error {
		batchCtx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		return o.pipeline.ProcessBatch(batchCtx, src, records)
	}

	err := run()
	if err == nil || errors.Is(err, ErrFatalSource) || ctx.Err() != nil {
		return err
	}
	o.logger.Warn("batch failed, retrying once: %v", err)
	return run()
}

// cursorFor loads the committed cursor, or builds a lookback cursor for
// the initial fill.
func (o *Orchestrator) cursorFor(ctx context.Context, src *models.Source) (*models.Cursor, error) {
	if o.opts.Days > 0 {
		return &models.Cursor{
			SourceCode:    src.Code,
			LastTimestamp: time.Now().UTC().AddDate(0, 0, -o.opts.Days),
		}, nil
	}
	cursor, err := o.store.GetCursor(ctx, src.Code)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return cursor, nil
}

// cursorAfter builds the cursor committed after a batch: the newest
// record's external id and publish time.
func cursorAfter(sourceCode string, records []*models.Record) *models.Cursor {
	last := records[0]
	for _, r := range records[1:] {
		if r.PublishedAt.After(last.PublishedAt) {
			last = r
		}
	}
	return &models.Cursor{
		SourceCode:     sourceCode,
		LastExternalID: last.ExternalID,
		LastTimestamp:  last.PublishedAt,
	}
}

// withRetry runs op up to retryAttempts times with exponential backoff,
// skipping retries for fatal and cancellation errors.
func withRetry(ctx context.Context, op func() error) error {
	backoff := retryBackoffBase
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op()
		if err == nil || errors.Is(err, source.ErrAuth) || errors.Is(err, ErrFatalSource) || ctx.Err() != nil {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
