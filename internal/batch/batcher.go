// Package batch splits the ordered record stream from a source into
// bounded chunks for the extraction fan-out.
package batch

import (
	"context"
	"fmt"

	"github.com/finradar/finradar/internal/models"
)

// DefaultSize is the chunk size used when the config does not set one.
const DefaultSize = 10

// Batcher accumulates records in arrival order and emits chunks of at
// most size over a bounded channel. Pushing a full chunk blocks while
// the consumer lags, which is the pipeline's backpressure.
type Batcher struct {
	size int
	out  chan []*models.Record
	buf  []*models.Record
}

// New builds a batcher. queueDepth bounds how many chunks may sit
// unconsumed before Add blocks.
func New(size, queueDepth int) *Batcher {
	if size <= 0 {
		size = DefaultSize
	}
	if queueDepth <= 0 {
		queueDepth = 1
	}
	return &Batcher{
		size: size,
		out:  make(chan []*models.Record, queueDepth),
		buf:  make([]*models.Record, 0, size),
	}
}

// Chunks is the consumer side. Closed by Close after the final flush.
func (b *Batcher) Chunks() <-chan []*models.Record {
	return b.out
}

// Add appends one record, emitting a chunk when it fills. Blocks when
// the chunk queue is full; cancelling the context unblocks it.
func (b *Batcher) Add(ctx context.Context, record *models.Record) error {
	b.buf = append(b.buf, record)
	if len(b.buf) < b.size {
		return nil
	}
	return b.Flush(ctx)
}

// Flush emits the buffered partial chunk, if any.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	chunk := b.buf
	b.buf = make([]*models.Record, 0, b.size)
	select {
	case b.out <- chunk:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("push chunk: %w", ctx.Err())
	}
}

// Close closes the chunk channel. Callers flush first; records still
// buffered at Close are dropped.
func (b *Batcher) Close() {
	close(b.out)
}
