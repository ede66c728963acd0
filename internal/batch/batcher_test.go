package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
)

func record(i int) *models.Record {
	return &models.Record{ID: fmt.Sprintf("rec-%03d", i), SourceCode: "interfax"}
}

func TestBatcherEmitsOrderedChunks(t *testing.T) {
	b := New(3, 8)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, b.Add(ctx, record(i)))
	}
	require.NoError(t, b.Flush(ctx))
	b.Close()

	var chunks [][]*models.Record
	for chunk := range b.Chunks() {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)

	// Arrival order is preserved across chunk boundaries.
	i := 0
	for _, chunk := range chunks {
		for _, r := range chunk {
			assert.Equal(t, fmt.Sprintf("rec-%03d", i), r.ID)
			i++
		}
	}
}

func TestBatcherBackpressure(t *testing.T) {
	b := New(1, 1)
	ctx := context.Background()

	// First chunk fills the queue; the second Add must block until the
	// consumer drains.
	require.NoError(t, b.Add(ctx, record(0)))

	unblocked := make(chan struct{})
	go func() {
		_ = b.Add(ctx, record(1))
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("Add returned while the chunk queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	<-b.Chunks()
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("Add did not unblock after the consumer drained")
	}
}

func TestBatcherCancelUnblocksPush(t *testing.T) {
	b := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Add(ctx, record(0)))

	errs := make(chan error, 1)
	go func() {
		errs <- b.Add(ctx, record(1))
	}()
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Add did not observe cancellation")
	}
}
