// Package source implements the ingestion adapters: a websocket stream
// adapter with an external-id high-water-mark cursor and an HTTP web
// adapter with a date cursor. Both return oldest-first.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/finradar/finradar/internal/models"
)

// ErrAuth marks an authentication failure. Fatal: the orchestrator
// disables the source for the rest of the run.
var ErrAuth = errors.New("source: authentication failed")

// Adapter is the ingestion contract. FetchSince returns records newer
// than the cursor, oldest first, at most limit. Transport errors are
// retryable; ErrAuth is not.
type Adapter interface {
	Source() *models.Source
	Open(ctx context.Context) error
	FetchSince(ctx context.Context, cursor *models.Cursor, limit int) ([]*models.Record, error)
	Close() error
}

// NewAdapter builds the adapter matching the source kind.
func NewAdapter(src *models.Source) (Adapter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	switch src.Kind {
	case models.SourceStream:
		return NewStreamAdapter(src), nil
	case models.SourceWeb:
		return NewWebAdapter(src), nil
	default:
		return nil, fmt.Errorf("source %s: no adapter for kind %q", src.Code, src.Kind)
	}
}
