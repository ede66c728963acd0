// Package extraction turns raw record text into structured entity
// extractions, either through the remote LLM API or a local marker-based
// fallback. Batch calls are length- and order-preserving: one Extraction
// per input, empty with zero confidence when nothing was found.
package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/finradar/finradar/internal/models"
)

// Error kinds drive the caller's retry policy: transient errors are retried
// with backoff, fatal errors disable the source for the run.
var (
	ErrTransient = errors.New("extraction transient failure")
	ErrFatal     = errors.New("extraction fatal failure")
)

// Input is one record to extract.
type Input struct {
	ID         string
	Text       string
	Timestamp  time.Time
	SourceName string
}

// cacheKey identifies an input by content, making repeated extraction of
// identical text idempotent.
func (in Input) cacheKey() string {
	sum := sha256.Sum256([]byte(in.Text))
	return hex.EncodeToString(sum[:])
}

// Client extracts structured entities from batches of record texts.
type Client interface {
	// ExtractBatch returns exactly one Extraction per input, in input
	// order. Implementations never omit elements; a failed or empty
	// element is an empty Extraction with zero confidence.
	ExtractBatch(ctx context.Context, inputs []Input) ([]models.Extraction, error)

	// Name identifies the backend for logging.
	Name() string
}
