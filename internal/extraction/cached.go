package extraction

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// CachedClient wraps a Client with a content-addressed LRU cache, making
// re-extraction of identical texts free and idempotent across batch
// replays.
type CachedClient struct {
	inner  Client
	cache  *lru.Cache[string, models.Extraction]
	logger *logging.Logger
}

// NewCachedClient wraps inner with a cache of the given size.
func NewCachedClient(inner Client, size int) (*CachedClient, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, models.Extraction](size)
	if err != nil {
		return nil, err
	}
	return &CachedClient{
		inner:  inner,
		cache:  cache,
		logger: logging.GetLogger("extraction.cache"),
	}, nil
}

// Name implements Client.
func (c *CachedClient) Name() string { return c.inner.Name() }

// ExtractBatch serves cached inputs locally and forwards only the misses,
// preserving input order in the merged result.
func (c *CachedClient) ExtractBatch(ctx context.Context, inputs []Input) ([]models.Extraction, error) {
	out := make([]models.Extraction, len(inputs))
	var missInputs []Input
	var missIdx []int

	for i, in := range inputs {
		if cached, ok := c.cache.Get(in.cacheKey()); ok {
			out[i] = cached
			continue
		}
		missInputs = append(missInputs, in)
		missIdx = append(missIdx, i)
	}

	if len(missInputs) == 0 {
		return out, nil
	}
	c.logger.Debug("extracting %d/%d inputs (rest cached)", len(missInputs), len(inputs))

	fresh, err := c.inner.ExtractBatch(ctx, missInputs)
	if err != nil {
		return nil, err
	}
	for j, ext := range fresh {
		out[missIdx[j]] = ext
		c.cache.Add(missInputs[j].cacheKey(), ext)
	}
	return out, nil
}
