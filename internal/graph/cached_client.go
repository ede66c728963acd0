package graph

import (
	"context"
	"strings"

	"github.com/finradar/finradar/internal/logging"
)

// CachedClient wraps a Client with label-scoped caching of read
// queries. With caching disabled it is a transparent passthrough.
type CachedClient struct {
	underlying Client
	cache      *QueryCache
	logger     *logging.Logger
}

// NewCachedClient wraps client per the cache configuration.
func NewCachedClient(client Client, config QueryCacheConfig, logger *logging.Logger) (*CachedClient, error) {
	if !config.Enabled {
		return &CachedClient{underlying: client, logger: logger}, nil
	}
	cache, err := NewQueryCache(config, logger)
	if err != nil {
		return nil, err
	}
	return &CachedClient{
		underlying: client,
		cache:      cache,
		logger:     logger,
	}, nil
}

func (c *CachedClient) Connect(ctx context.Context) error {
	return c.underlying.Connect(ctx)
}

func (c *CachedClient) Close() error {
	return c.underlying.Close()
}

func (c *CachedClient) Ping(ctx context.Context) error {
	return c.underlying.Ping(ctx)
}

// ExecuteQuery serves reads from the cache where possible. Writes pass
// through and invalidate only the entries whose labels they touch.
func (c *CachedClient) ExecuteQuery(ctx context.Context, query GraphQuery) (*QueryResult, error) {
	if c.cache == nil {
		return c.underlying.ExecuteQuery(ctx, query)
	}

	labels := queryLabels(query.Query)
	if isWriteQuery(query.Query) {
		c.cache.InvalidateLabels(labels)
		return c.underlying.ExecuteQuery(ctx, query)
	}

	key := MakeQueryKey(query)
	if result, ok := c.cache.Get(key); ok {
		return result, nil
	}

	result, err := c.underlying.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, labels, result)
	return result, nil
}

func (c *CachedClient) GetNode(ctx context.Context, nodeType NodeType, uid string) (*Node, error) {
	return c.underlying.GetNode(ctx, nodeType, uid)
}

func (c *CachedClient) GetGraphStats(ctx context.Context) (*GraphStats, error) {
	return c.underlying.GetGraphStats(ctx)
}

func (c *CachedClient) InitializeSchema(ctx context.Context) error {
	return c.underlying.InitializeSchema(ctx)
}

// DeleteGraph removes the graph and drops the whole cache.
func (c *CachedClient) DeleteGraph(ctx context.Context) error {
	if c.cache != nil {
		c.cache.Clear()
	}
	return c.underlying.DeleteGraph(ctx)
}

// CacheStats returns cache counters; zero values when caching is off.
func (c *CachedClient) CacheStats() QueryCacheStats {
	if c.cache == nil {
		return QueryCacheStats{}
	}
	return c.cache.Stats()
}

// ClearCache drops every cached entry.
func (c *CachedClient) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// isWriteQuery reports whether a Cypher query mutates the graph.
func isWriteQuery(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, keyword := range []string{"CREATE", "MERGE", "DELETE", "SET", "REMOVE"} {
		if strings.Contains(upper, keyword) {
			return true
		}
	}
	return false
}
