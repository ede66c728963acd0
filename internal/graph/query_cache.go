package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/finradar/finradar/internal/logging"
)

// QueryCacheConfig tunes the read-query cache.
type QueryCacheConfig struct {
	MaxEntries int           // LRU capacity
	TTL        time.Duration // entry lifetime
	Enabled    bool          // disabled leaves the client unwrapped
}

// DefaultQueryCacheConfig returns the documented defaults.
func DefaultQueryCacheConfig() QueryCacheConfig {
	return QueryCacheConfig{
		MaxEntries: 4096,
		TTL:        2 * time.Minute,
		Enabled:    true,
	}
}

// QueryCacheStats is a point-in-time snapshot of cache behaviour.
type QueryCacheStats struct {
	Items         int
	Hits          uint64
	Misses        uint64
	Invalidations uint64
	HitRate       float64
}

// cacheEntry tags a result with the node labels its query touched, so
// writes can invalidate only the reads they could have changed.
type cacheEntry struct {
	result    *QueryResult
	labels    map[NodeType]bool
	expiresAt time.Time
}

// QueryCache is a TTL'd LRU over read-query results, invalidated per
// node label. The pipeline is write-heavy during ingestion; purging the
// whole cache on every MERGE would leave nothing for the read paths
// (chain discovery, watcher multipliers), so invalidation is scoped to
// the labels the write names.
type QueryCache struct {
	mu            sync.Mutex
	lru           *lru.Cache[string, *cacheEntry]
	ttl           time.Duration
	hits          uint64
	misses        uint64
	invalidations uint64
	logger        *logging.Logger
}

// NewQueryCache builds a cache from the given configuration.
func NewQueryCache(config QueryCacheConfig, logger *logging.Logger) (*QueryCache, error) {
	if config.MaxEntries <= 0 {
		return nil, fmt.Errorf("MaxEntries must be positive, got %d", config.MaxEntries)
	}
	if config.TTL <= 0 {
		return nil, fmt.Errorf("TTL must be positive, got %v", config.TTL)
	}
	cache, err := lru.New[string, *cacheEntry](config.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create LRU: %w", err)
	}
	return &QueryCache{
		lru:    cache,
		ttl:    config.TTL,
		logger: logger,
	}, nil
}

// Get returns the cached result for key, dropping expired entries.
func (qc *QueryCache) Get(key string) (*QueryResult, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	entry, ok := qc.lru.Get(key)
	if !ok {
		qc.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		qc.lru.Remove(key)
		qc.misses++
		return nil, false
	}
	qc.hits++
	return entry.result, true
}

// Put stores a result under key, tagged with the labels of its query.
func (qc *QueryCache) Put(key string, labels map[NodeType]bool, result *QueryResult) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	qc.lru.Add(key, &cacheEntry{
		result:    result,
		labels:    labels,
		expiresAt: time.Now().Add(qc.ttl),
	})
}

// InvalidateLabels drops every entry whose query shares a label with a
// write. Entries with no recognisable label are dropped on any write.
func (qc *QueryCache) InvalidateLabels(labels map[NodeType]bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	for _, key := range qc.lru.Keys() {
		entry, ok := qc.lru.Peek(key)
		if !ok {
			continue
		}
		if labelsOverlap(entry.labels, labels) {
			qc.lru.Remove(key)
			qc.invalidations++
		}
	}
}

// Clear drops every entry.
func (qc *QueryCache) Clear() {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.lru.Purge()
}

// Stats returns a snapshot of the cache counters.
func (qc *QueryCache) Stats() QueryCacheStats {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	total := qc.hits + qc.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(qc.hits) / float64(total)
	}
	return QueryCacheStats{
		Items:         qc.lru.Len(),
		Hits:          qc.hits,
		Misses:        qc.misses,
		Invalidations: qc.invalidations,
		HitRate:       hitRate,
	}
}

// labelsOverlap reports whether a cached entry is touched by a write.
// An empty set on either side means the labels could not be determined,
// which must invalidate conservatively.
func labelsOverlap(cached, written map[NodeType]bool) bool {
	if len(cached) == 0 || len(written) == 0 {
		return true
	}
	for label := range written {
		if cached[label] {
			return true
		}
	}
	return false
}

// queryLabels extracts the node labels a Cypher query names.
func queryLabels(query string) map[NodeType]bool {
	labels := make(map[NodeType]bool)
	for _, label := range []NodeType{NodeTypeEvent, NodeTypeInstrument, NodeTypeCompany, NodeTypeRecord} {
		if strings.Contains(query, ":"+string(label)) {
			labels[label] = true
		}
	}
	return labels
}

// MakeQueryKey derives a deterministic cache key from a query and its
// parameters.
func MakeQueryKey(query GraphQuery) string {
	h := sha256.New()
	h.Write([]byte(query.Query))

	if len(query.Parameters) > 0 {
		keys := make([]string, 0, len(query.Parameters))
		for k := range query.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			paramBytes, _ := json.Marshal(query.Parameters[k])
			h.Write(paramBytes)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
