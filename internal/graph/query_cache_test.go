package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/logging"
)

func cachedOverFake(t *testing.T, config QueryCacheConfig) (*CachedClient, *fakeClient) {
	t.Helper()
	fake := &fakeClient{}
	c, err := NewCachedClient(fake, config, logging.GetLogger("graph.cache.test"))
	require.NoError(t, err)
	return c, fake
}

func TestCachedClientServesRepeatReadsFromCache(t *testing.T) {
	c, fake := cachedOverFake(t, DefaultQueryCacheConfig())
	ctx := context.Background()
	read := GraphQuery{Query: `MATCH (e:Event {uid: 'e1'}) RETURN e.uid`}

	_, err := c.ExecuteQuery(ctx, read)
	require.NoError(t, err)
	_, err = c.ExecuteQuery(ctx, read)
	require.NoError(t, err)

	assert.Len(t, fake.queries, 1, "second read should hit the cache")
	stats := c.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestWriteInvalidatesOnlyTouchedLabels(t *testing.T) {
	c, fake := cachedOverFake(t, DefaultQueryCacheConfig())
	ctx := context.Background()
	eventRead := GraphQuery{Query: `MATCH (e:Event {uid: 'e1'}) RETURN e.uid`}
	instRead := GraphQuery{Query: `MATCH (i:Instrument {uid: 'MOEX:SBER'}) RETURN i.symbol`}

	_, err := c.ExecuteQuery(ctx, eventRead)
	require.NoError(t, err)
	_, err = c.ExecuteQuery(ctx, instRead)
	require.NoError(t, err)

	// An Instrument write must not evict the cached Event read.
	_, err = c.ExecuteQuery(ctx, GraphQuery{Query: `MERGE (i:Instrument {uid: 'MOEX:GAZP'})`})
	require.NoError(t, err)

	before := len(fake.queries)
	_, err = c.ExecuteQuery(ctx, eventRead)
	require.NoError(t, err)
	assert.Len(t, fake.queries, before, "Event read should still be cached")

	_, err = c.ExecuteQuery(ctx, instRead)
	require.NoError(t, err)
	assert.Len(t, fake.queries, before+1, "Instrument read should have been invalidated")

	// An Event write evicts the Event read.
	_, err = c.ExecuteQuery(ctx, GraphQuery{Query: `MERGE (e:Event {uid: 'e2'})`})
	require.NoError(t, err)
	before = len(fake.queries)
	_, err = c.ExecuteQuery(ctx, eventRead)
	require.NoError(t, err)
	assert.Len(t, fake.queries, before+1)
}

func TestDisabledCacheIsPassthrough(t *testing.T) {
	c, fake := cachedOverFake(t, QueryCacheConfig{Enabled: false})
	ctx := context.Background()
	read := GraphQuery{Query: `MATCH (e:Event) RETURN count(e)`}

	for i := 0; i < 3; i++ {
		_, err := c.ExecuteQuery(ctx, read)
		require.NoError(t, err)
	}
	assert.Len(t, fake.queries, 3)
	assert.Equal(t, QueryCacheStats{}, c.CacheStats())
}

func TestExpiredEntriesMiss(t *testing.T) {
	cache, err := NewQueryCache(QueryCacheConfig{MaxEntries: 8, TTL: time.Nanosecond, Enabled: true}, logging.GetLogger("graph.cache.test"))
	require.NoError(t, err)

	cache.Put("k", map[NodeType]bool{NodeTypeEvent: true}, &QueryResult{})
	time.Sleep(time.Millisecond)
	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestQueryLabels(t *testing.T) {
	labels := queryLabels(`MATCH (c:Company)-[:HAS_INSTRUMENT]->(i:Instrument) RETURN c, i`)
	assert.True(t, labels[NodeTypeCompany])
	assert.True(t, labels[NodeTypeInstrument])
	assert.False(t, labels[NodeTypeEvent])
}
