package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
)

type countingClient struct {
	calls   int
	perCall [][]Input
	fail    error
}

func (c *countingClient) Name() string { return "counting" }

func (c *countingClient) ExtractBatch(_ context.Context, inputs []Input) ([]models.Extraction, error) {
	c.calls++
	c.perCall = append(c.perCall, inputs)
	if c.fail != nil {
		return nil, c.fail
	}
	out := make([]models.Extraction, len(inputs))
	for i, in := range inputs {
		out[i] = models.Extraction{Language: "ru", Confidence: 0.8, EventTypes: []string{"sanctions"}, Companies: []models.CompanyMention{{Name: in.ID}}}
	}
	return out, nil
}

func inputs(texts ...string) []Input {
	out := make([]Input, len(texts))
	for i, t := range texts {
		out[i] = Input{ID: t, Text: t, Timestamp: time.Now(), SourceName: "test"}
	}
	return out
}

func TestLocalClientLengthPreserving(t *testing.T) {
	c := NewLocalClient()
	batch := inputs(
		"США ввели новые санкции против Газпрома",
		"погода солнечная",
		"ЦБ повысил ключевую ставку",
	)
	out, err := c.ExtractBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Contains(t, out[0].EventTypes, "sanctions")
	assert.Equal(t, "ru", out[0].Language)
	// A dull record still yields an element, just empty of events.
	assert.Empty(t, out[1].EventTypes)
	assert.Zero(t, out[1].Confidence)
	assert.Contains(t, out[2].EventTypes, "rate_hike")
}

func TestLocalClientTickerCapture(t *testing.T) {
	c := NewLocalClient()
	out, err := c.ExtractBatch(context.Background(), inputs("Акции GAZP выросли на 3%"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotEmpty(t, out[0].Companies)
	assert.Equal(t, "GAZP", out[0].Companies[0].Ticker)
}

func TestLocalClientSkipsRegulators(t *testing.T) {
	c := NewLocalClient()
	out, err := c.ExtractBatch(context.Background(), inputs("Банк России сохранил ставку"))
	require.NoError(t, err)
	for _, company := range out[0].Companies {
		assert.NotContains(t, company.Name, "Банк России")
	}
}

func TestCachedClientHitsAndMisses(t *testing.T) {
	inner := &countingClient{}
	cached, err := NewCachedClient(inner, 16)
	require.NoError(t, err)

	ctx := context.Background()
	batch := inputs("a", "b")

	first, err := cached.ExtractBatch(ctx, batch)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, inner.calls)

	// Identical batch is fully served from cache.
	second, err := cached.ExtractBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	// Partial overlap forwards only the miss, order preserved.
	third, err := cached.ExtractBatch(ctx, inputs("c", "a"))
	require.NoError(t, err)
	require.Len(t, third, 2)
	assert.Equal(t, 2, inner.calls)
	require.Len(t, inner.perCall[1], 1)
	assert.Equal(t, "c", inner.perCall[1][0].ID)
	assert.Equal(t, "a", third[1].Companies[0].Name)
}

func TestCachedClientPropagatesErrors(t *testing.T) {
	inner := &countingClient{fail: ErrTransient}
	cached, err := NewCachedClient(inner, 16)
	require.NoError(t, err)

	_, err = cached.ExtractBatch(context.Background(), inputs("x"))
	assert.True(t, errors.Is(err, ErrTransient))
}

func TestErrorKinds(t *testing.T) {
	assert.False(t, errors.Is(ErrTransient, ErrFatal))

	wrapped := classifyAPIError(errors.New("connection reset"))
	assert.True(t, errors.Is(wrapped, ErrTransient))
}

func TestRemoteClientRequiresKey(t *testing.T) {
	_, err := NewRemoteClient(RemoteConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFatal))
}
