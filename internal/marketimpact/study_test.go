package marketimpact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
	"github.com/finradar/finradar/internal/moex"
)

type fakeProvider struct {
	byTicker map[string][]moex.Candle
	index    []moex.Candle
}

func (f *fakeProvider) OHLCV(_ context.Context, symbol string, _, _ time.Time) ([]moex.Candle, error) {
	return f.byTicker[symbol], nil
}

func (f *fakeProvider) IndexOHLCV(_ context.Context, _, _ time.Time) ([]moex.Candle, error) {
	return f.index, nil
}

// series builds daily candles ending at end, one bar per day, with the
// given closes and volumes.
func series(end time.Time, closes, volumes []float64) []moex.Candle {
	n := len(closes)
	out := make([]moex.Candle, n)
	for i := range closes {
		out[i] = moex.Candle{
			Close:  closes[i],
			Volume: volumes[i],
			Begin:  end.AddDate(0, 0, i-n+1),
		}
	}
	return out
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAnalyzeSignificantDrop(t *testing.T) {
	eventDay := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Ten near-flat sessions, then a 5% drop on triple volume while the
	// index stays flat.
	closes := []float64{100, 100.1, 99.9, 100.1, 99.9, 100.1, 99.9, 100.1, 99.9, 100, 95}
	volumes := append(flat(10, 1000), 3000)
	provider := &fakeProvider{
		byTicker: map[string][]moex.Candle{"GAZP": series(eventDay, closes, volumes)},
		index:    series(eventDay, flat(11, 3000), flat(11, 1)),
	}

	event := &models.Event{
		ID:        "evt-1",
		Type:      models.EventSanctions,
		Timestamp: eventDay.Add(9 * time.Hour),
		Attrs:     models.EventAttrs{Tickers: []string{"GAZP"}},
	}

	results, err := NewAnalyzer(provider).Analyze(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Significant)
	assert.InDelta(t, -0.05, r.AbnormalReturn, 1e-9)
	assert.InDelta(t, 3.0, r.VolumeSpike, 1e-9)
	assert.Equal(t, models.SignNegative, r.Sentiment)

	edges := Edges(event, results)
	require.Len(t, edges, 1)
	assert.Equal(t, "GAZP", edges[0].Ticker)
	assert.Equal(t, "1d", edges[0].Window)
}

func TestAnalyzeInsignificantNoise(t *testing.T) {
	eventDay := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Noisy pre-window: the event-day move is no bigger than usual.
	closes := []float64{100, 103, 98, 102, 97, 101, 99, 103, 98, 102, 100}
	provider := &fakeProvider{
		byTicker: map[string][]moex.Candle{"SBER": series(eventDay, closes, flat(11, 1000))},
		index:    series(eventDay, flat(11, 3000), flat(11, 1)),
	}

	event := &models.Event{
		ID:        "evt-2",
		Type:      models.EventEarnings,
		Timestamp: eventDay,
		Attrs:     models.EventAttrs{Tickers: []string{"SBER"}},
	}

	results, err := NewAnalyzer(provider).Analyze(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Significant)
	assert.Empty(t, Edges(event, results))
}

func TestAnalyzeSkipsTickersWithoutData(t *testing.T) {
	provider := &fakeProvider{byTicker: map[string][]moex.Candle{}}
	event := &models.Event{
		ID:        "evt-3",
		Type:      models.EventEarnings,
		Timestamp: time.Now(),
		Attrs:     models.EventAttrs{Tickers: []string{"NONE"}},
	}

	results, err := NewAnalyzer(provider).Analyze(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnalyzeNoTickers(t *testing.T) {
	results, err := NewAnalyzer(&fakeProvider{}).Analyze(context.Background(), &models.Event{ID: "evt-4"})
	require.NoError(t, err)
	assert.Nil(t, results)
}
