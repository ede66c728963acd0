package moex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.RatePerSecond = 100
	return NewClient(cfg)
}

func TestSearchSecuritiesScoring(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/securities.json", r.URL.Path)
		assert.Equal(t, "норильский никель", r.URL.Query().Get("q"))

		resp := map[string]interface{}{
			"securities": map[string]interface{}{
				"columns": []string{"secid", "shortname", "name", "isin", "is_traded", "type", "group", "primary_boardid"},
				"data": [][]interface{}{
					{"GMKN", "Норильский никель", "ГМК Норильский никель ПАО ао", "RU0007288411", float64(1), "common_share", "stock_shares", "TQBR"},
					{"GMKN-OLD", "ГМК старый", "прочее", "", float64(0), "common_share", "stock_bonds", "XXXX"},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	results, err := client.SearchSecurities(context.Background(), "норильский никель", 20)
	require.NoError(t, err)
	require.Len(t, results, 2)

	best := results[0]
	assert.Equal(t, "GMKN", best.Instrument.Symbol)
	// shortname(50) + name(30) + traded(20) + equity(15) + board(10) + isin(25)
	assert.Equal(t, 150, best.Score)
	assert.True(t, best.Score >= MinSearchScore)
	assert.True(t, results[1].Score < MinSearchScore)
}

func TestSearchSecuritiesEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"securities": map[string]interface{}{
				"columns": []string{"secid"},
				"data":    [][]interface{}{},
			},
		})
	})

	results, err := client.SearchSecurities(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOHLCVParsesCandles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/securities/GAZP/candles.json")
		resp := map[string]interface{}{
			"candles": map[string]interface{}{
				"columns": []string{"open", "close", "high", "low", "volume", "begin"},
				"data": [][]interface{}{
					{160.0, 155.5, 161.0, 154.0, 1_000_000.0, "2024-02-01 00:00:00"},
					{155.5, 150.0, 156.0, 149.0, 3_200_000.0, "2024-02-02 00:00:00"},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	svc := NewPriceService(client, nil)
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	candles, err := svc.OHLCV(context.Background(), "GAZP", from, from.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 155.5, candles[0].Close, 1e-9)
	assert.Equal(t, 2024, candles[0].Begin.Year())
}

func TestOHLCVNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
	})

	svc := NewPriceService(client, nil)
	candles, err := svc.OHLCV(context.Background(), "NONE", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	assert.Nil(t, candles)
}

func TestBreakerOpensOnRepeatedFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.SearchSecurities(ctx, "x", 1)
		require.Error(t, err)
	}
	// The breaker is now open and rejects without a round trip.
	_, err := client.SearchSecurities(ctx, "x", 1)
	assert.Error(t, err)
}
