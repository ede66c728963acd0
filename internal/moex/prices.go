package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// IndexSymbol is the benchmark index for abnormal-return computation.
const IndexSymbol = "IMOEX"

const candleCacheTTL = 15 * time.Minute

// Candle is one daily OHLCV bar.
type Candle struct {
	Open   float64   `json:"open"`
	Close  float64   `json:"close"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Volume float64   `json:"volume"`
	Begin  time.Time `json:"begin"`
}

// MarketDataProvider serves OHLCV series for the event study. Returns a nil
// series (not an error) when no data exists for the window.
type MarketDataProvider interface {
	OHLCV(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error)
	IndexOHLCV(ctx context.Context, from, to time.Time) ([]Candle, error)
}

// PriceService fetches candles from ISS with a Redis read-through cache.
// A nil redis client disables caching.
type PriceService struct {
	client *Client
	cache  *redis.Client
}

// NewPriceService wires the ISS client with an optional cache.
func NewPriceService(client *Client, cache *redis.Client) *PriceService {
	return &PriceService{client: client, cache: cache}
}

// OHLCV returns daily candles for a share in [from, to].
func (p *PriceService) OHLCV(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	path := fmt.Sprintf("/engines/stock/markets/shares/securities/%s/candles.json", symbol)
	return p.candles(ctx, path, symbol, from, to)
}

// IndexOHLCV returns daily candles for the benchmark index.
func (p *PriceService) IndexOHLCV(ctx context.Context, from, to time.Time) ([]Candle, error) {
	path := fmt.Sprintf("/engines/stock/markets/index/securities/%s/candles.json", IndexSymbol)
	return p.candles(ctx, path, IndexSymbol, from, to)
}

func (p *PriceService) candles(ctx context.Context, path, symbol string, from, to time.Time) ([]Candle, error) {
	cacheKey := fmt.Sprintf("moex:candles:%s:%s:%s",
		symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var candles []Candle
			if err := json.Unmarshal(cached, &candles); err == nil {
				return candles, nil
			}
		}
	}

	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("till", to.Format("2006-01-02"))
	params.Set("interval", "24")
	params.Set("iss.meta", "off")

	sections, err := p.client.get(ctx, path, params, p.client.cfg.DataTimeout)
	if err != nil {
		return nil, err
	}

	table, ok := sections["candles"]
	if !ok || len(table.Data) == 0 {
		// No data is not an error.
		return nil, nil
	}

	candles := make([]Candle, 0, len(table.Data))
	for _, row := range table.rows() {
		begin, err := time.Parse("2006-01-02 15:04:05", asString(row["begin"]))
		if err != nil {
			continue
		}
		candles = append(candles, Candle{
			Open:   asFloat(row["open"]),
			Close:  asFloat(row["close"]),
			High:   asFloat(row["high"]),
			Low:    asFloat(row["low"]),
			Volume: asFloat(row["volume"]),
			Begin:  begin,
		})
	}

	if p.cache != nil && len(candles) > 0 {
		if data, err := json.Marshal(candles); err == nil {
			p.cache.Set(ctx, cacheKey, data, candleCacheTTL)
		}
	}
	return candles, nil
}
