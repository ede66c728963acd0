// Package moex implements a client for the MOEX ISS REST API: security
// search for the instrument linker and OHLCV candles for the event study.
// Outbound calls go through a shared rate limiter and a circuit breaker;
// market data is cached in Redis.
package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/finradar/finradar/internal/logging"
)

// ClientConfig configures the ISS client.
type ClientConfig struct {
	BaseURL       string
	SearchTimeout time.Duration
	DataTimeout   time.Duration
	RatePerSecond float64
}

// DefaultClientConfig returns the documented defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:       "https://iss.moex.com/iss",
		SearchTimeout: 30 * time.Second,
		DataTimeout:   30 * time.Second,
		RatePerSecond: 5,
	}
}

// Client is a thin ISS HTTP client shared by search and market data.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewClient creates an ISS client with breaker and limiter wired in.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg = DefaultClientConfig()
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.DataTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "moex-iss",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		logger:  logging.GetLogger("moex.client"),
	}
}

// issTable is the columns/data block ISS returns for every section.
type issTable struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

// rows converts the positional data arrays into keyed maps.
func (t *issTable) rows() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Data))
	for _, row := range t.Data {
		m := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// get performs a rate-limited, breaker-guarded GET and decodes the named
// ISS sections from the response.
func (c *Client) get(ctx context.Context, path string, params url.Values, timeout time.Duration) (map[string]issTable, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("iss request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("iss returned status %d for %s", resp.StatusCode, path)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading iss response: %w", err)
		}
		var sections map[string]issTable
		if err := json.Unmarshal(body, &sections); err != nil {
			return nil, fmt.Errorf("parsing iss response: %w", err)
		}
		return sections, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]issTable), nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
