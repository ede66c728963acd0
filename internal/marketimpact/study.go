// Package marketimpact runs a small event study per (event, ticker) pair:
// abnormal return against the benchmark index, volume spike against a
// trailing baseline, and a significance gate before any impact edge is
// emitted.
package marketimpact

import (
	"context"
	"math"
	"time"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
	"github.com/finradar/finradar/internal/moex"
)

// Study windows and the significance gate.
const (
	preWindowDays  = 5
	postWindowDays = 1

	// significanceZ gates edge creation: |AR| / sigma must reach it.
	significanceZ = 1.96

	windowLabel = "1d"
)

// volumeBaselineDays is how many prior sessions feed the volume baseline.
const volumeBaselineDays = 5

// Result is the study outcome for one ticker. Significant results become
// impact edges; insignificant ones are reported for scoring but not stored
// as edges.
type Result struct {
	Ticker         string
	AbnormalReturn float64
	VolumeSpike    float64
	Sigma          float64
	Significant    bool
	Sentiment      models.Sign
}

// Analyzer computes per-ticker market reactions for events.
type Analyzer struct {
	data   moex.MarketDataProvider
	logger *logging.Logger
}

// NewAnalyzer builds an analyzer over a market data provider.
func NewAnalyzer(data moex.MarketDataProvider) *Analyzer {
	return &Analyzer{data: data, logger: logging.GetLogger("marketimpact")}
}

// Analyze studies every ticker the event references and returns one result
// per ticker that had enough data. Tickers with no candles around the
// event are skipped silently; the market simply has nothing to say.
func (a *Analyzer) Analyze(ctx context.Context, event *models.Event) ([]Result, error) {
	if len(event.Attrs.Tickers) == 0 {
		return nil, nil
	}

	from := event.Timestamp.AddDate(0, 0, -(preWindowDays + volumeBaselineDays + 3))
	to := event.Timestamp.AddDate(0, 0, postWindowDays+1)

	index, err := a.data.IndexOHLCV(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, ticker := range event.Attrs.Tickers {
		candles, err := a.data.OHLCV(ctx, ticker, from, to)
		if err != nil {
			return nil, err
		}
		res, ok := study(ticker, event.Timestamp, candles, index)
		if !ok {
			a.logger.Debug("no usable market data for %s around event %s", ticker, event.ID)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// MarketConfidence maps the best per-ticker significance into [0,1] for
// the causal-link market component. No data means the market is silent,
// which is a zero, not an error.
func (a *Analyzer) MarketConfidence(ctx context.Context, event *models.Event) (float64, error) {
	results, err := a.Analyze(ctx, event)
	if err != nil {
		return 0, err
	}
	var best float64
	for _, r := range results {
		if r.Sigma <= 0 {
			continue
		}
		score := math.Min(1, math.Abs(r.AbnormalReturn)/r.Sigma/significanceZ)
		if score > best {
			best = score
		}
	}
	return best, nil
}

// Edges converts the significant results into impact edges for the event.
func Edges(event *models.Event, results []Result) []models.ImpactEdge {
	var edges []models.ImpactEdge
	for _, r := range results {
		if !r.Significant {
			continue
		}
		edges = append(edges, models.ImpactEdge{
			EventID:      event.ID,
			Ticker:       r.Ticker,
			PriceImpact:  r.AbnormalReturn,
			VolumeImpact: r.VolumeSpike,
			Sentiment:    r.Sentiment,
			Window:       windowLabel,
			CreatedAt:    time.Now().UTC(),
		})
	}
	return edges
}

// study computes the abnormal return on the first session at or after the
// event, the volume spike against the trailing baseline, and the sigma of
// pre-window abnormal returns.
func study(ticker string, eventTime time.Time, candles, index []moex.Candle) (Result, bool) {
	eventIdx := sessionAt(candles, eventTime)
	if eventIdx < 0 || eventIdx >= len(candles) {
		return Result{}, false
	}
	// Need at least the pre-window plus the baseline before the event day.
	if eventIdx < preWindowDays+1 {
		return Result{}, false
	}

	eventAR, ok := abnormalReturn(candles, index, eventIdx)
	if !ok {
		return Result{}, false
	}

	// Sigma over the abnormal returns of the pre-window sessions.
	var pre []float64
	for i := eventIdx - preWindowDays; i < eventIdx; i++ {
		if ar, ok := abnormalReturn(candles, index, i); ok {
			pre = append(pre, ar)
		}
	}
	if len(pre) < 3 {
		return Result{}, false
	}
	sigma := stddev(pre)

	significant := sigma > 0 && math.Abs(eventAR)/sigma >= significanceZ

	sentiment := models.SignPositive
	if eventAR < 0 {
		sentiment = models.SignNegative
	}

	return Result{
		Ticker:         ticker,
		AbnormalReturn: eventAR,
		VolumeSpike:    volumeSpike(candles, eventIdx),
		Sigma:          sigma,
		Significant:    significant,
		Sentiment:      sentiment,
	}, true
}

// sessionAt returns the index of the first candle starting at or after t,
// or the last candle of t's day for intraday timestamps.
func sessionAt(candles []moex.Candle, t time.Time) int {
	day := t.Truncate(24 * time.Hour)
	for i, c := range candles {
		if !c.Begin.Before(day) {
			return i
		}
	}
	return -1
}

// abnormalReturn is the session close-to-close return minus the index
// return for the same position.
func abnormalReturn(candles, index []moex.Candle, i int) (float64, bool) {
	if i <= 0 || i >= len(candles) {
		return 0, false
	}
	idxI := matchIndex(index, candles[i].Begin)
	if idxI <= 0 {
		return 0, false
	}
	if candles[i-1].Close == 0 || index[idxI-1].Close == 0 {
		return 0, false
	}
	rs := candles[i].Close/candles[i-1].Close - 1
	ri := index[idxI].Close/index[idxI-1].Close - 1
	return rs - ri, true
}

// matchIndex finds the index candle for the same session day, or -1.
func matchIndex(index []moex.Candle, day time.Time) int {
	for i, c := range index {
		if c.Begin.Year() == day.Year() && c.Begin.YearDay() == day.YearDay() {
			return i
		}
	}
	return -1
}

// volumeSpike is the event-day volume over the mean of the prior baseline
// sessions. 1.0 means unremarkable; below-baseline days stay below 1.
func volumeSpike(candles []moex.Candle, eventIdx int) float64 {
	start := eventIdx - volumeBaselineDays
	if start < 0 {
		start = 0
	}
	var sum float64
	var n int
	for i := start; i < eventIdx; i++ {
		sum += candles[i].Volume
		n++
	}
	if n == 0 || sum == 0 {
		return 1
	}
	return candles[eventIdx].Volume / (sum / float64(n))
}

func stddev(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
