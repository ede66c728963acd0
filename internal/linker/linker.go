package linker

import (
	"context"
	"sync"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
	"github.com/finradar/finradar/internal/moex"
)

// Searcher is the live exchange search used by tier 3.
type Searcher interface {
	SearchSecurities(ctx context.Context, query string, limit int) ([]moex.SearchResult, error)
}

// Result is a successful resolution of a company mention.
type Result struct {
	Ticker     string
	Instrument *models.Instrument
	Confidence float64
	Tier       int
	Regulatory bool
}

// Linker resolves company mentions to instruments through four tiers,
// short-circuiting on the first hit.
type Linker struct {
	aliases  *AliasTable
	searcher Searcher
	logger   *logging.Logger

	mu    sync.RWMutex
	index map[string]*models.Instrument // symbol -> instrument
	names map[string]string             // normalized name -> symbol
}

// New creates a linker over the given alias table and optional searcher.
// The security index is seeded from the known aliases and sector tables.
func New(aliases *AliasTable, searcher Searcher) *Linker {
	l := &Linker{
		aliases:  aliases,
		searcher: searcher,
		logger:   logging.GetLogger("linker"),
		index:    make(map[string]*models.Instrument),
		names:    make(map[string]string),
	}
	for alias, ticker := range knownAliases {
		l.names[alias] = ticker
		l.seedTicker(ticker)
	}
	for ticker := range tickerToSector {
		l.seedTicker(ticker)
	}
	return l
}

func (l *Linker) seedTicker(ticker string) {
	if _, ok := l.index[ticker]; !ok {
		l.index[ticker] = &models.Instrument{Symbol: ticker, Exchange: "MOEX", IsTraded: true}
	}
}

// AddInstrument registers a fully described instrument in the index.
func (l *Linker) AddInstrument(inst models.Instrument, normalizedName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := inst
	l.index[inst.Symbol] = &copied
	if normalizedName != "" {
		l.names[normalizedName] = inst.Symbol
	}
}

// InstrumentFor returns the indexed instrument for a ticker, if known.
func (l *Linker) InstrumentFor(ticker string) (*models.Instrument, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	inst, ok := l.index[ticker]
	return inst, ok
}

// Resolve maps a free-text company mention to an instrument. Returns
// (nil, nil) on a linker miss; the caller proceeds with company-only
// context. Regulatory bodies resolve to a Result with Regulatory set and
// no instrument.
func (l *Linker) Resolve(ctx context.Context, mention string) (*Result, error) {
	if IsRegulator(mention) {
		return &Result{Regulatory: true}, nil
	}

	// Tier 1: explicit ticker token present in the security index.
	if ticker := ExtractTicker(mention); ticker != "" {
		if inst, ok := l.InstrumentFor(ticker); ok {
			return &Result{Ticker: ticker, Instrument: inst, Confidence: 1.0, Tier: 1}, nil
		}
	}

	normalized := Normalize(mention)
	if normalized == "" {
		return nil, nil
	}

	// Tier 2: alias table.
	if ticker, ok := l.aliases.Resolve(normalized); ok {
		inst, _ := l.InstrumentFor(ticker)
		return &Result{Ticker: ticker, Instrument: inst, Confidence: 0.95, Tier: 2}, nil
	}

	// Tier 3: live exchange search.
	if res, err := l.searchExchange(ctx, normalized); err != nil {
		l.logger.Warn("exchange search failed for %q: %v", normalized, err)
	} else if res != nil {
		return res, nil
	}

	// Tier 4: fuzzy match over the indexed names.
	return l.fuzzyMatch(normalized), nil
}

func (l *Linker) searchExchange(ctx context.Context, normalized string) (*Result, error) {
	if l.searcher == nil {
		return nil, nil
	}
	candidates, err := l.searcher.SearchSecurities(ctx, normalized, 20)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	if best.Score < moex.MinSearchScore {
		return nil, nil
	}

	l.AddInstrument(best.Instrument, normalized)
	if err := l.aliases.Learn(normalized, best.Instrument.Symbol); err != nil {
		l.logger.Warn("failed to persist learned alias %q: %v", normalized, err)
	}

	conf := float64(best.Score) / 100.0
	if conf > 1 {
		conf = 1
	}
	inst := best.Instrument
	return &Result{Ticker: inst.Symbol, Instrument: &inst, Confidence: conf, Tier: 3}, nil
}

func (l *Linker) fuzzyMatch(normalized string) *Result {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bestSim := 0.0
	bestTicker := ""
	for name, ticker := range l.names {
		if sim := CombinedSimilarity(normalized, name); sim > bestSim {
			bestSim = sim
			bestTicker = ticker
		}
	}
	if bestSim < fuzzyThreshold {
		return nil
	}

	inst := l.index[bestTicker]
	return &Result{
		Ticker:     bestTicker,
		Instrument: inst,
		Confidence: bestSim * fuzzyPenalty,
		Tier:       4,
	}
}
