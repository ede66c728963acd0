package linker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
	"github.com/finradar/finradar/internal/moex"
)

type fakeSearcher struct {
	results []moex.SearchResult
	calls   int
}

func (f *fakeSearcher) SearchSecurities(_ context.Context, _ string, _ int) ([]moex.SearchResult, error) {
	f.calls++
	return f.results, nil
}

func newTestLinker(t *testing.T, searcher Searcher) *Linker {
	t.Helper()
	aliases, err := NewAliasTable(filepath.Join(t.TempDir(), "learned.json"))
	require.NoError(t, err)
	return New(aliases, searcher)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`ПАО «Газпром»`, "газпром"},
		{"Sberbank Group", "sberbank"},
		{"X5 Retail Group", "x5 retail"},
		{"  Норильский   Никель  ", "норильский никель"},
		{"ООО 'Ромашка'", "ромашка"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestIsRegulator(t *testing.T) {
	assert.True(t, IsRegulator("ЦБ РФ"))
	assert.True(t, IsRegulator("Банк России"))
	assert.True(t, IsRegulator(`«Центральный банк»`))
	assert.True(t, IsRegulator("Минфин"))
	assert.False(t, IsRegulator("Сбербанк"))
	// "цб" only matches as a whole word.
	assert.False(t, IsRegulator("Сегежский ЦБК"))
}

func TestResolveDirectTicker(t *testing.T) {
	l := newTestLinker(t, nil)
	res, err := l.Resolve(context.Background(), "GAZP")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, "GAZP", res.Ticker)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestResolveAlias(t *testing.T) {
	l := newTestLinker(t, nil)
	res, err := l.Resolve(context.Background(), "ПАО Газпром")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Tier)
	assert.Equal(t, "GAZP", res.Ticker)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
}

func TestResolveRegulatorNeverLinks(t *testing.T) {
	l := newTestLinker(t, nil)
	res, err := l.Resolve(context.Background(), "Центральный банк")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Regulatory)
	assert.Empty(t, res.Ticker)
}

func TestResolveSearchLearnsAlias(t *testing.T) {
	searcher := &fakeSearcher{
		results: []moex.SearchResult{{
			Instrument: models.Instrument{Symbol: "GMKN", Exchange: "MOEX", ISIN: "RU0007288411", IsTraded: true},
			ShortName:  "Норильский никель",
			Score:      95,
		}},
	}
	l := newTestLinker(t, searcher)

	// Unknown spelling variant forces tier 3. Known aliases would shadow
	// the search, so use a name outside the seed table.
	res, err := l.Resolve(context.Background(), "Норникель Холдинг Интернэшнл")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Tier)
	assert.Equal(t, "GMKN", res.Ticker)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, 1, searcher.calls)

	// Second resolution hits the learned alias; the exchange is not called.
	res2, err := l.Resolve(context.Background(), "Норникель Холдинг Интернэшнл")
	require.NoError(t, err)
	require.NotNil(t, res2)
	assert.Equal(t, 2, res2.Tier)
	assert.Equal(t, 1, searcher.calls)
}

func TestResolveSearchBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{
		results: []moex.SearchResult{{
			Instrument: models.Instrument{Symbol: "XXXX"},
			Score:      30,
		}},
	}
	l := newTestLinker(t, searcher)
	res, err := l.Resolve(context.Background(), "Неизвестная Контора Плюс")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveFuzzy(t *testing.T) {
	l := newTestLinker(t, nil)
	// Typo in a known name: no alias hit, fuzzy should still land.
	res, err := l.Resolve(context.Background(), "сбербанкк")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 4, res.Tier)
	assert.Equal(t, "SBER", res.Ticker)
	assert.True(t, res.Confidence >= fuzzyThreshold*fuzzyPenalty*0.9)
	assert.True(t, res.Confidence < 0.95)
}

func TestResolveMiss(t *testing.T) {
	l := newTestLinker(t, nil)
	res, err := l.Resolve(context.Background(), "Совершенно Непохожее Название")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestAliasLearnNeverShadowsKnown(t *testing.T) {
	aliases, err := NewAliasTable(filepath.Join(t.TempDir(), "learned.json"))
	require.NoError(t, err)

	require.NoError(t, aliases.Learn("газпром", "FAKE"))
	ticker, ok := aliases.Resolve("газпром")
	require.True(t, ok)
	assert.Equal(t, "GAZP", ticker)
	assert.Equal(t, 0, aliases.LearnedCount())
}

func TestAliasPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned.json")
	aliases, err := NewAliasTable(path)
	require.NoError(t, err)
	require.NoError(t, aliases.Learn("новая контора", "NEWC"))

	reloaded, err := NewAliasTable(path)
	require.NoError(t, err)
	ticker, ok := reloaded.Resolve("новая контора")
	require.True(t, ok)
	assert.Equal(t, "NEWC", ticker)
}

func TestCombinedSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CombinedSimilarity("газпром", "газпром"), 1e-9)
	// A pure word permutation scores 1.0 on token-sort but less on the
	// plain and partial ratios; the blend lands near 0.75, above the
	// acceptance threshold.
	perm := CombinedSimilarity("никель норильский", "норильский никель")
	assert.GreaterOrEqual(t, perm, fuzzyThreshold)
	assert.Less(t, perm, 1.0)
	// Prefilter rejects unrelated strings outright.
	assert.Zero(t, CombinedSimilarity("газпром", "аэрофлот"))
}

func TestSectorHelpers(t *testing.T) {
	assert.Equal(t, "oil_gas", SectorForTicker("GAZP"))
	assert.Equal(t, "banks", SectorForTicker("SBER"))
	assert.Empty(t, SectorForTicker("ZZZZ"))
	assert.Equal(t, 3, CountSectors([]string{"GAZP", "SBER", "YNDX", "LKOH"}))
	assert.Contains(t, TickersForSector("metals"), "GMKN")
}
