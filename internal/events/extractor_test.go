package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
)

func defaultAnchorSet() map[models.EventType]bool {
	return map[models.EventType]bool{
		models.EventSanctions: true, models.EventRateHike: true,
		models.EventRateCut: true, models.EventDefault: true,
		models.EventMA: true, models.EventEarningsBeat: true,
		models.EventEarningsMiss: true,
	}
}

func testRecord(title, body string) *models.Record {
	return &models.Record{
		ID:          "r1",
		SourceCode:  "rbc",
		ExternalID:  "100",
		Title:       title,
		Body:        body,
		PublishedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
		TrustLevel:  7,
	}
}

func TestDetectEventTypes(t *testing.T) {
	tests := []struct {
		text string
		want []models.EventType
	}{
		{"сша ввели новые санкции против газпрома", []models.EventType{models.EventSanctions}},
		{"цб повысил ключевую ставку до 16%", []models.EventType{models.EventRateHike}},
		{"компания объявила обратный выкуп акций", []models.EventType{models.EventBuyback}},
		{"погода в москве солнечная", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectEventTypes(tt.text), "text %q", tt.text)
	}
}

func TestDetectEventTypesPriorityAndCap(t *testing.T) {
	// Sanctions, rate hike and earnings markers all present; only the two
	// highest-priority types survive.
	text := "санкции против банков, цб повысил ставку, прибыль банков упала"
	types := DetectEventTypes(text)
	require.Len(t, types, 2)
	assert.Equal(t, models.EventSanctions, types[0])
	assert.Equal(t, models.EventRateHike, types[1])
}

func TestExtractUsesExtractionTags(t *testing.T) {
	ex := NewExtractor(defaultAnchorSet())
	extraction := &models.Extraction{
		EventTypes: []string{"sanctions"},
		Companies:  []models.CompanyMention{{Name: "Газпром", Ticker: "GAZP"}},
		Confidence: 0.9,
	}

	evts := ex.Extract(testRecord("US announces new sanctions on GAZP", "Gazprom under restrictions"), extraction)
	require.Len(t, evts, 1)

	e := evts[0]
	assert.Equal(t, models.EventSanctions, e.Type)
	assert.True(t, e.IsAnchor)
	assert.Equal(t, []string{"GAZP"}, e.Attrs.Tickers)
	assert.Equal(t, testRecord("", "").PublishedAt, e.Timestamp)
	require.NoError(t, e.Validate())
}

func TestExtractIgnoresUnknownTags(t *testing.T) {
	ex := NewExtractor(defaultAnchorSet())
	extraction := &models.Extraction{EventTypes: []string{"weather_report"}}

	evts := ex.Extract(testRecord("обычные новости", "ничего интересного"), extraction)
	assert.Empty(t, evts)
}

func TestExtractFallsBackToMarkers(t *testing.T) {
	ex := NewExtractor(defaultAnchorSet())
	extraction := &models.Extraction{
		Companies: []models.CompanyMention{{Name: "Сбербанк", Ticker: "SBER"}},
	}

	evts := ex.Extract(testRecord("ЦБ повысил ключевую ставку", "повышение ставки до 16%"), extraction)
	require.Len(t, evts, 1)
	assert.Equal(t, models.EventRateHike, evts[0].Type)
	assert.True(t, evts[0].IsAnchor)
}

func TestExtractMetricOnlyYieldsEarnings(t *testing.T) {
	ex := NewExtractor(defaultAnchorSet())
	extraction := &models.Extraction{
		FinancialMetrics: []models.FinancialMetric{{MetricType: "net_income", Value: 1.2e9, Company: "Лукойл"}},
	}

	evts := ex.Extract(testRecord("итоги квартала", "показатели без маркеров"), extraction)
	require.Len(t, evts, 1)
	assert.Equal(t, models.EventEarnings, evts[0].Type)
	// Metric presence makes it an anchor.
	assert.True(t, evts[0].IsAnchor)
}

func TestExtractNoSignalNoEvents(t *testing.T) {
	ex := NewExtractor(defaultAnchorSet())
	evts := ex.Extract(testRecord("погода", "солнечно"), &models.Extraction{})
	assert.Empty(t, evts)
}

func TestConfidenceBounds(t *testing.T) {
	// Repeated markers raise confidence but cap at 0.9 (0.7 + 0.2).
	text := "санкции санкции санкции санкции"
	conf := confidence(models.EventSanctions, text)
	assert.InDelta(t, 0.9, conf, 1e-9)

	// No markers: base confidence.
	assert.InDelta(t, 0.7, confidence(models.EventBuyback, "ничего"), 1e-9)
}

func TestAnchorByCompanyCount(t *testing.T) {
	ex := NewExtractor(defaultAnchorSet())
	attrs := models.EventAttrs{Companies: []string{"Газпром", "Лукойл"}}
	assert.True(t, ex.isAnchor(models.EventBuyback, attrs))

	attrs = models.EventAttrs{Companies: []string{"Газпром"}}
	assert.False(t, ex.isAnchor(models.EventBuyback, attrs))
}
