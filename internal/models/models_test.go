package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLagClassContains(t *testing.T) {
	tests := []struct {
		class LagClass
		delta time.Duration
		want  bool
	}{
		{Lag0To1h, 30 * time.Minute, true},
		// Exactly 1h belongs to 0-1h only; a nonzero lower bound is
		// exclusive.
		{Lag0To1h, time.Hour, true},
		{Lag1hTo1d, time.Hour, false},
		{Lag1hTo1d, time.Hour + time.Second, true},
		{Lag0To1h, time.Hour + time.Second, false},
		{Lag1To7d, 24 * time.Hour, false},
		{Lag1To4w, 7 * 24 * time.Hour, false},
		{Lag0To1d, 4 * time.Hour, true},
		{Lag0To3d, 73 * time.Hour, false},
		{Lag1To7d, 12 * time.Hour, false},
		{Lag1To4w, 10 * 24 * time.Hour, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.class.Contains(tt.delta),
			"%s contains %s", tt.class, tt.delta)
	}
}

func TestEventTypeVocabularyClosed(t *testing.T) {
	assert.True(t, EventSanctions.Valid())
	assert.True(t, EventMA.Valid())
	assert.False(t, EventType("meme_stock").Valid())
	assert.False(t, EventType("").Valid())
	assert.Len(t, allEventTypes, 26)
}

func TestCausalLinkValidate(t *testing.T) {
	link := CausalLink{
		CauseID:    "e1",
		EffectID:   "e2",
		Kind:       LinkConfirmed,
		Sign:       SignNegative,
		LagClass:   Lag0To1d,
		ConfPrior:  0.75,
		ConfText:   0.8,
		ConfMarket: 0.6,
	}
	link.ConfTotal = CombineConfidence(link.ConfPrior, link.ConfText, link.ConfMarket)
	require.NoError(t, link.Validate())
	assert.InDelta(t, 0.72, link.ConfTotal, 1e-9)

	link.ConfTotal = 0.9
	assert.Error(t, link.Validate())

	loop := CausalLink{CauseID: "e1", EffectID: "e1"}
	assert.Error(t, loop.Validate())
}

func TestRecordDedupAndHash(t *testing.T) {
	r1 := Record{SourceCode: "rbc", ExternalID: "42", Title: "t", Body: "b", PublishedAt: time.Now()}
	r2 := Record{SourceCode: "rbc", ExternalID: "42", Title: "t", Body: "b", PublishedAt: time.Now()}
	r1.ComputeContentHash()
	r2.ComputeContentHash()

	assert.Equal(t, r1.DedupKey(), r2.DedupKey())
	assert.Equal(t, r1.ContentHash, r2.ContentHash)
	require.NoError(t, r1.Validate())

	r3 := Record{SourceCode: "rbc", ExternalID: "43"}
	assert.Error(t, r3.Validate())
}

func TestImportanceScoreValidate(t *testing.T) {
	s := ImportanceScore{
		EventID: "e1", Novelty: 0.5, Burst: 0.2, Credibility: 0.7,
		Breadth: 0.3, PriceImpact: 0.1, Total: 0.44,
	}
	require.NoError(t, s.Validate())

	s.Burst = 1.2
	assert.Error(t, s.Validate())
}

func TestPredictionOpen(t *testing.T) {
	now := time.Now()
	p := EventPrediction{Status: PredictionPending, TargetDate: now.Add(24 * time.Hour)}
	assert.True(t, p.Open(now))
	assert.False(t, p.Open(now.Add(48*time.Hour)))

	p.Status = PredictionFulfilled
	assert.False(t, p.Open(now))
}
