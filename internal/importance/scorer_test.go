package importance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
)

type fakeStats struct {
	similar int
	total   int
	recent  int
	corr    int
}

func (f *fakeStats) SimilarEventCount(context.Context, *models.Event) (int, error) {
	return f.similar, nil
}

func (f *fakeStats) BurstCounts(context.Context, models.EventType, time.Time) (int, int, error) {
	return f.total, f.recent, nil
}

func (f *fakeStats) CorroboratingSources(context.Context, *models.Event) (int, error) {
	return f.corr, nil
}

func anchorSet() map[models.EventType]bool {
	return map[models.EventType]bool{models.EventDefault: true}
}

func testEvent(t models.EventType, tickers []string, trust int) *models.Event {
	return &models.Event{
		ID:         "evt-1",
		Type:       t,
		Timestamp:  time.Now(),
		TrustLevel: trust,
		Attrs:      models.EventAttrs{Tickers: tickers, Companies: tickers},
	}
}

func TestNoveltyFirstReport(t *testing.T) {
	s := NewScorer(&fakeStats{similar: 0}, anchorSet())
	v, err := s.novelty(context.Background(), testEvent(models.EventSanctions, nil, 5))
	require.NoError(t, err)
	// (0.5+0.3)*0.7 + 0.9*0.3 for a first sanctions report.
	assert.InDelta(t, 0.83, v, 1e-9)
}

func TestNoveltyDecaysWithRepeats(t *testing.T) {
	ctx := context.Background()
	ev := testEvent(models.EventEarnings, nil, 5)

	first, err := NewScorer(&fakeStats{similar: 0}, anchorSet()).novelty(ctx, ev)
	require.NoError(t, err)
	tenth, err := NewScorer(&fakeStats{similar: 9}, anchorSet()).novelty(ctx, ev)
	require.NoError(t, err)
	assert.Greater(t, first, tenth)
	// Past five repeats the count bonus is exhausted: base 0.5 only.
	assert.InDelta(t, 0.5*0.7+0.3*0.3, tenth, 1e-9)
}

func TestBurstQuietVsSpike(t *testing.T) {
	ctx := context.Background()
	ev := testEvent(models.EventSanctions, nil, 5)

	quiet, err := NewScorer(&fakeStats{total: 1}, anchorSet()).burst(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 0.1, quiet)

	spike, err := NewScorer(&fakeStats{total: 12, recent: 11}, anchorSet()).burst(ctx, ev)
	require.NoError(t, err)
	// (11)^0.7/10 + 0.3 recency bonus, clamped to 1.
	assert.Greater(t, spike, 0.7)
	assert.LessOrEqual(t, spike, 1.0)
}

func TestCredibilityLayers(t *testing.T) {
	ctx := context.Background()

	low, err := NewScorer(&fakeStats{}, anchorSet()).credibility(ctx, testEvent(models.EventAccident, nil, 3))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, low, 1e-9)

	// High trust + high-cred anchor type + two corroborating sources.
	high, err := NewScorer(&fakeStats{corr: 2}, anchorSet()).credibility(ctx, testEvent(models.EventDefault, nil, 9))
	require.NoError(t, err)
	assert.Equal(t, 1.0, high)
}

func TestBreadthScalesWithCompaniesAndSectors(t *testing.T) {
	s := NewScorer(&fakeStats{}, anchorSet())

	single := s.breadth(testEvent(models.EventEarnings, []string{"GAZP"}, 5))
	assert.InDelta(t, 0.1, single, 1e-9)

	// Cross-sector sanctions story: count bucket + diversity + broad type.
	wide := s.breadth(testEvent(models.EventSanctions, []string{"SBER", "GAZP", "GMKN", "MTSS"}, 5))
	assert.Greater(t, wide, 0.8)
}

func TestPriceImpactComponent(t *testing.T) {
	assert.Zero(t, priceImpactComponent(nil))

	mild := priceImpactComponent([]models.ImpactEdge{{PriceImpact: 0.004, VolumeImpact: 1.2}})
	assert.Less(t, mild, 0.5)

	// 3% abnormal return on heavy volume maxes the per-ticker score and
	// earns the hard-reaction bonus.
	hard := priceImpactComponent([]models.ImpactEdge{{PriceImpact: -0.03, VolumeImpact: 4}})
	assert.Equal(t, 1.0, hard)
}

func TestScoreTotalWithinBounds(t *testing.T) {
	s := NewScorer(&fakeStats{similar: 0, total: 12, recent: 11, corr: 3}, anchorSet())
	ev := testEvent(models.EventDefault, []string{"SBER", "VTBR"}, 10)

	score, err := s.Score(context.Background(), ev, []models.ImpactEdge{{PriceImpact: -0.05, VolumeImpact: 6}})
	require.NoError(t, err)
	require.NoError(t, score.Validate())
	assert.Equal(t, ev.ID, score.EventID)
	assert.Greater(t, score.Total, 0.7)
}
