package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/ceg"
	"github.com/finradar/finradar/internal/metrics"
	"github.com/finradar/finradar/internal/models"
)

type fakeSource struct {
	events    []*models.Event
	lastLimit int
}

func (f *fakeSource) EventsInWindow(_ context.Context, since, until time.Time, limit int) ([]*models.Event, error) {
	f.lastLimit = limit
	var out []*models.Event
	for _, e := range f.events {
		if e.Timestamp.After(since) && !e.Timestamp.After(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeWriter struct {
	links []*models.CausalLink
	fail  bool
}

func (f *fakeWriter) LinkCauses(_ context.Context, link *models.CausalLink) error {
	if f.fail {
		return errors.New("graph unavailable")
	}
	f.links = append(f.links, link)
	return nil
}

func event(id string, t models.EventType, ts time.Time, title string) *models.Event {
	return &models.Event{
		ID:         id,
		RecordID:   "rec-" + id,
		SourceCode: "interfax",
		Type:       t,
		Title:      title,
		Timestamp:  ts,
		TrustLevel: 8,
	}
}

func TestReconcileLinksForwardSuccessor(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sanctions := event("a", models.EventSanctions, ts, "Новые санкции против Газпрома")
	drop := event("b", models.EventMarketDrop, ts.Add(4*time.Hour), "Рынок падает на фоне новых санкций")

	source := &fakeSource{events: []*models.Event{sanctions, drop}}
	writer := &fakeWriter{}
	r := New(source, ceg.NewEngine(nil), writer, Options{})

	written, err := r.Reconcile(context.Background(), sanctions)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	require.Len(t, writer.links, 1)
	assert.Equal(t, "a", writer.links[0].CauseID)
	assert.Equal(t, "b", writer.links[0].EffectID)
	assert.Equal(t, defaultScanCap, source.lastLimit)
}

func TestReconcileLinksBackwardPredecessor(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sanctions := event("a", models.EventSanctions, ts, "Новые санкции")
	drop := event("b", models.EventMarketDrop, ts.Add(4*time.Hour), "Индекс снижается на фоне санкций")

	source := &fakeSource{events: []*models.Event{sanctions, drop}}
	writer := &fakeWriter{}
	r := New(source, ceg.NewEngine(nil), writer, Options{})

	// The market drop arrives second; the sanctions event already in the
	// window becomes its cause.
	written, err := r.Reconcile(context.Background(), drop)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	require.Len(t, writer.links, 1)
	assert.Equal(t, "a", writer.links[0].CauseID)
	assert.Equal(t, "b", writer.links[0].EffectID)
}

func TestReconcileSkipsUnrelatedPairs(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ipo := event("a", models.EventIPO, ts, "IPO объявлено")
	buyback := event("b", models.EventBuyback, ts.Add(time.Hour), "Обратный выкуп акций")

	source := &fakeSource{events: []*models.Event{ipo, buyback}}
	writer := &fakeWriter{}
	r := New(source, ceg.NewEngine(nil), writer, Options{})

	written, err := r.Reconcile(context.Background(), ipo)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Empty(t, writer.links)
}

func TestReconcileToleratesWriteFailures(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sanctions := event("a", models.EventSanctions, ts, "Санкции")
	drop := event("b", models.EventMarketDrop, ts.Add(4*time.Hour), "Обвал из-за санкций")

	source := &fakeSource{events: []*models.Event{sanctions, drop}}
	writer := &fakeWriter{fail: true}
	r := New(source, ceg.NewEngine(nil), writer, Options{})

	written, err := r.Reconcile(context.Background(), sanctions)
	require.NoError(t, err)
	assert.Zero(t, written)
}

func TestReconcileAttachesIntermediateEvidence(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sanctions := event("a", models.EventSanctions, ts, "Новые санкции против Газпрома")
	mid := event("mid", models.EventStockDrop, ts.Add(2*time.Hour), "Акции Газпрома падают")
	drop := event("b", models.EventMarketDrop, ts.Add(4*time.Hour), "Рынок падает на фоне новых санкций")
	for _, e := range []*models.Event{sanctions, mid, drop} {
		e.Attrs.Tickers = []string{"GAZP"}
	}

	source := &fakeSource{events: []*models.Event{sanctions, mid, drop}}
	writer := &fakeWriter{}
	r := New(source, ceg.NewEngine(nil), writer, Options{})

	_, err := r.Reconcile(context.Background(), sanctions)
	require.NoError(t, err)

	var link *models.CausalLink
	for _, l := range writer.links {
		if l.CauseID == "a" && l.EffectID == "b" {
			link = l
		}
	}
	require.NotNil(t, link)
	assert.Contains(t, link.EvidenceIDs, "mid")
	assert.NotContains(t, link.EvidenceIDs, "a")
	assert.NotContains(t, link.EvidenceIDs, "b")
}

func TestReconcileCountsWrittenLinks(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sanctions := event("a", models.EventSanctions, ts, "Новые санкции")
	drop := event("b", models.EventMarketDrop, ts.Add(4*time.Hour), "Индекс снижается на фоне санкций")

	m := metrics.New(prometheus.NewRegistry())
	source := &fakeSource{events: []*models.Event{sanctions, drop}}
	r := New(source, ceg.NewEngine(nil), &fakeWriter{}, Options{Metrics: m})

	written, err := r.Reconcile(context.Background(), sanctions)
	require.NoError(t, err)
	require.Greater(t, written, 0)

	var counted float64
	for _, kind := range []models.LinkKind{models.LinkConfirmed, models.LinkRetro, models.LinkHypothesis} {
		counted += testutil.ToFloat64(m.LinksCreated.WithLabelValues(string(kind)))
	}
	assert.Equal(t, float64(written), counted)
}

func TestReconcileHonorsScanCapOption(t *testing.T) {
	source := &fakeSource{}
	r := New(source, ceg.NewEngine(nil), &fakeWriter{}, Options{ScanCap: 7, Lookback: time.Hour})

	_, err := r.Reconcile(context.Background(), event("a", models.EventSanctions, time.Now(), "x"))
	require.NoError(t, err)
	assert.Equal(t, 7, source.lastLimit)
}
