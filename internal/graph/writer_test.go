package graph

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
)

// fakeClient records executed queries and serves canned results.
type fakeClient struct {
	queries []string
	results map[string]*QueryResult // matched by substring
}

func (f *fakeClient) Connect(context.Context) error { return nil }
func (f *fakeClient) Close() error                  { return nil }
func (f *fakeClient) Ping(context.Context) error    { return nil }
func (f *fakeClient) GetNode(context.Context, NodeType, string) (*Node, error) {
	return nil, nil
}
func (f *fakeClient) GetGraphStats(context.Context) (*GraphStats, error) { return &GraphStats{}, nil }
func (f *fakeClient) InitializeSchema(context.Context) error             { return nil }
func (f *fakeClient) DeleteGraph(context.Context) error                  { return nil }

func (f *fakeClient) ExecuteQuery(_ context.Context, query GraphQuery) (*QueryResult, error) {
	f.queries = append(f.queries, query.Query)
	for sub, res := range f.results {
		if strings.Contains(query.Query, sub) {
			return res, nil
		}
	}
	return &QueryResult{}, nil
}

func validLink(total float64) *models.CausalLink {
	prior := total / 0.4
	return &models.CausalLink{
		CauseID:        "e1",
		EffectID:       "e2",
		Kind:           models.LinkConfirmed,
		Status:         models.LinkProposed,
		Sign:           models.SignNegative,
		LagClass:       models.Lag0To1d,
		ConfPrior:      prior,
		ConfTotal:      total,
		WeightsVersion: models.WeightsVersion,
		CreatedAt:      time.Now(),
	}
}

func TestUpsertEventIsMergeBased(t *testing.T) {
	client := &fakeClient{}
	w := NewWriter(client)

	event := &models.Event{
		ID:        "evt-1",
		Type:      models.EventSanctions,
		Title:     "it's 'quoted'",
		Timestamp: time.Now(),
		Attrs:     models.EventAttrs{Tickers: []string{"GAZP"}},
	}
	require.NoError(t, w.UpsertEvent(context.Background(), event))

	require.Len(t, client.queries, 1)
	q := client.queries[0]
	assert.Contains(t, q, "MERGE (e:Event {uid: 'evt-1'})")
	assert.Contains(t, q, `\'quoted\'`)
	assert.NotContains(t, q, "CREATE (")
}

func TestLinkCausesCreatesWhenAbsent(t *testing.T) {
	client := &fakeClient{}
	w := NewWriter(client)

	require.NoError(t, w.LinkCauses(context.Background(), validLink(0.3)))

	// First the existence check, then the merge.
	require.Len(t, client.queries, 2)
	assert.Contains(t, client.queries[0], "RETURN r.confTotal")
	assert.Contains(t, client.queries[1], "MERGE (c)-[r:CAUSES]->(f)")
}

func TestLinkCausesKeepsHigherTotal(t *testing.T) {
	client := &fakeClient{
		results: map[string]*QueryResult{
			"RETURN r.confTotal": {Rows: [][]interface{}{{0.8}}},
		},
	}
	w := NewWriter(client)

	// Weaker re-evaluation must not touch the stored edge.
	require.NoError(t, w.LinkCauses(context.Background(), validLink(0.3)))
	require.Len(t, client.queries, 1)

	// A stronger one replaces it.
	strong := validLink(0.36)
	strong.ConfPrior = 0.9
	strong.ConfTotal = 0.9
	strong.ConfText = 0.9
	strong.ConfMarket = 0.9
	require.NoError(t, w.LinkCauses(context.Background(), strong))
	require.Len(t, client.queries, 3)
	assert.Contains(t, client.queries[2], "MERGE (c)-[r:CAUSES]->(f)")
}

func TestLinkCausesRejectsInvalidArithmetic(t *testing.T) {
	w := NewWriter(&fakeClient{})
	bad := validLink(0.5)
	bad.ConfTotal = 0.9 // no longer matches the combine formula

	err := w.LinkCauses(context.Background(), bad)
	assert.Error(t, err)
}

func TestBuildPropertiesString(t *testing.T) {
	s := buildPropertiesString(map[string]interface{}{"name": "o'brien"})
	assert.Equal(t, `{name: 'o\'brien'}`, s)

	s = buildPropertiesString(map[string]interface{}{"tickers": []string{"GAZP", "SBER"}})
	assert.Equal(t, "{tickers: ['GAZP', 'SBER']}", s)

	assert.Empty(t, buildPropertiesString(nil))
}

func TestIsWriteQuery(t *testing.T) {
	assert.True(t, isWriteQuery("MERGE (n:Event {uid: 'x'})"))
	assert.True(t, isWriteQuery("match (n) detach delete n"))
	assert.False(t, isWriteQuery("MATCH (n:Event) RETURN n LIMIT 10"))
}

func TestMakeQueryKeyDeterministic(t *testing.T) {
	q := GraphQuery{Query: "MATCH (n) RETURN n", Parameters: map[string]interface{}{"a": 1, "b": "x"}}
	assert.Equal(t, MakeQueryKey(q), MakeQueryKey(q))

	other := GraphQuery{Query: "MATCH (n) RETURN n", Parameters: map[string]interface{}{"a": 2, "b": "x"}}
	assert.NotEqual(t, MakeQueryKey(q), MakeQueryKey(other))
}

func TestReaderParsesLinks(t *testing.T) {
	client := &fakeClient{
		results: map[string]*QueryResult{
			"-[r:CAUSES]->(f:Event)": {
				Rows: [][]interface{}{{
					"e1", "e2", "CONFIRMED", "PROPOSED", "-", "0-1d",
					0.75, 0.9, 0.8, 0.81, models.WeightsVersion, int64(0),
					[]interface{}{"mid-1"},
				}},
			},
		},
	}

	links, err := NewReader(client).OutgoingLinks(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "e2", links[0].EffectID)
	assert.Equal(t, models.LinkConfirmed, links[0].Kind)
	assert.Equal(t, []string{"mid-1"}, links[0].EvidenceIDs)
	assert.InDelta(t, 0.81, links[0].ConfTotal, 1e-9)
}
