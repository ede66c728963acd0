package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/finradar/finradar/internal/models"
)

// Reader serves events and causal links back out of the graph. It
// satisfies the traversal interfaces of the inference engine.
type Reader struct {
	client Client
}

// NewReader builds a reader over a connected client.
func NewReader(client Client) *Reader {
	return &Reader{client: client}
}

const linkReturnClause = "r.kind, r.status, r.sign, r.lagClass, r.confPrior, r.confText, r.confMarket, r.confTotal, r.weightsVersion, r.createdAt, r.evidenceIds"

// OutgoingLinks returns the CAUSES edges leaving eventID.
func (r *Reader) OutgoingLinks(ctx context.Context, eventID string) ([]*models.CausalLink, error) {
	query := fmt.Sprintf(
		"MATCH (c:Event {uid: '%s'})-[r:CAUSES]->(f:Event) RETURN c.uid, f.uid, %s",
		escapeCypherString(eventID), linkReturnClause)
	return r.queryLinks(ctx, query)
}

// IncomingLinks returns the CAUSES edges arriving at eventID.
func (r *Reader) IncomingLinks(ctx context.Context, eventID string) ([]*models.CausalLink, error) {
	query := fmt.Sprintf(
		"MATCH (c:Event)-[r:CAUSES]->(f:Event {uid: '%s'}) RETURN c.uid, f.uid, %s",
		escapeCypherString(eventID), linkReturnClause)
	return r.queryLinks(ctx, query)
}

func (r *Reader) queryLinks(ctx context.Context, query string) ([]*models.CausalLink, error) {
	result, err := r.client.ExecuteQuery(ctx, GraphQuery{Query: query})
	if err != nil {
		return nil, err
	}

	links := make([]*models.CausalLink, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 13 {
			continue
		}
		link := &models.CausalLink{
			CauseID:        cellString(row[0]),
			EffectID:       cellString(row[1]),
			Kind:           models.LinkKind(cellString(row[2])),
			Status:         models.LinkStatus(cellString(row[3])),
			Sign:           models.Sign(cellString(row[4])),
			LagClass:       models.LagClass(cellString(row[5])),
			ConfPrior:      cellFloat(row[6]),
			ConfText:       cellFloat(row[7]),
			ConfMarket:     cellFloat(row[8]),
			ConfTotal:      cellFloat(row[9]),
			WeightsVersion: cellString(row[10]),
			CreatedAt:      time.Unix(0, cellInt64(row[11])),
			EvidenceIDs:    cellStrings(row[12]),
		}
		links = append(links, link)
	}
	return links, nil
}

// EventByID loads one event node.
func (r *Reader) EventByID(ctx context.Context, eventID string) (*models.Event, error) {
	query := fmt.Sprintf(
		"MATCH (e:Event {uid: '%s'}) RETURN e.uid, e.recordId, e.sourceCode, e.eventType, e.title, e.timestamp, e.tickers, e.companies, e.isAnchor, e.confidence, e.trustLevel",
		escapeCypherString(eventID))

	result, err := r.client.ExecuteQuery(ctx, GraphQuery{Query: query})
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) < 11 {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}

	row := result.Rows[0]
	return &models.Event{
		ID:         cellString(row[0]),
		RecordID:   cellString(row[1]),
		SourceCode: cellString(row[2]),
		Type:       models.EventType(cellString(row[3])),
		Title:      cellString(row[4]),
		Timestamp:  time.Unix(0, cellInt64(row[5])),
		Attrs: models.EventAttrs{
			Tickers:   cellStrings(row[6]),
			Companies: cellStrings(row[7]),
		},
		IsAnchor:   cellBool(row[8]),
		Confidence: cellFloat(row[9]),
		TrustLevel: int(cellInt64(row[10])),
	}, nil
}

// Result cell coercion helpers. FalkorDB returns scalars with loose types
// depending on the value, so every read goes through these.

func cellString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func cellFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func cellInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func cellBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func cellStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
