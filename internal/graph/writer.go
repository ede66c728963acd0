package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// Write retry policy: transient graph failures are retried with
// exponential backoff before the error surfaces to the batch.
const (
	writeRetries     = 3
	writeBackoffBase = 2 * time.Second
)

// Writer performs idempotent upserts of pipeline entities into the graph.
// A failed write for one edge never blocks the other writes of a batch;
// callers collect errors per operation.
type Writer struct {
	client Client
	logger *logging.Logger
}

// NewWriter builds a writer over a connected client.
func NewWriter(client Client) *Writer {
	return &Writer{client: client, logger: logging.GetLogger("graph.writer")}
}

// UpsertEvent merges an Event node keyed by its id.
func (w *Writer) UpsertEvent(ctx context.Context, event *models.Event) error {
	props := buildPropertiesString(map[string]interface{}{
		"uid":        event.ID,
		"recordId":   event.RecordID,
		"sourceCode": event.SourceCode,
		"eventType":  string(event.Type),
		"title":      event.Title,
		"timestamp":  event.Timestamp.UnixNano(),
		"tickers":    event.Attrs.Tickers,
		"companies":  event.Attrs.Companies,
		"isAnchor":   event.IsAnchor,
		"confidence": event.Confidence,
		"trustLevel": event.TrustLevel,
	})
	query := fmt.Sprintf("MERGE (e:Event {uid: '%s'}) SET e += %s",
		escapeCypherString(event.ID), props)
	return w.execute(ctx, query)
}

// UpsertInstrument merges an Instrument node keyed by exchange:symbol.
func (w *Writer) UpsertInstrument(ctx context.Context, inst *models.Instrument) error {
	props := buildPropertiesString(map[string]interface{}{
		"uid":          inst.Key(),
		"symbol":       inst.Symbol,
		"exchange":     inst.Exchange,
		"isin":         inst.ISIN,
		"primaryBoard": inst.PrimaryBoard,
		"isTraded":     inst.IsTraded,
		"market":       inst.Market,
		"securityType": inst.SecurityType,
	})
	query := fmt.Sprintf("MERGE (i:Instrument {uid: '%s'}) SET i += %s",
		escapeCypherString(inst.Key()), props)
	return w.execute(ctx, query)
}

// UpsertCompany merges a Company node keyed by its id.
func (w *Writer) UpsertCompany(ctx context.Context, company *models.Company) error {
	props := buildPropertiesString(map[string]interface{}{
		"uid":           company.ID,
		"name":          company.Name,
		"primaryTicker": company.PrimaryTicker,
		"sector":        company.Sector,
	})
	query := fmt.Sprintf("MERGE (c:Company {uid: '%s'}) SET c += %s",
		escapeCypherString(company.ID), props)
	return w.execute(ctx, query)
}

// UpsertRecord merges a Record node keyed by its dedup key.
func (w *Writer) UpsertRecord(ctx context.Context, record *models.Record) error {
	props := buildPropertiesString(map[string]interface{}{
		"uid":         record.DedupKey(),
		"sourceCode":  record.SourceCode,
		"url":         record.URL,
		"publishedAt": record.PublishedAt.UnixNano(),
	})
	query := fmt.Sprintf("MERGE (r:Record {uid: '%s'}) SET r += %s",
		escapeCypherString(record.DedupKey()), props)
	return w.execute(ctx, query)
}

// LinkCauses upserts a CAUSES edge keyed by the ordered (cause, effect)
// pair. An existing edge is replaced only when the new total confidence is
// higher, so replays and weaker re-evaluations leave the graph unchanged.
func (w *Writer) LinkCauses(ctx context.Context, link *models.CausalLink) error {
	if err := link.Validate(); err != nil {
		return err
	}

	existing, err := w.storedConfTotal(ctx, link.CauseID, link.EffectID)
	if err != nil {
		return err
	}
	if existing >= 0 && link.ConfTotal <= existing {
		w.logger.Debug("keeping existing CAUSES %s->%s (%.3f >= %.3f)",
			link.CauseID, link.EffectID, existing, link.ConfTotal)
		return nil
	}

	props := buildPropertiesString(map[string]interface{}{
		"kind":           string(link.Kind),
		"status":         string(link.Status),
		"sign":           string(link.Sign),
		"lagClass":       string(link.LagClass),
		"confPrior":      link.ConfPrior,
		"confText":       link.ConfText,
		"confMarket":     link.ConfMarket,
		"confTotal":      link.ConfTotal,
		"weightsVersion": link.WeightsVersion,
		"evidenceIds":    link.EvidenceIDs,
		"createdAt":      link.CreatedAt.UnixNano(),
	})
	query := fmt.Sprintf(
		"MATCH (c:Event {uid: '%s'}), (f:Event {uid: '%s'}) MERGE (c)-[r:CAUSES]->(f) SET r += %s",
		escapeCypherString(link.CauseID), escapeCypherString(link.EffectID), props)
	return w.execute(ctx, query)
}

// storedConfTotal returns the current total for a CAUSES edge, or -1 when
// the edge does not exist.
func (w *Writer) storedConfTotal(ctx context.Context, causeID, effectID string) (float64, error) {
	query := fmt.Sprintf(
		"MATCH (c:Event {uid: '%s'})-[r:CAUSES]->(f:Event {uid: '%s'}) RETURN r.confTotal",
		escapeCypherString(causeID), escapeCypherString(effectID))

	var result *QueryResult
	err := w.withRetry(ctx, func() error {
		var execErr error
		result, execErr = w.client.ExecuteQuery(ctx, GraphQuery{Query: query})
		return execErr
	})
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return -1, nil
	}
	switch v := result.Rows[0][0].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return -1, nil
	}
}

// LinkImpacts upserts an IMPACTS edge from an event to an instrument.
func (w *Writer) LinkImpacts(ctx context.Context, edge *models.ImpactEdge, instrumentUID string) error {
	props := buildPropertiesString(map[string]interface{}{
		"priceImpact":  edge.PriceImpact,
		"volumeImpact": edge.VolumeImpact,
		"sentiment":    string(edge.Sentiment),
		"window":       edge.Window,
		"createdAt":    edge.CreatedAt.UnixNano(),
	})
	query := fmt.Sprintf(
		"MATCH (e:Event {uid: '%s'}), (i:Instrument {uid: '%s'}) MERGE (e)-[r:IMPACTS]->(i) SET r += %s",
		escapeCypherString(edge.EventID), escapeCypherString(instrumentUID), props)
	return w.execute(ctx, query)
}

// LinkCompanyInstrument upserts a HAS_INSTRUMENT edge.
func (w *Writer) LinkCompanyInstrument(ctx context.Context, companyID, instrumentUID string) error {
	query := fmt.Sprintf(
		"MATCH (c:Company {uid: '%s'}), (i:Instrument {uid: '%s'}) MERGE (c)-[:HAS_INSTRUMENT]->(i)",
		escapeCypherString(companyID), escapeCypherString(instrumentUID))
	return w.execute(ctx, query)
}

// LinkEventRecord upserts a DERIVED_FROM edge from an event to its record.
func (w *Writer) LinkEventRecord(ctx context.Context, eventID, recordUID string) error {
	query := fmt.Sprintf(
		"MATCH (e:Event {uid: '%s'}), (r:Record {uid: '%s'}) MERGE (e)-[:DERIVED_FROM]->(r)",
		escapeCypherString(eventID), escapeCypherString(recordUID))
	return w.execute(ctx, query)
}

func (w *Writer) execute(ctx context.Context, query string) error {
	return w.withRetry(ctx, func() error {
		_, err := w.client.ExecuteQuery(ctx, GraphQuery{Query: query})
		return err
	})
}

// withRetry runs op up to writeRetries times with exponential backoff.
func (w *Writer) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	backoff := writeBackoffBase
	for attempt := 1; attempt <= writeRetries; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt == writeRetries {
			break
		}
		w.logger.Warn("graph write failed (attempt %d/%d), retrying in %s: %v",
			attempt, writeRetries, backoff, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}
