package events

import (
	"strings"

	"github.com/google/uuid"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// Extractor is a pure transformation from (record, extraction) to events.
type Extractor struct {
	anchorSet map[models.EventType]bool
	logger    *logging.Logger
}

// NewExtractor creates an extractor with the configured anchor set.
func NewExtractor(anchorSet map[models.EventType]bool) *Extractor {
	return &Extractor{
		anchorSet: anchorSet,
		logger:    logging.GetLogger("events.extractor"),
	}
}

// Extract emits zero or more events for a record. Event types come from the
// extraction tags when present, otherwise from the marker lexicon. A record
// with no tags, no markers and no financial metric yields no events.
func (e *Extractor) Extract(record *models.Record, extraction *models.Extraction) []models.Event {
	fullText := strings.ToLower(record.Title + " " + record.Body)

	types := e.eventTypes(extraction, fullText)
	if len(types) == 0 {
		return nil
	}

	attrs := buildAttrs(extraction)
	var out []models.Event
	for _, eventType := range types {
		event := models.Event{
			ID:         eventID(record.ID, eventType),
			RecordID:   record.ID,
			SourceCode: record.SourceCode,
			Type:       eventType,
			Title:      record.Title,
			Timestamp:  record.PublishedAt,
			Attrs:      attrs,
			IsAnchor:   e.isAnchor(eventType, attrs),
			Confidence: confidence(eventType, fullText),
			TrustLevel: record.TrustLevel,
		}
		out = append(out, event)
		e.logger.DebugWithFields("extracted event",
			logging.Field("type", string(eventType)),
			logging.Field("record", record.DedupKey()),
			logging.Field("anchor", event.IsAnchor),
		)
	}
	return out
}

// eventID derives a stable ID from the record and event type, so
// replaying a record converges on the same event row instead of
// minting duplicates.
func eventID(recordID string, eventType models.EventType) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID+"/"+string(eventType))).String()
}

func (e *Extractor) eventTypes(extraction *models.Extraction, fullText string) []models.EventType {
	var types []models.EventType
	seen := make(map[models.EventType]bool)
	for _, tag := range extraction.EventTypes {
		et := models.EventType(tag)
		if et.Valid() && !seen[et] {
			types = append(types, et)
			seen[et] = true
		}
	}
	if len(types) > 0 {
		if len(types) > maxTypesPerRecord {
			types = types[:maxTypesPerRecord]
		}
		return types
	}

	detected := DetectEventTypes(fullText)
	if len(detected) == 0 && len(extraction.FinancialMetrics) > 0 {
		// A numeric fact with no markers still indicates a reporting event.
		return []models.EventType{models.EventEarnings}
	}
	return detected
}

func buildAttrs(extraction *models.Extraction) models.EventAttrs {
	attrs := models.EventAttrs{
		People:           extraction.People,
		Markets:          extraction.Markets,
		FinancialMetrics: extraction.FinancialMetrics,
	}
	seen := make(map[string]bool)
	for _, c := range extraction.Companies {
		attrs.Companies = append(attrs.Companies, c.Name)
		if c.Ticker != "" && !seen[c.Ticker] {
			attrs.Tickers = append(attrs.Tickers, c.Ticker)
			seen[c.Ticker] = true
		}
	}
	return attrs
}

// isAnchor marks events that commonly act as causes: configured anchor
// types, multi-company events, and events carrying financial metrics.
func (e *Extractor) isAnchor(eventType models.EventType, attrs models.EventAttrs) bool {
	if e.anchorSet[eventType] {
		return true
	}
	if len(attrs.Companies) >= 2 {
		return true
	}
	return len(attrs.FinancialMetrics) >= 1
}

// confidence starts at 0.7 and grows with marker density, clamped to
// [0.5, 0.95].
func confidence(eventType models.EventType, fullText string) float64 {
	conf := 0.7
	if matches := MarkerMatches(eventType, fullText); matches > 0 {
		bonus := float64(matches) * 0.1
		if bonus > 0.2 {
			bonus = 0.2
		}
		conf += bonus
	}
	if conf < 0.5 {
		return 0.5
	}
	if conf > 0.95 {
		return 0.95
	}
	return conf
}
