package models

import (
	"fmt"
	"time"
)

// Instrument is a tradable security identified by exchange:symbol.
// Immutable after first creation except for the traded flag.
type Instrument struct {
	Symbol       string `db:"symbol"`
	Exchange     string `db:"exchange"`
	ISIN         string `db:"isin"`
	PrimaryBoard string `db:"primary_board"`
	IsTraded     bool   `db:"is_traded"`
	Market       string `db:"market"`
	SecurityType string `db:"security_type"`
}

// Key returns the canonical instrument identifier.
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.Symbol
}

// Company is an issuer, linked to at most one primary instrument.
type Company struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	PrimaryTicker string `db:"primary_ticker"`
	Sector        string `db:"sector"`
}

// EventAttrs carries the entities an event references.
type EventAttrs struct {
	Companies        []string          `json:"companies"`
	Tickers          []string          `json:"tickers"`
	People           []Person          `json:"people,omitempty"`
	Markets          []MarketMention   `json:"markets,omitempty"`
	FinancialMetrics []FinancialMetric `json:"financial_metrics,omitempty"`
}

// Event is the central graph vertex. Immutable after creation except for
// IsAnchor recomputation.
type Event struct {
	ID         string     `db:"id"`
	RecordID   string     `db:"record_id"`
	SourceCode string     `db:"source_code"`
	Type       EventType  `db:"event_type"`
	Title      string     `db:"title"`
	Timestamp  time.Time  `db:"ts"`
	Attrs      EventAttrs `db:"-"`
	IsAnchor   bool       `db:"is_anchor"`
	Confidence float64    `db:"confidence"`
	TrustLevel int        `db:"trust_level"`
}

// Validate checks invariants a persisted event must satisfy.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing id")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("event %s: unknown event type %q", e.ID, e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event %s: missing timestamp", e.ID)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("event %s: confidence %.3f outside [0,1]", e.ID, e.Confidence)
	}
	return nil
}

// HasTicker reports whether the event references the given ticker.
func (e *Event) HasTicker(ticker string) bool {
	for _, t := range e.Attrs.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}
