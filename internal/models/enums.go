// Package models defines the core entities of the causal event graph
// pipeline: sources, records, extractions, events, causal links, impact
// edges, importance scores, watches and predictions.
package models

import (
	"fmt"
	"time"
)

// EventType is the closed vocabulary of event types. Additions are a source
// change, not a runtime change.
type EventType string

const (
	EventSanctions        EventType = "sanctions"
	EventRateHike         EventType = "rate_hike"
	EventRateCut          EventType = "rate_cut"
	EventEarnings         EventType = "earnings"
	EventEarningsBeat     EventType = "earnings_beat"
	EventEarningsMiss     EventType = "earnings_miss"
	EventGuidanceCut      EventType = "guidance_cut"
	EventMA               EventType = "m&a"
	EventDefault          EventType = "default"
	EventDividendCut      EventType = "dividend_cut"
	EventBuyback          EventType = "buyback"
	EventRegulatory       EventType = "regulatory"
	EventSupplyChain      EventType = "supply_chain"
	EventAccident         EventType = "accident"
	EventManagementChange EventType = "management_change"
	EventIPO              EventType = "ipo"
	EventMarketDrop       EventType = "market_drop"
	EventRubAppreciation  EventType = "rub_appreciation"
	EventRubDepreciation  EventType = "rub_depreciation"
	EventBankStockUp      EventType = "bank_stock_up"
	EventStockRally       EventType = "stock_rally"
	EventStockDrop        EventType = "stock_drop"
	EventBondCrash        EventType = "bond_crash"
	EventSectorDrop       EventType = "sector_drop"
	EventStockVolatility  EventType = "stock_volatility"
	EventProductionDown   EventType = "production_down"
)

var allEventTypes = map[EventType]bool{
	EventSanctions: true, EventRateHike: true, EventRateCut: true,
	EventEarnings: true, EventEarningsBeat: true, EventEarningsMiss: true,
	EventGuidanceCut: true, EventMA: true, EventDefault: true,
	EventDividendCut: true, EventBuyback: true, EventRegulatory: true,
	EventSupplyChain: true, EventAccident: true, EventManagementChange: true,
	EventIPO: true, EventMarketDrop: true, EventRubAppreciation: true,
	EventRubDepreciation: true, EventBankStockUp: true, EventStockRally: true,
	EventStockDrop: true, EventBondCrash: true, EventSectorDrop: true,
	EventStockVolatility: true, EventProductionDown: true,
}

// Valid reports whether t is part of the closed vocabulary.
func (t EventType) Valid() bool {
	return allEventTypes[t]
}

// LagClass is a discrete expected-lag range between cause and effect.
type LagClass string

const (
	Lag0To1h  LagClass = "0-1h"
	Lag1hTo1d LagClass = "1h-1d"
	Lag0To1d  LagClass = "0-1d"
	Lag0To3d  LagClass = "0-3d"
	Lag1To7d  LagClass = "1-7d"
	Lag1To4w  LagClass = "1-4w"
)

// lagBounds holds the (min, max] duration for each class; classes
// starting at zero include zero.
var lagBounds = map[LagClass][2]time.Duration{
	Lag0To1h:  {0, time.Hour},
	Lag1hTo1d: {time.Hour, 24 * time.Hour},
	Lag0To1d:  {0, 24 * time.Hour},
	Lag0To3d:  {0, 72 * time.Hour},
	Lag1To7d:  {24 * time.Hour, 7 * 24 * time.Hour},
	Lag1To4w:  {7 * 24 * time.Hour, 28 * 24 * time.Hour},
}

// Contains reports whether delta falls inside the class range. The upper
// bound is inclusive, the lower bound exclusive when nonzero: exactly 1h
// is inside "0-1h" but not inside "1h-1d".
func (c LagClass) Contains(delta time.Duration) bool {
	bounds, ok := lagBounds[c]
	if !ok {
		return false
	}
	if bounds[0] > 0 && delta <= bounds[0] {
		return false
	}
	return delta >= bounds[0] && delta <= bounds[1]
}

// Sign is the expected direction of a causal effect.
type Sign string

const (
	SignPositive Sign = "+"
	SignNegative Sign = "-"
	SignBoth     Sign = "±"
)

// LinkKind classifies a causal link by its evidence profile.
type LinkKind string

const (
	LinkConfirmed  LinkKind = "CONFIRMED"
	LinkRetro      LinkKind = "RETRO"
	LinkHypothesis LinkKind = "HYPOTHESIS"
)

// LinkStatus is the review state of a causal link.
type LinkStatus string

const (
	LinkProposed LinkStatus = "PROPOSED"
	LinkAccepted LinkStatus = "ACCEPTED"
	LinkRejected LinkStatus = "REJECTED"
)

// WatchLevel is the tier of a watcher rule.
type WatchLevel string

const (
	WatchL0 WatchLevel = "L0"
	WatchL1 WatchLevel = "L1"
	WatchL2 WatchLevel = "L2"
)

// PredictionStatus is the lifecycle state of an event prediction.
type PredictionStatus string

const (
	PredictionPending     PredictionStatus = "PENDING"
	PredictionFulfilled   PredictionStatus = "FULFILLED"
	PredictionUnfulfilled PredictionStatus = "UNFULFILLED"
)

// SourceKind distinguishes stream sources from polled web sources.
type SourceKind string

const (
	SourceStream SourceKind = "stream"
	SourceWeb    SourceKind = "web"
)

// ParseSourceKind validates a configured source kind string.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case SourceStream, SourceWeb:
		return SourceKind(s), nil
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}
