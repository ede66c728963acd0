// Package ceg implements causal inference over the event graph: domain
// priors, textual causality markers, evidence collection between linked
// events, and chain discovery by graph traversal.
package ceg

import (
	"time"

	"github.com/finradar/finradar/internal/models"
)

// DomainPrior is one cause → effect rule with its expected direction,
// lag range and base confidence.
type DomainPrior struct {
	CauseType   models.EventType
	EffectType  models.EventType
	Sign        models.Sign
	ExpectedLag models.LagClass
	ConfPrior   float64
}

// domainPriors holds the causal rules of the domain. The table is data,
// not code: extending it is a release, not a runtime change.
var domainPriors = []DomainPrior{
	{models.EventSanctions, models.EventMarketDrop, models.SignNegative, models.Lag0To1d, 0.75},
	{models.EventRateHike, models.EventRubAppreciation, models.SignPositive, models.Lag1hTo1d, 0.65},
	{models.EventRateHike, models.EventBankStockUp, models.SignPositive, models.Lag0To3d, 0.60},
	{models.EventRateCut, models.EventRubDepreciation, models.SignNegative, models.Lag1hTo1d, 0.60},
	{models.EventEarningsBeat, models.EventStockRally, models.SignPositive, models.Lag0To1d, 0.70},
	{models.EventEarningsMiss, models.EventStockDrop, models.SignNegative, models.Lag0To1d, 0.75},
	{models.EventGuidanceCut, models.EventStockDrop, models.SignNegative, models.Lag0To1d, 0.70},
	{models.EventMA, models.EventStockRally, models.SignPositive, models.Lag0To1d, 0.80},
	{models.EventDefault, models.EventBondCrash, models.SignNegative, models.Lag0To1h, 0.90},
	{models.EventDividendCut, models.EventStockDrop, models.SignNegative, models.Lag0To1d, 0.65},
	{models.EventBuyback, models.EventStockRally, models.SignPositive, models.Lag0To3d, 0.60},
	{models.EventRegulatory, models.EventSectorDrop, models.SignNegative, models.Lag1To7d, 0.55},
	{models.EventSupplyChain, models.EventProductionDown, models.SignNegative, models.Lag1To4w, 0.50},
	{models.EventAccident, models.EventStockDrop, models.SignNegative, models.Lag0To1d, 0.65},
	{models.EventManagementChange, models.EventStockVolatility, models.SignBoth, models.Lag0To3d, 0.45},
}

// findPrior looks up the prior for a (cause, effect) pair. An exact pair
// match wins. Failing that, among the rules for the cause type, the first
// one whose lag range contains delta is taken, then the first rule for the
// cause type at all. The returned bool reports whether anything matched.
func findPrior(cause, effect models.EventType, delta time.Duration) (DomainPrior, bool) {
	var fallback *DomainPrior
	var lagMatch *DomainPrior
	for i := range domainPriors {
		p := &domainPriors[i]
		if p.CauseType != cause {
			continue
		}
		if p.EffectType == effect {
			return *p, true
		}
		if lagMatch == nil && p.ExpectedLag.Contains(delta) {
			lagMatch = p
		}
		if fallback == nil {
			fallback = p
		}
	}
	if lagMatch != nil {
		return *lagMatch, true
	}
	if fallback != nil {
		return *fallback, true
	}
	return DomainPrior{}, false
}
