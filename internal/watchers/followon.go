package watchers

import "github.com/finradar/finradar/internal/models"

// FollowOn is one likely consequence of a trigger event type: what to
// expect, the base probability, and how many days out.
type FollowOn struct {
	Type        models.EventType
	Probability float64
	WindowDays  int
}

// followOnTable enumerates likely consequences per trigger type. Slow
// cascades (sanctions, regulation) use the 0.7/0.4/0.3 ladder over
// 7/14/30 days; direct market reactions use 0.6/0.5/0.3 over 3/7/14.
var followOnTable = map[models.EventType][]FollowOn{
	models.EventSanctions: {
		{models.EventSectorDrop, 0.7, 7},
		{models.EventMarketDrop, 0.4, 14},
		{models.EventRubDepreciation, 0.3, 30},
	},
	models.EventRegulatory: {
		{models.EventSectorDrop, 0.7, 7},
		{models.EventStockVolatility, 0.4, 14},
		{models.EventMarketDrop, 0.3, 30},
	},
	models.EventRateHike: {
		{models.EventRubAppreciation, 0.6, 3},
		{models.EventBankStockUp, 0.5, 7},
		{models.EventStockVolatility, 0.3, 14},
	},
	models.EventRateCut: {
		{models.EventRubDepreciation, 0.6, 3},
		{models.EventStockRally, 0.5, 7},
		{models.EventStockVolatility, 0.3, 14},
	},
	models.EventDefault: {
		{models.EventBondCrash, 0.6, 3},
		{models.EventStockDrop, 0.5, 7},
		{models.EventSectorDrop, 0.3, 14},
	},
	models.EventEarningsMiss: {
		{models.EventStockDrop, 0.6, 3},
		{models.EventStockVolatility, 0.3, 14},
	},
	models.EventEarningsBeat: {
		{models.EventStockRally, 0.6, 3},
	},
	models.EventGuidanceCut: {
		{models.EventStockDrop, 0.6, 3},
	},
	models.EventDividendCut: {
		{models.EventStockDrop, 0.6, 3},
	},
	models.EventMA: {
		{models.EventStockRally, 0.6, 3},
		{models.EventStockVolatility, 0.3, 14},
	},
	models.EventAccident: {
		{models.EventStockDrop, 0.6, 3},
		{models.EventProductionDown, 0.5, 7},
	},
	models.EventSupplyChain: {
		{models.EventProductionDown, 0.5, 7},
		{models.EventStockDrop, 0.3, 14},
	},
	models.EventIPO: {
		{models.EventStockVolatility, 0.5, 7},
	},
}

// FollowOnsFor returns the follow-on expectations for a trigger type.
func FollowOnsFor(t models.EventType) []FollowOn {
	return followOnTable[t]
}
