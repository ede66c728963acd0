package importance

import "github.com/finradar/finradar/internal/models"

// typeRarity is the structural rarity prior per event type. Rare, heavy
// events (defaults, sanctions) stay interesting even when re-reported;
// routine disclosures (earnings, dividends) do not.
var typeRarity = map[models.EventType]float64{
	models.EventSanctions:    0.9,
	models.EventDefault:      0.95,
	models.EventIPO:          0.85,
	models.EventMA:           0.75,
	models.EventRateHike:     0.65,
	models.EventRateCut:      0.65,
	models.EventEarningsMiss: 0.4,
	models.EventEarningsBeat: 0.4,
	models.EventEarnings:     0.3,
	models.EventDividendCut:  0.3,
	models.EventBuyback:      0.3,
}

const defaultRarity = 0.5

func rarityOf(t models.EventType) float64 {
	if r, ok := typeRarity[t]; ok {
		return r
	}
	return defaultRarity
}

// highCredTypes are event types that are usually grounded in hard
// disclosures or official decisions rather than commentary.
var highCredTypes = map[models.EventType]bool{
	models.EventEarnings:     true,
	models.EventEarningsBeat: true,
	models.EventEarningsMiss: true,
	models.EventRateHike:     true,
	models.EventRateCut:      true,
	models.EventDefault:      true,
	models.EventMA:           true,
	models.EventIPO:          true,
}

// broadTypes affect whole markets or sectors regardless of how many
// companies the text happens to name.
var broadTypes = map[models.EventType]bool{
	models.EventSanctions:  true,
	models.EventRegulatory: true,
	models.EventMarketDrop: true,
	models.EventSectorDrop: true,
}
