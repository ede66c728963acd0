// Package events converts records and their LLM extractions into typed
// events using a causal-marker lexicon.
package events

import (
	"regexp"
	"sort"
	"strings"

	"github.com/finradar/finradar/internal/models"
)

// markerLexicon maps event types to the textual markers that signal them.
// Russian is the primary corpus language; a small English set covers
// cross-posted wires.
var markerLexicon = map[models.EventType][]string{
	models.EventSanctions: {
		"санкции", "санкц", "ограничени", "запрет", "включить в список",
		"наложить штраф", "инициировать расследование",
		"sanctions", "embargo",
	},
	models.EventRateHike: {
		"ключевая ставка", "повысил ставку", "рост ставки", "повышение ставки",
		"цб повысил", "центральный банк повысил",
		"rate hike", "raised rate",
	},
	models.EventRateCut: {
		"снижение ставки", "снизил ставку", "понижение ставки",
		"ставка снижена", "снижена ставка",
	},
	models.EventEarnings: {
		"прибыль", "выручка", "отчетность", "финансовые результаты",
		"квартальная отчетность", "годовая отчетность",
		"earnings", "revenue",
	},
	models.EventEarningsMiss: {"убыток", "снижение прибыли", "падение прибыли"},
	models.EventEarningsBeat: {"рост прибыли", "увеличение прибыли", "рекордная прибыль"},
	models.EventGuidanceCut:  {"снизил прогноз", "ухудшил прогноз", "пересмотрел прогноз"},
	models.EventMA: {
		"слияние", "поглощение", "приобрет", "купил долю",
		"merger", "acquisition", "m&a", "takeover",
	},
	models.EventDefault:     {"дефолт", "банкротство", "невыплата", "технический дефолт"},
	models.EventDividendCut: {"сократил дивиденды", "снизил дивиденды", "отменил дивиденды"},
	models.EventBuyback:     {"обратный выкуп", "байбэк", "buyback"},
	models.EventIPO:         {"ipo", "первичное размещение"},
	models.EventRegulatory: {
		"регулятор", "регулирование", "законопроект",
		"постановление", "антимонопольн",
	},
	models.EventManagementChange: {
		"новый директор", "смена руководства", "ушел в отставку",
		"покинул пост", "сменил директор",
	},
	models.EventSupplyChain: {
		"цепочка поставок", "логистик", "перебои", "задержка поставок",
	},
	models.EventAccident: {"авария", "инцидент", "катастроф"},
	models.EventMarketDrop: {
		"рынок упал", "акции падают", "индекс снизился", "распродажа",
		"обвал рынка", "stocks fall",
	},
}

// typePriority orders detected types from most to least specific.
var typePriority = map[models.EventType]int{
	models.EventSanctions:    10,
	models.EventRateHike:     9,
	models.EventRateCut:      9,
	models.EventDefault:      9,
	models.EventEarningsMiss: 8,
	models.EventEarningsBeat: 8,
	models.EventMA:           8,
	models.EventIPO:          8,
	models.EventEarnings:     7,
}

var compiledMarkers = func() map[models.EventType]*regexp.Regexp {
	out := make(map[models.EventType]*regexp.Regexp, len(markerLexicon))
	for eventType, markers := range markerLexicon {
		escaped := make([]string, len(markers))
		for i, m := range markers {
			escaped[i] = regexp.QuoteMeta(m)
		}
		out[eventType] = regexp.MustCompile("(?i)" + strings.Join(escaped, "|"))
	}
	return out
}()

// maxTypesPerRecord bounds how many event types one record can yield.
const maxTypesPerRecord = 2

// DetectEventTypes scans text for markers and returns up to two types,
// most specific first.
func DetectEventTypes(text string) []models.EventType {
	var detected []models.EventType
	for eventType, pattern := range compiledMarkers {
		if pattern.MatchString(text) {
			detected = append(detected, eventType)
		}
	}

	sort.Slice(detected, func(i, j int) bool {
		pi, pj := typePriority[detected[i]], typePriority[detected[j]]
		if pi == 0 {
			pi = 5
		}
		if pj == 0 {
			pj = 5
		}
		if pi != pj {
			return pi > pj
		}
		return detected[i] < detected[j]
	})

	if len(detected) > maxTypesPerRecord {
		detected = detected[:maxTypesPerRecord]
	}
	return detected
}

// MarkerMatches counts how many markers of a type appear in text.
func MarkerMatches(eventType models.EventType, text string) int {
	pattern, ok := compiledMarkers[eventType]
	if !ok {
		return 0
	}
	return len(pattern.FindAllString(text, -1))
}
