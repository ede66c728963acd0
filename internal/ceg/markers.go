package ceg

import "strings"

// causalMarker is a phrase that signals explicit textual causality, with
// the confidence it carries when present.
type causalMarker struct {
	phrase string
	weight float64
}

// causalMarkers covers Russian and English causality phrasing. Weights
// grade from vague temporal ordering ("после") to explicit attribution
// ("привело к").
var causalMarkers = []causalMarker{
	{"из-за", 0.8},
	{"в результате", 0.8},
	{"вследствие", 0.8},
	{"в связи с", 0.7},
	{"на фоне", 0.6},
	{"после", 0.5},
	{"привело к", 0.9},
	{"вызвало", 0.9},
	{"стало причиной", 0.9},
	{"повлекло", 0.8},
	{"спровоцировало", 0.8},
	{"следствие", 0.7},
	{"due to", 0.8},
	{"because of", 0.8},
	{"as a result of", 0.8},
	{"caused by", 0.9},
	{"led to", 0.9},
	{"resulted in", 0.8},
}

// TextConfidence returns the weight of the strongest causal marker found
// in text, or 0 when none match.
func TextConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	var best float64
	for _, m := range causalMarkers {
		if m.weight > best && strings.Contains(lower, m.phrase) {
			best = m.weight
		}
	}
	return best
}
