package linker

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// fuzzy-match acceptance threshold, normalised to [0,1].
const (
	fuzzyPrefilter = 0.8
	fuzzyThreshold = 0.7
	fuzzyPenalty   = 0.9
)

func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

// tokenSortRatio compares the strings with their words sorted, so word
// order does not matter.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// partialRatio slides the shorter string across the longer one and returns
// the best window ratio. Candidate names are short, so the quadratic scan
// is fine.
func partialRatio(a, b string) float64 {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return ratio(string(shorter), string(longer))
	}

	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if r := ratio(string(shorter), window); r > best {
			best = r
		}
	}
	return best
}

// CombinedSimilarity blends plain, token-sort and partial ratios. Returns 0
// when the token-sort prefilter does not reach 0.8.
func CombinedSimilarity(a, b string) float64 {
	ts := tokenSortRatio(a, b)
	if ts < fuzzyPrefilter {
		return 0
	}
	return ratio(a, b)*0.4 + ts*0.4 + partialRatio(a, b)*0.2
}
