// Package linker resolves free-text company mentions to MOEX-listed
// instruments through four tiers: direct ticker, alias table, live exchange
// search, and fuzzy matching over the security index.
package linker

import (
	"regexp"
	"strings"
)

// legal-form and generic words carry no identity and are stripped before
// matching.
var stopWords = map[string]bool{
	"компания": true, "группа": true, "холдинг": true, "корпорация": true,
	"банк": true, "company": true, "group": true, "holding": true,
	"corporation": true, "bank": true,
	"пао": true, "оао": true, "ооо": true, "ао": true, "зао": true,
	"нко": true, "нпф": true,
	"jsc": true, "pjsc": true, "llc": true, "ltd": true, "inc": true,
	"corp": true, "plc": true,
}

var (
	quoteChars  = strings.NewReplacer("«", "", "»", "", "\"", "", "'", "", "`", "", "„", "", "“", "", "”", "")
	dashSlashRe = regexp.MustCompile(`[-/]`)
	spaceRe     = regexp.MustCompile(`\s+`)

	// tickerRe matches explicit exchange tickers like GAZP or SBERP.
	tickerRe = regexp.MustCompile(`\b([A-Z]{4}[A-Z0-9]*)\b`)

	regulatorPhrases = []string{
		"цб", "цб рф", "центральный банк", "банк россии", "central bank",
		"минфин", "министерство финансов", "ministry of finance",
		"регулятор", "фас", "антимонопольная служба",
	}
)

// Normalize canonicalises a company mention for alias and fuzzy lookup:
// lowercase, quotes and separators stripped, legal-form stop-words dropped,
// whitespace collapsed.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = quoteChars.Replace(s)
	s = dashSlashRe.ReplaceAllString(s, " ")
	s = strings.TrimRight(s, ".")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !stopWords[strings.Trim(w, ".")] {
			kept = append(kept, w)
		}
	}
	s = strings.Join(kept, " ")
	return spaceRe.ReplaceAllString(s, " ")
}

// ExtractTicker returns an explicit ticker token from the mention, if any.
func ExtractTicker(mention string) string {
	m := tickerRe.FindString(mention)
	return m
}

// IsRegulator reports whether the mention names a regulatory body rather
// than a listed company. Regulators must never be linked to instruments.
// Phrases match against the raw lowercased name, not the normalised one:
// "банк" is a stop word, so "банк россии" would lose the very word that
// marks it before the comparison.
func IsRegulator(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	n = quoteChars.Replace(n)
	n = " " + spaceRe.ReplaceAllString(n, " ") + " "
	for _, phrase := range regulatorPhrases {
		// Word-boundary containment: "цб" must not match "цбк".
		if strings.Contains(n, " "+phrase+" ") {
			return true
		}
	}
	return false
}
