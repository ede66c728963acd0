package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/finradar/finradar/internal/events"
	"github.com/finradar/finradar/internal/linker"
	"github.com/finradar/finradar/internal/models"
)

var cyrillicRe = regexp.MustCompile(`\p{Cyrillic}`)

// companyNameRe catches capitalised phrases that often name companies.
// Deliberately loose; the linker filters false positives downstream.
var companyNameRe = regexp.MustCompile(`\b([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁа-яё][а-яё]+)?|[A-Z][a-z]{2,}(?:\s+[A-Z][a-z]+)?)\b`)

// LocalClient is the deterministic fallback backend: marker-lexicon event
// tagging plus pattern-based company and ticker capture. No network calls.
type LocalClient struct{}

// NewLocalClient builds the local extraction client.
func NewLocalClient() *LocalClient { return &LocalClient{} }

// Name implements Client.
func (c *LocalClient) Name() string { return "local" }

// ExtractBatch implements Client. Always length-preserving, never fails.
func (c *LocalClient) ExtractBatch(_ context.Context, inputs []Input) ([]models.Extraction, error) {
	out := make([]models.Extraction, len(inputs))
	for i, in := range inputs {
		out[i] = c.extractOne(in.Text)
	}
	return out, nil
}

func (c *LocalClient) extractOne(text string) models.Extraction {
	var ext models.Extraction

	for _, et := range events.DetectEventTypes(strings.ToLower(text)) {
		ext.EventTypes = append(ext.EventTypes, string(et))
	}

	seen := make(map[string]bool)
	if ticker := linker.ExtractTicker(text); ticker != "" {
		ext.Companies = append(ext.Companies, models.CompanyMention{Name: ticker, Ticker: ticker})
		seen[ticker] = true
	}
	for _, m := range companyNameRe.FindAllString(text, 10) {
		normalized := linker.Normalize(m)
		if normalized == "" || linker.IsRegulator(m) {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		ext.Companies = append(ext.Companies, models.CompanyMention{Name: m})
	}

	if cyrillicRe.MatchString(text) {
		ext.Language = "ru"
	} else {
		ext.Language = "en"
	}

	if len(ext.EventTypes) > 0 {
		ext.Confidence = 0.6
		ext.Urgency = "normal"
	}
	return ext
}
