package models

// Extraction is the structured output of the LLM for a single record. An
// empty Extraction with zero confidence is a valid result and must never be
// omitted from a batch response.
type Extraction struct {
	People           []Person          `json:"people"`
	Companies        []CompanyMention  `json:"companies"`
	Markets          []MarketMention   `json:"markets"`
	FinancialMetrics []FinancialMetric `json:"financial_metrics"`
	EventTypes       []string          `json:"event_types"`
	IsAdvertisement  bool              `json:"is_advertisement"`
	ContentTypes     []string          `json:"content_types"`
	Language         string            `json:"language"`
	Urgency          string            `json:"urgency"`
	Confidence       float64           `json:"confidence"`
}

// Person is a person mention with optional role context.
type Person struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Company  string `json:"company,omitempty"`
}

// CompanyMention is a free-text company reference with optional hints.
type CompanyMention struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker,omitempty"`
	Sector string `json:"sector,omitempty"`
}

// MarketMention is an index, currency or commodity reference.
type MarketMention struct {
	Name   string  `json:"name"`
	Type   string  `json:"type,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Change float64 `json:"change,omitempty"`
}

// FinancialMetric is a numeric fact tied to a company.
type FinancialMetric struct {
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	Company    string  `json:"company,omitempty"`
}

// Empty reports whether the extraction carries no usable signal.
func (e *Extraction) Empty() bool {
	return len(e.Companies) == 0 && len(e.People) == 0 &&
		len(e.Markets) == 0 && len(e.FinancialMetrics) == 0 &&
		len(e.EventTypes) == 0
}
