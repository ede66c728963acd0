// Package watchers evaluates every new event against a three-level rule
// set. L0 rules fire on direct matches, L1 rules open follow-up watches
// on pattern roots, L2 rules generate event predictions from the causal
// neighborhood. Rules live in a YAML file and hot-reload on change.
package watchers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/finradar/finradar/internal/linker"
	"github.com/finradar/finradar/internal/models"
)

// defaultExpireHours is the auto-expiry applied to triggered watches
// when a rule does not set its own.
const defaultExpireHours = 168

// Condition gates a rule. Every non-empty field must hold for the rule
// to fire.
type Condition struct {
	EventTypes          []models.EventType `yaml:"event_types"`
	Companies           []string           `yaml:"companies"`
	Sectors             []string           `yaml:"sectors"`
	ImportanceThreshold float64            `yaml:"importance_threshold"`
	BurstThreshold      int                `yaml:"burst_threshold"`
}

// Rule is one watcher rule at any level.
type Rule struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Level       models.WatchLevel `yaml:"level"`
	Condition   Condition         `yaml:"condition"`
	Description string            `yaml:"description"`

	// L1 only: how long the follow-up watch monitors the cascade.
	FollowDays int `yaml:"follow_days"`

	// Hours until the triggered watch auto-expires; 0 takes the default.
	ExpireHours int `yaml:"expire_hours"`
}

// Matches reports whether the rule fires for the event given its
// importance total and the same-type burst count.
func (r *Rule) Matches(event *models.Event, importanceTotal float64, burstTotal int) bool {
	if len(r.Condition.EventTypes) > 0 && !containsType(r.Condition.EventTypes, event.Type) {
		return false
	}
	if importanceTotal < r.Condition.ImportanceThreshold {
		return false
	}
	if r.Condition.BurstThreshold > 1 && burstTotal < r.Condition.BurstThreshold {
		return false
	}
	if len(r.Condition.Companies) > 0 && !overlaps(r.Condition.Companies, event.Attrs.Companies) {
		return false
	}
	if len(r.Condition.Sectors) > 0 && !sectorsOverlap(r.Condition.Sectors, event.Attrs.Tickers) {
		return false
	}
	return true
}

func (r *Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule without id")
	}
	switch r.Level {
	case models.WatchL0, models.WatchL1, models.WatchL2:
	default:
		return fmt.Errorf("rule %s: unknown level %q", r.ID, r.Level)
	}
	for _, t := range r.Condition.EventTypes {
		if !t.Valid() {
			return fmt.Errorf("rule %s: unknown event type %q", r.ID, t)
		}
	}
	if r.Condition.ImportanceThreshold < 0 || r.Condition.ImportanceThreshold > 1 {
		return fmt.Errorf("rule %s: importance threshold out of range", r.ID)
	}
	return nil
}

func containsType(types []models.EventType, t models.EventType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func overlaps(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func sectorsOverlap(sectors, tickers []string) bool {
	for _, t := range tickers {
		s := linker.SectorForTicker(t)
		if s == "" {
			continue
		}
		for _, want := range sectors {
			if s == want {
				return true
			}
		}
	}
	return false
}

// RuleSet is an immutable snapshot of the active rules. The engine swaps
// whole snapshots on reload.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet validates and wraps rules.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		if err := rules[i].validate(); err != nil {
			return nil, err
		}
		if seen[rules[i].ID] {
			return nil, fmt.Errorf("duplicate rule id %s", rules[i].ID)
		}
		seen[rules[i].ID] = true
	}
	return &RuleSet{rules: rules}, nil
}

// Rules returns the snapshot's rules.
func (s *RuleSet) Rules() []Rule {
	return s.rules
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRuleFile reads a YAML rule file. The file fully replaces the
// defaults; an empty path yields the built-in rule set.
func LoadRuleFile(path string) (*RuleSet, error) {
	if path == "" {
		return NewRuleSet(DefaultRules())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule file %s declares no rules", path)
	}
	return NewRuleSet(file.Rules)
}

// DefaultRules is the built-in rule set, active when no rule file is
// configured.
func DefaultRules() []Rule {
	return []Rule{
		// L0: direct matches on high-impact event classes.
		{
			ID:    "critical_sanctions",
			Name:  "Critical sanctions",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventSanctions},
				Sectors:             []string{"banks", "energy", "oil_gas"},
				ImportanceThreshold: 0.8,
				BurstThreshold:      2,
			},
			Description: "New sanctions against banking or energy sector names",
		},
		{
			ID:    "default_events",
			Name:  "Corporate defaults",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventDefault},
				ImportanceThreshold: 0.9,
			},
			Description: "Default or bankruptcy announcements",
		},
		{
			ID:    "central_bank_rates",
			Name:  "Central bank policy",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventRateHike, models.EventRateCut},
				ImportanceThreshold: 0.7,
			},
			Description: "Key rate decisions",
		},
		{
			ID:    "major_earnings_surprises",
			Name:  "Major earnings surprises",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventEarningsMiss, models.EventEarningsBeat},
				Sectors:             []string{"banks", "oil_gas", "metals", "telecom"},
				ImportanceThreshold: 0.6,
				BurstThreshold:      3,
			},
			Description: "Large deviations from consensus in core sectors",
		},
		{
			ID:    "large_ma_deals",
			Name:  "Large M&A deals",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventMA},
				Sectors:             []string{"banks", "energy", "metals"},
				ImportanceThreshold: 0.8,
				BurstThreshold:      2,
			},
			Description: "Large mergers and acquisitions",
		},
		{
			ID:    "major_ipo_events",
			Name:  "Major IPOs",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventIPO},
				Sectors:             []string{"it", "banks", "energy"},
				ImportanceThreshold: 0.7,
			},
			Description: "Large initial public offerings",
		},
		{
			ID:    "major_accidents",
			Name:  "Major accidents",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventAccident},
				Sectors:             []string{"transport", "energy", "metals"},
				ImportanceThreshold: 0.9,
			},
			Description: "Serious accidents in strategic sectors",
		},
		{
			ID:    "macro_regulatory",
			Name:  "Macro regulation",
			Level: models.WatchL0,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventRegulatory},
				ImportanceThreshold: 0.8,
				BurstThreshold:      2,
			},
			Description: "Major regulatory or policy changes",
		},

		// L1: pattern roots that open a follow-up watch on the cascade.
		{
			ID:    "sanctions_market_pattern",
			Name:  "Sanctions to market pattern",
			Level: models.WatchL1,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventSanctions},
				ImportanceThreshold: 0.7,
			},
			Description: "Sanctions with follow-up market reaction monitoring",
			FollowDays:  7,
		},
		{
			ID:    "rate_hike_banking_pattern",
			Name:  "Rate hike to banking pattern",
			Level: models.WatchL1,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventRateHike},
				ImportanceThreshold: 0.6,
			},
			Description: "Rate hikes with follow-up banking sector monitoring",
			FollowDays:  5,
		},
		{
			ID:    "earnings_cascade_pattern",
			Name:  "Earnings cascade pattern",
			Level: models.WatchL1,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventEarningsMiss, models.EventEarningsBeat},
				Sectors:             []string{"banks", "oil_gas", "metals"},
				ImportanceThreshold: 0.5,
			},
			Description: "Earnings surprises that tend to cascade through a sector",
			FollowDays:  3,
		},
		{
			ID:    "regulatory_contagion_pattern",
			Name:  "Regulatory contagion pattern",
			Level: models.WatchL1,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventRegulatory},
				ImportanceThreshold: 0.7,
			},
			Description: "Regulation with follow-up contagion monitoring",
			FollowDays:  5,
		},

		// L2: predictive rules. Forecasts come from the follow-on table
		// keyed by the trigger's event type.
		{
			ID:    "sanctions_consequence_prediction",
			Name:  "Sanctions consequence forecast",
			Level: models.WatchL2,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventSanctions},
				ImportanceThreshold: 0.6,
			},
			Description: "Forecasts the market reaction to new sanctions",
		},
		{
			ID:    "rate_decision_reactions",
			Name:  "Rate decision reaction forecast",
			Level: models.WatchL2,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventRateHike, models.EventRateCut},
				ImportanceThreshold: 0.6,
			},
			Description: "Forecasts currency and banking reactions to rate moves",
		},
		{
			ID:    "default_cascade_prediction",
			Name:  "Default cascade forecast",
			Level: models.WatchL2,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventDefault},
				ImportanceThreshold: 0.6,
			},
			Description: "Forecasts cascading credit stress after a default",
		},
		{
			ID:    "regulatory_consequence_prediction",
			Name:  "Regulatory consequence forecast",
			Level: models.WatchL2,
			Condition: Condition{
				EventTypes:          []models.EventType{models.EventRegulatory},
				ImportanceThreshold: 0.7,
			},
			Description: "Forecasts sector pressure after major regulation",
		},
	}
}
