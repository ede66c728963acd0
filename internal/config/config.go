// Package config loads and validates the pipeline configuration from a
// single YAML file.
package config

import (
	"fmt"
	"time"

	"github.com/finradar/finradar/internal/models"
)

// ConfigError indicates an invalid or missing configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// SourceConfig declares one ingestion endpoint.
type SourceConfig struct {
	Code         string        `koanf:"code"`
	Kind         string        `koanf:"kind"`
	TrustLevel   int           `koanf:"trust_level"`
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url"`
	FetchLimit   int           `koanf:"fetch_limit"`
	PollInterval time.Duration `koanf:"poll_interval"`
	LookbackDays int           `koanf:"lookback_days"`
}

// ExtractionConfig selects and tunes the LLM extraction backend.
type ExtractionConfig struct {
	Backend   string        `koanf:"backend"` // "remote" or "local"
	Model     string        `koanf:"model"`
	APIKeyEnv string        `koanf:"api_key_env"`
	Timeout   time.Duration `koanf:"timeout"`
	CacheSize int           `koanf:"cache_size"`
}

// GraphConfig points at the FalkorDB graph store.
type GraphConfig struct {
	Address   string        `koanf:"address"`
	GraphName string        `koanf:"graph_name"`
	Timeout   time.Duration `koanf:"timeout"`
}

// StorageConfig points at the relational store and cache.
type StorageConfig struct {
	PostgresDSN string `koanf:"postgres_dsn"`
	RedisAddr   string `koanf:"redis_addr"`
}

// MoexConfig tunes the MOEX ISS client.
type MoexConfig struct {
	BaseURL       string        `koanf:"base_url"`
	SearchTimeout time.Duration `koanf:"search_timeout"`
	DataTimeout   time.Duration `koanf:"data_timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// WatcherConfig locates the watcher rule file and tunes expiry.
type WatcherConfig struct {
	RulesFile       string        `koanf:"rules_file"`
	AutoExpireHours int           `koanf:"auto_expire_hours"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
	WebhookURL      string        `koanf:"webhook_url"`
}

// TracingConfig enables OTLP span export.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	TLSCAPath   string `koanf:"tls_ca_path"`
	TLSInsecure bool   `koanf:"tls_insecure"`
}

// Config is the root configuration.
type Config struct {
	LogLevel         string            `koanf:"log_level"`
	PackageLogLevels map[string]string `koanf:"package_log_levels"`

	Sources    []SourceConfig   `koanf:"sources"`
	BatchSize  int              `koanf:"batch_size"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Graph      GraphConfig      `koanf:"graph"`
	Storage    StorageConfig    `koanf:"storage"`
	Moex       MoexConfig       `koanf:"moex"`
	Watchers   WatcherConfig    `koanf:"watchers"`
	Tracing    TracingConfig    `koanf:"tracing"`

	// AnchorEventTypes overrides the default anchor set.
	AnchorEventTypes []string `koanf:"anchor_event_types"`

	LearnedAliasFile string `koanf:"learned_alias_file"`
	LookbackDays     int    `koanf:"lookback_days"`
	RetroScanCap     int    `koanf:"retro_scan_cap"`
	MetricsAddr      string `koanf:"metrics_addr"`
}

// Default returns a configuration with all tunables at their documented
// defaults. Sources and endpoints must still come from the config file.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		BatchSize: 20,
		Extraction: ExtractionConfig{
			Backend:   "remote",
			Model:     "claude-sonnet-4-20250514",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Timeout:   60 * time.Second,
			CacheSize: 1024,
		},
		Graph: GraphConfig{
			Address:   "localhost:6379",
			GraphName: "ceg",
			Timeout:   10 * time.Second,
		},
		Moex: MoexConfig{
			BaseURL:       "https://iss.moex.com/iss",
			SearchTimeout: 30 * time.Second,
			DataTimeout:   30 * time.Second,
			RatePerSecond: 5,
		},
		Watchers: WatcherConfig{
			AutoExpireHours: 168,
			SweepInterval:   time.Hour,
		},
		AnchorEventTypes: []string{
			"sanctions", "rate_hike", "rate_cut", "default", "m&a",
			"earnings_beat", "earnings_miss",
		},
		LearnedAliasFile: "data/learned_aliases.json",
		LookbackDays:     30,
		RetroScanCap:     100,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "batch_size", Message: "must be positive"}
	}
	if c.Extraction.Backend != "remote" && c.Extraction.Backend != "local" {
		return &ConfigError{Field: "extraction.backend", Message: "must be remote or local"}
	}
	if c.Graph.Address == "" {
		return &ConfigError{Field: "graph.address", Message: "must not be empty"}
	}
	if len(c.Sources) == 0 {
		return &ConfigError{Field: "sources", Message: "at least one source required"}
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, sc := range c.Sources {
		src := sc.ToModel()
		if err := src.Validate(); err != nil {
			return &ConfigError{Field: "sources", Message: err.Error()}
		}
		if seen[sc.Code] {
			return &ConfigError{Field: "sources", Message: fmt.Sprintf("duplicate source code %q", sc.Code)}
		}
		seen[sc.Code] = true
	}
	for _, at := range c.AnchorEventTypes {
		if !models.EventType(at).Valid() {
			return &ConfigError{Field: "anchor_event_types", Message: fmt.Sprintf("unknown event type %q", at)}
		}
	}
	if c.RetroScanCap <= 0 {
		return &ConfigError{Field: "retro_scan_cap", Message: "must be positive"}
	}
	return nil
}

// ToModel converts a source declaration into the runtime model.
func (sc SourceConfig) ToModel() models.Source {
	limit := sc.FetchLimit
	if limit <= 0 {
		limit = 100
	}
	interval := sc.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return models.Source{
		Code:         sc.Code,
		Kind:         models.SourceKind(sc.Kind),
		TrustLevel:   sc.TrustLevel,
		Enabled:      sc.Enabled,
		URL:          sc.URL,
		FetchLimit:   limit,
		PollInterval: interval,
		LookbackDays: sc.LookbackDays,
	}
}

// EnabledSources returns the runtime models of all enabled sources.
func (c *Config) EnabledSources() []models.Source {
	var out []models.Source
	for _, sc := range c.Sources {
		if sc.Enabled {
			out = append(out, sc.ToModel())
		}
	}
	return out
}

// AnchorSet returns the configured anchor types as a lookup set.
func (c *Config) AnchorSet() map[models.EventType]bool {
	set := make(map[models.EventType]bool, len(c.AnchorEventTypes))
	for _, at := range c.AnchorEventTypes {
		set[models.EventType(at)] = true
	}
	return set
}
