package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Sources = []SourceConfig{
		{Code: "rbc", Kind: "web", TrustLevel: 7, Enabled: true, URL: "https://rbc.example/feed"},
		{Code: "tg-markets", Kind: "stream", TrustLevel: 8, Enabled: true, URL: "wss://tg.example/stream"},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"bad backend", func(c *Config) { c.Extraction.Backend = "gpu" }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"duplicate source", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }},
		{"bad source kind", func(c *Config) { c.Sources[0].Kind = "rss" }},
		{"trust out of range", func(c *Config) { c.Sources[0].TrustLevel = 11 }},
		{"unknown anchor type", func(c *Config) { c.AnchorEventTypes = []string{"moonshot"} }},
		{"zero retro cap", func(c *Config) { c.RetroScanCap = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	yamlContent := `
log_level: debug
batch_size: 10
sources:
  - code: rbc
    kind: web
    trust_level: 7
    enabled: true
    url: https://rbc.example/feed
    poll_interval: 2m
extraction:
  backend: local
watchers:
  auto_expire_hours: 72
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, "local", cfg.Extraction.Backend)
	assert.Equal(t, 72, cfg.Watchers.AutoExpireHours)
	// Defaults survive partial files.
	assert.Equal(t, "https://iss.moex.com/iss", cfg.Moex.BaseURL)
	assert.Equal(t, 100, cfg.RetroScanCap)

	sources := cfg.EnabledSources()
	require.Len(t, sources, 1)
	assert.Equal(t, 2*time.Minute, sources[0].PollInterval)
	assert.Equal(t, 100, sources[0].FetchLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestAnchorSet(t *testing.T) {
	cfg := validConfig()
	set := cfg.AnchorSet()
	assert.True(t, set["sanctions"])
	assert.True(t, set["m&a"])
	assert.False(t, set["buyback"])
}
