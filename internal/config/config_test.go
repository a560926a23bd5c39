package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "https://x.com", cfg.Browser.Origin)
	assert.Equal(t, 100, cfg.Scrape.CommentLimit)
	assert.Equal(t, 1500, cfg.Scrape.WaitMinMs)
	assert.Equal(t, 2500, cfg.Scrape.WaitMaxMs)
	assert.Equal(t, 30, cfg.Shield.RefreshIntervalMin)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"missing origin", func(c *Config) { c.Browser.Origin = "" }},
		{"origin not a url", func(c *Config) { c.Browser.Origin = "not a url" }},
		{"missing download dir", func(c *Config) { c.Download.Dir = "" }},
		{"zero comment limit", func(c *Config) { c.Scrape.CommentLimit = 0 }},
		{"wait bounds inverted", func(c *Config) { c.Scrape.WaitMinMs = 3000 }},
		{"shield base url invalid", func(c *Config) { c.Shield.BaseURL = "::bad" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_OptionalShieldBackend(t *testing.T) {
	cfg := Default()
	cfg.Shield.BaseURL = "https://shield.example.com"
	cfg.Shield.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}
