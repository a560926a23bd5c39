// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Version  int            `toml:"version"`
	Log      LogConfig      `toml:"log"`
	Browser  BrowserConfig  `toml:"browser"`
	Download DownloadConfig `toml:"download"`
	Scrape   ScrapeConfig   `toml:"scrape"`
	Shield   ShieldConfig   `toml:"shield"`
	Resolver ResolverConfig `toml:"resolver"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

type BrowserConfig struct {
	Headless bool   `toml:"headless"`
	Origin   string `toml:"origin" validate:"required,url"`
}

type DownloadConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

type ScrapeConfig struct {
	CommentLimit int `toml:"comment_limit" validate:"gt=0"`
	WaitMinMs    int `toml:"wait_min_ms" validate:"gt=0"`
	WaitMaxMs    int `toml:"wait_max_ms" validate:"gtefield=WaitMinMs"`
}

type ShieldConfig struct {
	BaseURL            string `toml:"base_url" validate:"omitempty,url"`
	APIKey             string `toml:"api_key"`
	RefreshIntervalMin int    `toml:"refresh_interval_min" validate:"gt=0"`
}

type ResolverConfig struct {
	Endpoint string `toml:"endpoint" validate:"omitempty,url"`
	Token    string `toml:"token"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Version: 1,
		Log:     LogConfig{Level: "info"},
		Browser: BrowserConfig{
			Headless: true,
			Origin:   "https://x.com",
		},
		Download: DownloadConfig{
			Dir: filepath.Join(home, "Downloads", "xnote"),
		},
		Scrape: ScrapeConfig{
			CommentLimit: 100,
			WaitMinMs:    1500,
			WaitMaxMs:    2500,
		},
		Shield: ShieldConfig{
			RefreshIntervalMin: 30,
		},
	}
}

// Dir returns the platform-appropriate config directory.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xnote"), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads and validates config from disk.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	path, err := Path()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}
