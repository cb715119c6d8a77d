// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	BotToken         string `toml:"bot_token"`
	AdminID          int64  `toml:"admin_id"`
	DownloadDir      string `toml:"download_dir"`
	DatabasePath     string `toml:"database_path"`
	RateLimit        int    `toml:"rate_limit"`     // requests per user per minute
	MaxConcurrent    int    `toml:"max_concurrent"` // simultaneous downloads
	LargeAPIEndpoint string `toml:"large_api_endpoint"`
	YtDlpPath        string `toml:"yt_dlp_path"`
	Debug            bool   `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DownloadDir:   "downloads",
		DatabasePath:  "grabbit.db",
		RateLimit:     5,
		MaxConcurrent: 4,
		Debug:         false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "grabbit"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "grabbit"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults. A missing file is
// not an error; the GRABBIT_BOT_TOKEN environment variable overrides the
// file's token either way.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		data, readErr := os.ReadFile(path)
		switch {
		case readErr == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case !os.IsNotExist(readErr):
			return nil, fmt.Errorf("reading config: %w", readErr)
		}
	}

	if token := os.Getenv("GRABBIT_BOT_TOKEN"); token != "" {
		cfg.BotToken = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate_limit must be at least 1, got %d", c.RateLimit)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	return nil
}
