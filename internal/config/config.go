// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure consumed by the agent
// wiring: default model, per-provider API keys, trust level, and optional
// prompt and memory paths.
type Config struct {
	DefaultModel string            `toml:"default_model"`
	APIKeys      map[string]string `toml:"api_keys"`
	TrustLevel   int               `toml:"trust_level"`
	PromptDir    string            `toml:"prompt_dir"`
	MemoryPath   string            `toml:"memory_path"`
}

// minTrustLevel/maxTrustLevel bound the trust_level field.
const (
	minTrustLevel = 1
	maxTrustLevel = 4

	// bashTrustThreshold is the minimum trust_level at which the Bash tool
	// is registered with the dispatcher at all.
	bashTrustThreshold = 2
)

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		APIKeys: make(map[string]string),
	}

	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.DefaultModel == "" {
		errs = append(errs, errors.New("default_model is required"))
	}
	if c.TrustLevel == 0 {
		c.TrustLevel = minTrustLevel
	}
	if c.TrustLevel < minTrustLevel || c.TrustLevel > maxTrustLevel {
		errs = append(errs, fmt.Errorf("trust_level=%d must be between %d and %d", c.TrustLevel, minTrustLevel, maxTrustLevel))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// BashAllowed reports whether the configured trust level permits
// registering the Bash tool with the dispatcher at all. This is
// independent of the dangerous-command blacklist a registered Bash tool
// still enforces.
func (c *Config) BashAllowed() bool {
	return c.TrustLevel >= bashTrustThreshold
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KANATA_MEMORY_PATH"); v != "" {
		cfg.MemoryPath = v
	}
	if v := os.Getenv("KANATA_PROMPT_DIR"); v != "" {
		cfg.PromptDir = v
	}
}

// DataDir returns the path to the kanata data directory (~/.config/kanata).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kanata"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}
