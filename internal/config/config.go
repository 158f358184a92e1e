// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	Manuscript string `json:"manuscript,omitempty"` // Path to manuscript text file
	Audit      string `json:"audit,omitempty"`      // Path to audit report JSON
	Output     string `json:"output,omitempty"`     // Path for the corrected manuscript

	// Behavior
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	PauseMs     int    `json:"pause_ms,omitempty"`     // Pause between generative calls, milliseconds
	AutoApprove bool   `json:"auto_approve,omitempty"` // Apply all proposed corrections without review
	Verbose     bool   `json:"verbose,omitempty"`      // Print detailed debug information

	// Server
	Port int `json:"port,omitempty"` // HTTP server port
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.PauseMs < 0 {
		return fmt.Errorf("config error: 'pause_ms' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid port number")
	}

	// Validate file paths exist (if specified)
	if c.Manuscript != "" {
		if _, err := os.Stat(c.Manuscript); os.IsNotExist(err) {
			return fmt.Errorf("config error: manuscript file not found: %s", c.Manuscript)
		}
	}
	if c.Audit != "" {
		if _, err := os.Stat(c.Audit); os.IsNotExist(err) {
			return fmt.Errorf("config error: audit file not found: %s", c.Audit)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Manuscript == "" {
		result.Manuscript = defaults.Manuscript
	}
	if result.Audit == "" {
		result.Audit = defaults.Audit
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.PauseMs == 0 {
		result.PauseMs = defaults.PauseMs
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
