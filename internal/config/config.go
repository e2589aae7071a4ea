// Package config provides configuration loading for profiled.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/profiled/internal/extract"
	"github.com/fyrsmithlabs/profiled/internal/logging"
)

// Config is the full runtime configuration.
type Config struct {
	Logging    logging.Config        `koanf:"logging"`
	Storage    StorageConfig         `koanf:"storage"`
	Extraction ExtractionConfig      `koanf:"extraction"`
	Service    extract.ServiceConfig `koanf:"service"`
}

// StorageConfig locates the conversation log store.
type StorageConfig struct {
	// Dir is the directory holding one log file per session.
	Dir string `koanf:"dir"`
}

// ExtractionConfig tunes the extraction strategy chain.
type ExtractionConfig struct {
	MinConfidence float64 `koanf:"min_confidence"`
}

// ExtractConfig assembles the extraction package's config.
func (c *Config) ExtractConfig() extract.Config {
	return extract.Config{
		MinConfidence: c.Extraction.MinConfidence,
		Service:       c.Service,
	}
}

// DefaultConfigPath returns ~/.config/profiled/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "profiled", "config.yaml"), nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Storage.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Storage.Dir = filepath.Join(home, ".local", "share", "profiled", "conversations")
		} else {
			cfg.Storage.Dir = "conversations"
		}
	}

	if cfg.Extraction.MinConfidence == 0 {
		cfg.Extraction.MinConfidence = 0.6
	}

	if cfg.Service.Timeout == 0 {
		cfg.Service.Timeout = 5 * time.Second
	}
	if cfg.Service.MaxRetries == 0 {
		cfg.Service.MaxRetries = 1
	}
	if cfg.Service.RateLimit == 0 {
		cfg.Service.RateLimit = 5
	}
	if cfg.Service.Burst == 0 {
		cfg.Service.Burst = 10
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir is required")
	}
	if c.Extraction.MinConfidence <= 0 || c.Extraction.MinConfidence > 1 {
		return fmt.Errorf("extraction min_confidence must be in (0,1], got %v", c.Extraction.MinConfidence)
	}
	if c.Service.Timeout < 0 {
		return fmt.Errorf("service timeout must not be negative")
	}
	if c.Service.MaxRetries < 0 {
		return fmt.Errorf("service max_retries must not be negative")
	}
	return nil
}
