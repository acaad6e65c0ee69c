// Package config provides configuration management for falconeye.
// It defines the configuration structure and default values shared by all commands.
package config

import (
	"strings"
	"time"

	"github.com/masahif/falconeye/internal/export"
	"github.com/masahif/falconeye/internal/extract"
	"github.com/masahif/falconeye/internal/fetch"
)

// Config holds falconeye configuration
type Config struct {
	// HTTP parameters
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Page fetch / asset response timeout
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header

	// Extraction
	VideoProviders []string `mapstructure:"video_providers" yaml:"video_providers"` // Iframe src markers treated as video
	Workers        int      `mapstructure:"workers" yaml:"workers"`                 // Parallel asset downloads (1 = sequential)

	// Output
	OutputPath string `mapstructure:"output" yaml:"output"` // Save results here instead of printing
	Format     string `mapstructure:"format" yaml:"format"` // csv or json

	// Run journal
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite journal, empty disables it

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat string `mapstructure:"log_format" yaml:"log_format"` // json or text
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`     // append diagnostics here instead of stderr
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout: fetch.DefaultTimeout,
		UserAgent:      fetch.DefaultUserAgent,
		VideoProviders: append([]string(nil), extract.DefaultVideoProviders...),
		Workers:        1,
		Format:         string(export.CSV),
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if _, err := export.ParseFormat(c.Format); err != nil {
		return ErrInvalidFormat
	}

	for _, p := range c.VideoProviders {
		if strings.TrimSpace(p) == "" {
			return ErrEmptyVideoProvider
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}
