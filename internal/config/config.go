// Package config handles YAML configuration parsing, defaults, and validation
// for the factsentry vault gateway.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for factsentry.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Vault    VaultConfig    `yaml:"vault"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pending  PendingConfig  `yaml:"pending"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Reload   ReloadConfig   `yaml:"reload"`
}

// ListenConfig defines the listener address and TLS settings.
type ListenConfig struct {
	Host string    `yaml:"host"`
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// TLSConfig holds optional TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// VaultConfig locates the vault snapshot file on disk.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig is the top-level security configuration.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Grant     GrantConfig     `yaml:"grant"`
}

// RateLimitConfig defines per-agent request rate limiting.
type RateLimitConfig struct {
	Enabled         bool     `yaml:"enabled"`
	PerAgent        int      `yaml:"per_agent"` // requests per minute
	Burst           int      `yaml:"burst"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// GrantConfig controls signed release grants. When enabled, every allow
// decision carries a JWS token binding the agent, fields, and expiry.
type GrantConfig struct {
	Enabled bool     `yaml:"enabled"`
	JWKFile string   `yaml:"jwk_file"`
	TTL     Duration `yaml:"ttl"`
}

// LoggingConfig defines log output format and decision log sampling.
type LoggingConfig struct {
	Level  string      `yaml:"level"`
	Format string      `yaml:"format"`
	Output string      `yaml:"output"`
	Audit  AuditConfig `yaml:"audit"`
}

// AuditConfig controls decision log sampling rates. The vault ledger is
// always written in full; sampling applies to the log mirror only.
type AuditConfig struct {
	SamplingRate     float64 `yaml:"sampling_rate"`
	DenySamplingRate float64 `yaml:"deny_sampling_rate"`
}

// PendingConfig controls background expiry of unanswered approval challenges.
type PendingConfig struct {
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ShutdownConfig defines the graceful shutdown timeout.
type ShutdownConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// ReloadConfig controls config hot-reload behavior (SIGHUP and file watching).
type ReloadConfig struct {
	Enabled   bool     `yaml:"enabled"`
	WatchFile bool     `yaml:"watch_file"`
	Debounce  Duration `yaml:"debounce"`
}

// Duration is a time.Duration that supports YAML string parsing (e.g., "60s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration, parsing strings like "60s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load reads, parses, applies defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
