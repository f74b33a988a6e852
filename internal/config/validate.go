package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks the configuration for errors. It collects ALL errors
// rather than stopping at the first one, returning them as a joined message.
func Validate(cfg *Config) error {
	var errs []string

	// ── Listen ──
	if cfg.Listen.Port < 1 || cfg.Listen.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listen.port must be 1-65535 (got %d)", cfg.Listen.Port))
	}

	// ── TLS files ──
	if (cfg.Listen.TLS.CertFile == "") != (cfg.Listen.TLS.KeyFile == "") {
		errs = append(errs, "listen.tls: cert_file and key_file must be set together")
	}
	if cfg.Listen.TLS.CertFile != "" {
		if _, err := os.Stat(cfg.Listen.TLS.CertFile); err != nil {
			errs = append(errs, fmt.Sprintf("listen.tls.cert_file: %v", err))
		}
	}
	if cfg.Listen.TLS.KeyFile != "" {
		if _, err := os.Stat(cfg.Listen.TLS.KeyFile); err != nil {
			errs = append(errs, fmt.Sprintf("listen.tls.key_file: %v", err))
		}
	}

	// ── Vault ──
	if cfg.Vault.Path == "" {
		errs = append(errs, "vault.path is required")
	}

	// ── Rate limit ──
	if cfg.Security.RateLimit.PerAgent < 1 {
		errs = append(errs, fmt.Sprintf("security.rate_limit.per_agent must be positive (got %d)", cfg.Security.RateLimit.PerAgent))
	}
	if cfg.Security.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Sprintf("security.rate_limit.burst must be positive (got %d)", cfg.Security.RateLimit.Burst))
	}

	// ── Grant ──
	if cfg.Security.Grant.Enabled {
		if cfg.Security.Grant.JWKFile == "" {
			errs = append(errs, "security.grant.jwk_file is required when grants are enabled")
		} else if _, err := os.Stat(cfg.Security.Grant.JWKFile); err != nil {
			errs = append(errs, fmt.Sprintf("security.grant.jwk_file: %v", err))
		}
		if cfg.Security.Grant.TTL.Duration <= 0 {
			errs = append(errs, "security.grant.ttl must be positive")
		}
	}

	// ── Logging ──
	if !isValidLogLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level))
	}
	if !isValidLogFormat(cfg.Logging.Format) {
		errs = append(errs, fmt.Sprintf("logging.format must be one of: json, text (got %q)", cfg.Logging.Format))
	}

	// ── Sampling rates ──
	if cfg.Logging.Audit.SamplingRate < 0 || cfg.Logging.Audit.SamplingRate > 1.0 {
		errs = append(errs, fmt.Sprintf("logging.audit.sampling_rate must be between 0.0 and 1.0 (got %f)", cfg.Logging.Audit.SamplingRate))
	}
	if cfg.Logging.Audit.DenySamplingRate < 0 || cfg.Logging.Audit.DenySamplingRate > 1.0 {
		errs = append(errs, fmt.Sprintf("logging.audit.deny_sampling_rate must be between 0.0 and 1.0 (got %f)", cfg.Logging.Audit.DenySamplingRate))
	}

	// ── Pending ──
	if cfg.Pending.SweepInterval.Duration < 0 {
		errs = append(errs, "pending.sweep_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isValidLogLevel(l string) bool {
	switch l {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidLogFormat(f string) bool {
	switch f {
	case "json", "text":
		return true
	}
	return false
}
