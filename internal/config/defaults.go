package config

import "time"

// ApplyDefaults fills zero-valued fields with their defaults.
// It is called after YAML parsing and before validation.
func ApplyDefaults(cfg *Config) {
	// ── Listen ──
	// The gateway guards personal data, so it binds to loopback by default.
	if cfg.Listen.Host == "" {
		cfg.Listen.Host = "127.0.0.1"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 8080
	}

	// ── Vault ──
	if cfg.Vault.Path == "" {
		cfg.Vault.Path = "vault.json"
	}

	// ── Security: Rate Limit ──
	applyRateLimitDefaults(&cfg.Security.RateLimit)

	// ── Security: Grant ──
	// grant.enabled defaults to false (zero value); grants require a key.
	if cfg.Security.Grant.TTL.Duration == 0 {
		cfg.Security.Grant.TTL.Duration = 10 * time.Minute
	}

	// ── Logging ──
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	applyAuditDefaults(&cfg.Logging.Audit)

	// ── Pending ──
	if cfg.Pending.SweepInterval.Duration == 0 {
		cfg.Pending.SweepInterval.Duration = time.Minute
	}

	// ── Shutdown ──
	if cfg.Shutdown.Timeout.Duration == 0 {
		cfg.Shutdown.Timeout.Duration = 30 * time.Second
	}

	// ── Reload ──
	applyReloadDefaults(&cfg.Reload)
}

func applyRateLimitDefaults(rl *RateLimitConfig) {
	// enabled defaults to true. Since the bool zero value is false and we
	// cannot distinguish "explicitly set to false" from "not set", the
	// default applies only when the whole block is zero-valued. Users must
	// set enabled: false alongside any other rate_limit key to disable.
	if !rl.Enabled && rl.PerAgent == 0 && rl.Burst == 0 && rl.CleanupInterval.Duration == 0 {
		rl.Enabled = true
	}
	if rl.PerAgent == 0 {
		rl.PerAgent = 120
	}
	if rl.Burst == 0 {
		rl.Burst = 30
	}
	if rl.CleanupInterval.Duration == 0 {
		rl.CleanupInterval.Duration = 5 * time.Minute
	}
}

func applyAuditDefaults(a *AuditConfig) {
	if a.SamplingRate == 0 {
		a.SamplingRate = 1.0
	}
	if a.DenySamplingRate == 0 {
		a.DenySamplingRate = 1.0
	}
}

func applyReloadDefaults(r *ReloadConfig) {
	// enabled and watch_file default to true, same zero-value block
	// consideration as rate_limit.enabled.
	if !r.Enabled && !r.WatchFile && r.Debounce.Duration == 0 {
		r.Enabled = true
		r.WatchFile = true
	}
	if r.Debounce.Duration == 0 {
		r.Debounce.Duration = 2 * time.Second
	}
}
