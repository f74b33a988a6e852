package config

import "reflect"

// Change describes a single configuration field that differs between two configs.
type Change struct {
	Field      string      // dot-separated field path (e.g., "security.rate_limit.per_agent")
	OldValue   interface{} // previous value
	NewValue   interface{} // new value
	Reloadable bool        // whether this change can be applied without restart
}

// Diff compares two Config values and returns a list of changes.
// Each change is annotated with whether it is reloadable at runtime.
func Diff(old, new *Config) []Change {
	var changes []Change

	// ── Non-reloadable: listen ──
	diffField(&changes, "listen.host", old.Listen.Host, new.Listen.Host, false)
	diffField(&changes, "listen.port", old.Listen.Port, new.Listen.Port, false)
	diffField(&changes, "listen.tls.cert_file", old.Listen.TLS.CertFile, new.Listen.TLS.CertFile, false)
	diffField(&changes, "listen.tls.key_file", old.Listen.TLS.KeyFile, new.Listen.TLS.KeyFile, false)

	// ── Non-reloadable: vault path (the store holds an open handle on it) ──
	diffField(&changes, "vault.path", old.Vault.Path, new.Vault.Path, false)

	// ── Reloadable: security.rate_limit ──
	diffField(&changes, "security.rate_limit.enabled", old.Security.RateLimit.Enabled, new.Security.RateLimit.Enabled, true)
	diffField(&changes, "security.rate_limit.per_agent", old.Security.RateLimit.PerAgent, new.Security.RateLimit.PerAgent, true)
	diffField(&changes, "security.rate_limit.burst", old.Security.RateLimit.Burst, new.Security.RateLimit.Burst, true)
	diffField(&changes, "security.rate_limit.cleanup_interval", old.Security.RateLimit.CleanupInterval.Duration, new.Security.RateLimit.CleanupInterval.Duration, true)

	// ── Reloadable: security.grant ──
	diffField(&changes, "security.grant.enabled", old.Security.Grant.Enabled, new.Security.Grant.Enabled, true)
	diffField(&changes, "security.grant.jwk_file", old.Security.Grant.JWKFile, new.Security.Grant.JWKFile, true)
	diffField(&changes, "security.grant.ttl", old.Security.Grant.TTL.Duration, new.Security.Grant.TTL.Duration, true)

	// ── Reloadable: logging ──
	diffField(&changes, "logging.level", old.Logging.Level, new.Logging.Level, true)
	diffField(&changes, "logging.format", old.Logging.Format, new.Logging.Format, true)
	diffField(&changes, "logging.audit.sampling_rate", old.Logging.Audit.SamplingRate, new.Logging.Audit.SamplingRate, true)
	diffField(&changes, "logging.audit.deny_sampling_rate", old.Logging.Audit.DenySamplingRate, new.Logging.Audit.DenySamplingRate, true)

	// ── Reloadable: pending sweep ──
	diffField(&changes, "pending.sweep_interval", old.Pending.SweepInterval.Duration, new.Pending.SweepInterval.Duration, true)

	// ── Non-reloadable: shutdown, reload ──
	diffField(&changes, "shutdown.timeout", old.Shutdown.Timeout.Duration, new.Shutdown.Timeout.Duration, false)
	diffField(&changes, "reload.watch_file", old.Reload.WatchFile, new.Reload.WatchFile, false)
	diffField(&changes, "reload.debounce", old.Reload.Debounce.Duration, new.Reload.Debounce.Duration, false)

	return changes
}

// diffField appends a Change if old != new using reflect.DeepEqual for comparison.
func diffField(changes *[]Change, field string, oldVal, newVal interface{}, reloadable bool) {
	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, Change{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Reloadable: reloadable,
		})
	}
}
