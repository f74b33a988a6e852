package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "vault:\n  path: /tmp/vault.json\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Host != "127.0.0.1" {
		t.Errorf("listen.host = %q, want loopback default", cfg.Listen.Host)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("listen.port = %d", cfg.Listen.Port)
	}
	if cfg.Vault.Path != "/tmp/vault.json" {
		t.Errorf("vault.path = %q", cfg.Vault.Path)
	}
	if !cfg.Security.RateLimit.Enabled {
		t.Error("rate limiting should default on")
	}
	if cfg.Security.RateLimit.PerAgent != 120 || cfg.Security.RateLimit.Burst != 30 {
		t.Errorf("rate limit defaults = %d/%d", cfg.Security.RateLimit.PerAgent, cfg.Security.RateLimit.Burst)
	}
	if cfg.Security.Grant.Enabled {
		t.Error("grants should default off")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Logging.Audit.SamplingRate != 1.0 || cfg.Logging.Audit.DenySamplingRate != 1.0 {
		t.Errorf("sampling defaults = %f/%f", cfg.Logging.Audit.SamplingRate, cfg.Logging.Audit.DenySamplingRate)
	}
	if cfg.Pending.SweepInterval.Duration != time.Minute {
		t.Errorf("sweep interval = %v", cfg.Pending.SweepInterval.Duration)
	}
	if cfg.Shutdown.Timeout.Duration != 30*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Shutdown.Timeout.Duration)
	}
	if !cfg.Reload.Enabled || !cfg.Reload.WatchFile {
		t.Error("reload should default on with file watching")
	}
	if cfg.Reload.Debounce.Duration != 2*time.Second {
		t.Errorf("reload debounce = %v", cfg.Reload.Debounce.Duration)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
vault:
  path: vault.json
security:
  rate_limit:
    enabled: true
    per_agent: 60
    burst: 10
    cleanup_interval: 90s
pending:
  sweep_interval: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.RateLimit.CleanupInterval.Duration != 90*time.Second {
		t.Errorf("cleanup_interval = %v", cfg.Security.RateLimit.CleanupInterval.Duration)
	}
	if cfg.Pending.SweepInterval.Duration != 30*time.Second {
		t.Errorf("sweep_interval = %v", cfg.Pending.SweepInterval.Duration)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "pending:\n  sweep_interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparsable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRateLimitExplicitDisable(t *testing.T) {
	path := writeConfig(t, `
vault:
  path: vault.json
security:
  rate_limit:
    enabled: false
    per_agent: 60
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.RateLimit.Enabled {
		t.Error("explicit enabled: false was overridden")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Listen.Port = 0
	cfg.Vault.Path = ""
	cfg.Logging.Level = "loud"
	cfg.Logging.Audit.SamplingRate = 2.0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"listen.port", "vault.path", "logging.level", "sampling_rate"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateGrantRequiresKey(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Security.Grant.Enabled = true

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "grant.jwk_file") {
		t.Errorf("error = %v, want jwk_file complaint", err)
	}
}

func TestValidateTLSPair(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Listen.TLS.CertFile = "/nonexistent/cert.pem"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "must be set together") {
		t.Errorf("error = %v, want paired TLS complaint", err)
	}
}

func TestDiffAnnotatesReloadability(t *testing.T) {
	old := &Config{}
	ApplyDefaults(old)
	newCfg := &Config{}
	ApplyDefaults(newCfg)

	newCfg.Listen.Port = 9090                // restart required
	newCfg.Security.RateLimit.PerAgent = 240 // reloadable
	newCfg.Logging.Audit.SamplingRate = 0.5  // reloadable

	changes := Diff(old, newCfg)
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3: %+v", len(changes), changes)
	}

	byField := make(map[string]Change, len(changes))
	for _, c := range changes {
		byField[c.Field] = c
	}
	if c := byField["listen.port"]; c.Reloadable {
		t.Error("listen.port flagged reloadable")
	}
	if c := byField["security.rate_limit.per_agent"]; !c.Reloadable {
		t.Error("rate_limit.per_agent flagged non-reloadable")
	}
	if c := byField["logging.audit.sampling_rate"]; !c.Reloadable {
		t.Error("sampling_rate flagged non-reloadable")
	}
}

func TestDiffNoChanges(t *testing.T) {
	a := &Config{}
	ApplyDefaults(a)
	b := &Config{}
	ApplyDefaults(b)
	if changes := Diff(a, b); len(changes) != 0 {
		t.Errorf("identical configs diff: %+v", changes)
	}
}
