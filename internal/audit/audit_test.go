package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/factsentry/factsentry/internal/vault"
)

func testEvent(decision vault.AuditDecision) vault.AuditEvent {
	return vault.AuditEvent{
		ID:              "aud_test",
		RequestID:       "req_test",
		AgentID:         "agent_shopper",
		RecipientDomain: "nordstrom.com",
		Purpose:         "shopping/find_item",
		Decision:        decision,
		FieldsReleased:  []string{"apparel.pants.waist"},
		Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLoggerEmitsStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)), SamplingConfig{Rate: 1.0, DenyRate: 1.0})

	l.LogEvent(context.Background(), testEvent(vault.DecisionAllow))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if line["audit_id"] != "aud_test" {
		t.Errorf("audit_id = %v", line["audit_id"])
	}
	if line["request_id"] != "req_test" {
		t.Errorf("request_id = %v", line["request_id"])
	}
	attrs, ok := line["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("missing attributes group: %v", line)
	}
	if attrs["vault.decision"] != "allow" {
		t.Errorf("vault.decision = %v", attrs["vault.decision"])
	}
	if attrs["vault.fields_released"] != float64(1) {
		t.Errorf("vault.fields_released = %v", attrs["vault.fields_released"])
	}
}

func TestLoggerOmitsEmptyRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)), SamplingConfig{Rate: 1.0, DenyRate: 1.0})

	ev := testEvent(vault.DecisionAllow)
	ev.RequestID = ""
	l.LogEvent(context.Background(), ev)

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("log line carries empty request_id: %s", buf.String())
	}
}

func TestSamplingRates(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SamplingConfig
		decision vault.AuditDecision
		want     bool
	}{
		{"full rate logs allows", SamplingConfig{Rate: 1.0, DenyRate: 1.0}, vault.DecisionAllow, true},
		{"zero rate drops allows", SamplingConfig{Rate: 0, DenyRate: 1.0}, vault.DecisionAllow, false},
		{"zero rate drops approvals", SamplingConfig{Rate: 0, DenyRate: 1.0}, vault.DecisionAskApproved, false},
		{"deny rate keeps denials", SamplingConfig{Rate: 0, DenyRate: 1.0}, vault.DecisionDeny, true},
		{"deny rate keeps ask denials", SamplingConfig{Rate: 0, DenyRate: 1.0}, vault.DecisionAskDenied, true},
		{"zero deny rate drops denials", SamplingConfig{Rate: 1.0, DenyRate: 0}, vault.DecisionDeny, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Rates of exactly 0 and 1 are deterministic.
			if got := tt.cfg.ShouldLog(tt.decision); got != tt.want {
				t.Errorf("ShouldLog(%q) = %v, want %v", tt.decision, got, tt.want)
			}
		})
	}
}

func TestSamplingGatesLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)), SamplingConfig{Rate: 0, DenyRate: 1.0})

	l.LogEvent(context.Background(), testEvent(vault.DecisionAllow))
	if buf.Len() != 0 {
		t.Errorf("sampled-out decision was logged: %s", buf.String())
	}

	l.LogEvent(context.Background(), testEvent(vault.DecisionDeny))
	if buf.Len() == 0 {
		t.Error("denial was dropped despite full deny rate")
	}
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision("allow")
	m.RecordDecision("allow")
	m.RecordDecision("deny")
	m.SetPendingApprovals(3)
	m.RecordApprovalLatency(42 * time.Second)
	m.RecordScheduledCheck("allow")
	m.RecordVaultSave(true)
	m.RecordVaultSave(false)
	m.RecordRequest("/v1/context", 200)
	m.RecordRequestDuration("/v1/context", 15*time.Millisecond)
	m.RecordRateLimitHit()
	m.SetBuildInfo("1.0.0", "go1.26")

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	wants := []string{
		`factsentry_decisions_total{decision="allow"} 2`,
		`factsentry_decisions_total{decision="deny"} 1`,
		`factsentry_pending_approvals 3`,
		`factsentry_scheduled_checks_total{result="allow"} 1`,
		`factsentry_vault_saves_total{result="success"} 1`,
		`factsentry_vault_saves_total{result="failure"} 1`,
		`factsentry_requests_total{endpoint="/v1/context",status="200"} 1`,
		`factsentry_rate_limit_hits_total 1`,
		`factsentry_build_info{go_version="go1.26",version="1.0.0"} 1`,
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsIsolatedRegistry(t *testing.T) {
	// Two collectors must not collide; each uses its own registry.
	a := NewMetrics()
	b := NewMetrics()
	a.RecordDecision("allow")

	rec := httptest.NewRecorder()
	b.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), `factsentry_decisions_total{decision="allow"} 1`) {
		t.Error("registry state leaked between collectors")
	}
}
