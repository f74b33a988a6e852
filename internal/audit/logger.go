// Package audit provides structured decision logging and Prometheus metrics
// for the factsentry decision engine. The authoritative audit ledger lives in
// the vault snapshot; this package is the observability mirror of it.
package audit

import (
	"context"
	"log/slog"

	"github.com/factsentry/factsentry/internal/vault"
)

// Logger emits one structured log line per terminal decision.
type Logger struct {
	slogger  *slog.Logger
	sampling SamplingConfig
}

// NewLogger creates a decision logger with the given sampling configuration.
func NewLogger(slogger *slog.Logger, sampling SamplingConfig) *Logger {
	return &Logger{slogger: slogger, sampling: sampling}
}

// LogEvent logs an audit ledger entry. Denials are sampled at the denial
// rate so they are never silently dropped under default configuration.
func (l *Logger) LogEvent(ctx context.Context, ev vault.AuditEvent) {
	if !l.sampling.ShouldLog(ev.Decision) {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_id", ev.ID),
		slog.Group("attributes",
			slog.String("vault.decision", string(ev.Decision)),
			slog.String("vault.agent", ev.AgentID),
			slog.String("vault.recipient", ev.RecipientDomain),
			slog.String("vault.purpose", ev.Purpose),
			slog.Int("vault.fields_released", len(ev.FieldsReleased)),
			slog.Time("vault.decided_at", ev.Timestamp),
		),
	}
	if ev.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", ev.RequestID))
	}

	l.slogger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
