// Package vault defines the persisted data model for a personal-data vault:
// personas with facts, standing and scheduled policy rules, pending approvals,
// and the append-only audit ledger. The decision engine reads a Snapshot,
// mutates it in memory, and hands it back; the Store owns persistence.
package vault

import (
	"time"
)

// Sensitivity classifies how readily a fact may be released.
type Sensitivity string

// Sensitivity levels, ordered low < medium < high.
const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Rank returns the ordering rank of a sensitivity level.
// Unknown values rank as high (fail-closed).
func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityLow:
		return 1
	case SensitivityMedium:
		return 2
	case SensitivityHigh:
		return 3
	default:
		return 3
	}
}

// MaxSensitivity returns the highest sensitivity among the given facts,
// or SensitivityLow for an empty slice.
func MaxSensitivity(facts []Fact) Sensitivity {
	max := SensitivityLow
	for _, f := range facts {
		if f.Sensitivity.Rank() > max.Rank() {
			max = f.Sensitivity
		}
	}
	return max
}

// Fact is a single piece of personal data. Keys are dotted and hierarchical;
// legacy aliases fold into one canonical key via the taxonomy package.
// Facts are immutable once read by the engine.
type Fact struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Confidence  float64     `json:"confidence"`
}

// AutoReleaseMode is a per-persona override of the global posture.
type AutoReleaseMode string

// Per-persona auto-release modes.
const (
	ReleaseFollowPosture AutoReleaseMode = "follow_posture"
	ReleaseAlwaysAsk     AutoReleaseMode = "always_ask"
	ReleaseAutoLow       AutoReleaseMode = "auto_low"
)

// PersonaSettings carries optional per-persona behavior overrides.
type PersonaSettings struct {
	// Visible defaults to true when absent. A persona with visible=false is
	// never matched for release; lookups surface it only as hidden.
	Visible       *bool           `json:"visible,omitempty"`
	AutoRelease   AutoReleaseMode `json:"auto_release,omitempty"`
	RetentionDays int             `json:"retention_days,omitempty"`
}

// Persona is a named bundle of facts representing one facet of the user.
type Persona struct {
	Name     string           `json:"name"`
	Facts    []Fact           `json:"facts"`
	Settings *PersonaSettings `json:"settings,omitempty"`
}

// Visible reports whether the persona may be matched for release purposes.
func (p *Persona) Visible() bool {
	if p.Settings == nil || p.Settings.Visible == nil {
		return true
	}
	return *p.Settings.Visible
}

// AutoRelease returns the persona's auto-release mode, defaulting to
// follow_posture when unset.
func (p *Persona) AutoRelease() AutoReleaseMode {
	if p.Settings == nil || p.Settings.AutoRelease == "" {
		return ReleaseFollowPosture
	}
	return p.Settings.AutoRelease
}

// PolicyRule is a standing, scoped exception that can auto-allow a specific
// recipient/purpose/field combination up to a sensitivity ceiling.
type PolicyRule struct {
	ID              string      `json:"id"`
	RecipientDomain string      `json:"recipient_domain"`
	PurposeCategory string      `json:"purpose_category"`
	PurposeAction   string      `json:"purpose_action"`
	MaxSensitivity  Sensitivity `json:"max_sensitivity"`
	AllowedFields   []string    `json:"allowed_fields,omitempty"`
	ExpiresAt       string      `json:"expires_at"`
	Enabled         bool        `json:"enabled"`
}

// Active reports whether the rule is enabled and not expired at now.
// ExpiresAt must parse as RFC 3339 and lie strictly in the future; an empty
// or unparseable value is treated as already expired, never as "never
// expires" (fail-closed).
func (r *PolicyRule) Active(now time.Time) bool {
	if !r.Enabled {
		return false
	}
	exp, err := time.Parse(time.RFC3339, r.ExpiresAt)
	if err != nil {
		return false
	}
	return exp.After(now)
}

// TriggerKind identifies the non-interactive trigger a scheduled rule serves.
type TriggerKind string

// Scheduled trigger kinds.
const (
	TriggerHeartbeat TriggerKind = "heartbeat"
	TriggerCron      TriggerKind = "cron"
)

// TimeWindow restricts a scheduled rule to a span of the day, hour:minute
// granularity, inclusive bounds. Windows with From > To wrap past midnight.
type TimeWindow struct {
	From string `json:"from"` // "HH:MM"
	To   string `json:"to"`   // "HH:MM"
}

// ScheduledRule extends PolicyRule for non-interactive triggers (periodic
// heartbeats, cron-like windows) from a specific source.
type ScheduledRule struct {
	PolicyRule

	SourceID    string      `json:"source_id"`
	RequestType TriggerKind `json:"request_type"`
	Window      *TimeWindow `json:"time_window,omitempty"`
	// CronExpr optionally gates cron-triggered rules on a cron expression
	// being due at evaluation time.
	CronExpr string `json:"cron_expr,omitempty"`
}

// ApprovalStatus is the lifecycle state of a pending approval.
type ApprovalStatus string

// Approval lifecycle states. Expiry is not a stored state: a pending entry
// whose ExpiresAtMs has passed is treated as expired at lookup time.
const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusDenied   ApprovalStatus = "denied"
)

// RequestInfo captures the context request that created a pending approval.
type RequestInfo struct {
	AgentID         string   `json:"agent_id"`
	PurposeCategory string   `json:"purpose_category"`
	PurposeAction   string   `json:"purpose_action"`
	PurposeDetail   string   `json:"purpose_detail,omitempty"`
	RecipientDomain string   `json:"recipient_domain"`
	Persona         string   `json:"persona"`
	Fields          []string `json:"fields"`
}

// PendingApproval tracks one approval challenge from creation to resolution.
// Exactly one of approve, deny, or wall-clock expiry terminates it; a
// terminal entry can never transition again.
type PendingApproval struct {
	ID           string         `json:"id"`
	CreatedAtMs  int64          `json:"created_at_ms"`
	ExpiresAtMs  int64          `json:"expires_at_ms"`
	Status       ApprovalStatus `json:"status"`
	ResolvedAtMs int64          `json:"resolved_at_ms,omitempty"`
	Request      RequestInfo    `json:"request"`
	MatchedFacts []Fact         `json:"matched_facts"`
}

// Expired reports whether the approval has aged out at the given instant.
// The boundary is strict: an entry is live at exactly ExpiresAtMs.
func (p *PendingApproval) Expired(nowMs int64) bool {
	return nowMs > p.ExpiresAtMs
}

// AuditDecision is the terminal decision recorded in the audit ledger.
type AuditDecision string

// Audit ledger decisions.
const (
	DecisionAllow       AuditDecision = "allow"
	DecisionDeny        AuditDecision = "deny"
	DecisionAskApproved AuditDecision = "ask_approved"
	DecisionAskDenied   AuditDecision = "ask_denied"
)

// AuditEvent is one append-only ledger entry. FieldsReleased is empty for
// every denial.
type AuditEvent struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	RequestID       string        `json:"request_id"`
	AgentID         string        `json:"agent_id"`
	Decision        AuditDecision `json:"decision"`
	RecipientDomain string        `json:"recipient_domain"`
	Purpose         string        `json:"purpose"`
	FieldsReleased  []string      `json:"fields_released"`
}

// defaultContextTTLMinutes applies when settings omit context_ttl_minutes.
const defaultContextTTLMinutes = 10

// Settings are vault-wide knobs consulted by the decision engine.
type Settings struct {
	Posture string `json:"posture"`
	// ContextTTLMinutes controls how long released facts stay valid.
	// nil means the 10-minute default; an explicit 0 means never expire.
	ContextTTLMinutes *int     `json:"context_ttl_minutes,omitempty"`
	DefaultPersona    string   `json:"default_persona,omitempty"`
	BlockedRecipients []string `json:"blocked_recipients,omitempty"`
}

// ContextTTL returns the release TTL. Zero means unlimited.
func (s *Settings) ContextTTL() time.Duration {
	if s.ContextTTLMinutes == nil {
		return defaultContextTTLMinutes * time.Minute
	}
	return time.Duration(*s.ContextTTLMinutes) * time.Minute
}

// RecipientBlocked reports whether the recipient is on the refuse-outright list.
func (s *Settings) RecipientBlocked(domain string) bool {
	for _, b := range s.BlockedRecipients {
		if b == domain {
			return true
		}
	}
	return false
}

// Snapshot is the full vault state the engine operates on. The engine is
// logically single-writer per vault: each decision cycle reads one Snapshot,
// mutates it, and the Store persists it under a lock.
type Snapshot struct {
	Personas       []Persona       `json:"personas"`
	Rules          []PolicyRule    `json:"rules,omitempty"`
	ScheduledRules []ScheduledRule `json:"scheduled_rules,omitempty"`
	Settings       Settings        `json:"settings"`
	Pending        []PendingApproval `json:"pending,omitempty"`
	Audit          []AuditEvent    `json:"audit,omitempty"`
}

// Persona returns the named persona, or nil if absent.
func (s *Snapshot) Persona(name string) *Persona {
	for i := range s.Personas {
		if s.Personas[i].Name == name {
			return &s.Personas[i]
		}
	}
	return nil
}

// FindPending returns the index of the pending approval with the given id
// whose status is still pending, or -1.
func (s *Snapshot) FindPending(id string) int {
	for i := range s.Pending {
		if s.Pending[i].ID == id && s.Pending[i].Status == StatusPending {
			return i
		}
	}
	return -1
}

// RemovePending deletes the pending entry at index i, preserving order.
func (s *Snapshot) RemovePending(i int) {
	s.Pending = append(s.Pending[:i], s.Pending[i+1:]...)
}

// AppendAudit appends an event to the ledger. Entries are never mutated or
// removed afterwards.
func (s *Snapshot) AppendAudit(ev AuditEvent) {
	s.Audit = append(s.Audit, ev)
}

// AuditTail returns the last n ledger entries (all of them when n <= 0 or
// exceeds the ledger length).
func (s *Snapshot) AuditTail(n int) []AuditEvent {
	if n <= 0 || n >= len(s.Audit) {
		return s.Audit
	}
	return s.Audit[len(s.Audit)-n:]
}
