package engine

import (
	"time"

	"github.com/factsentry/factsentry/internal/errors"
	"github.com/factsentry/factsentry/internal/vault"
)

// Purpose describes why an agent wants the data.
type Purpose struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Detail   string `json:"detail,omitempty"`
}

// Recipient identifies where released data would go.
type Recipient struct {
	Type  string `json:"type"` // e.g. "domain"
	Value string `json:"value"`
}

// ContextRequest is a fully-typed, boundary-validated ask-request. The
// decision core never sees raw payloads.
type ContextRequest struct {
	AgentID         string    `json:"agent_id"`
	Purpose         Purpose   `json:"purpose"`
	Recipient       Recipient `json:"recipient"`
	PersonaHint     string    `json:"persona,omitempty"`
	FieldsRequested []string  `json:"fields_requested"`
}

// Validate checks the request for the fields the decision core requires.
func (r *ContextRequest) Validate() error {
	if r.AgentID == "" || r.Purpose.Category == "" || r.Purpose.Action == "" || r.Recipient.Value == "" {
		return errors.ErrInvalidRequest
	}
	return nil
}

// ResolveRequest resolves a pending challenge one way or the other.
type ResolveRequest struct {
	RequestID string `json:"request_id"`
	Approve   bool   `json:"approve"`
}

// Validate checks the resolution request.
func (r *ResolveRequest) Validate() error {
	if r.RequestID == "" {
		return errors.ErrInvalidRequest
	}
	return nil
}

// ScheduledRequest is a non-interactive trigger from a registered source.
type ScheduledRequest struct {
	SourceID        string            `json:"source_id"`
	RequestType     vault.TriggerKind `json:"request_type"`
	RecipientDomain string            `json:"recipient_domain"`
	PurposeCategory string            `json:"purpose_category"`
	PurposeAction   string            `json:"purpose_action"`
	Persona         string            `json:"persona,omitempty"`
	FieldsRequested []string          `json:"fields_requested"`
}

// Validate checks the scheduled request.
func (r *ScheduledRequest) Validate() error {
	if r.SourceID == "" || r.RecipientDomain == "" || r.PurposeCategory == "" || r.PurposeAction == "" {
		return errors.ErrInvalidRequest
	}
	switch r.RequestType {
	case vault.TriggerHeartbeat, vault.TriggerCron:
		return nil
	default:
		return errors.ErrInvalidRequest
	}
}

// Outcome classifies a decision result.
type Outcome string

// Decision outcomes.
const (
	OutcomeAllow  Outcome = "allow"
	OutcomeAsk    Outcome = "ask"
	OutcomeDeny   Outcome = "deny"
	OutcomeNoData Outcome = "no_data"
)

// Decision is the engine's typed result for any request. Exactly which
// fields are populated depends on the outcome: allow carries released facts,
// TTL, audit id, and possibly a suggested rule; ask carries the challenge;
// deny carries an audit id; no_data carries only the reason.
type Decision struct {
	Outcome       Outcome           `json:"outcome"`
	Reason        string            `json:"reason,omitempty"`
	AuditID       string            `json:"audit_id,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	ReleasedFacts []vault.Fact      `json:"released_facts,omitempty"`
	TTL           time.Duration     `json:"-"`
	Challenge     *Challenge        `json:"challenge,omitempty"`
	SuggestedRule *vault.PolicyRule `json:"suggested_rule,omitempty"`
}
