// Package engine orchestrates release decisions: it matches facts against a
// request, consults the posture, rules, and persona overrides, runs the
// ask/approve/deny/expire lifecycle, and appends audit events. All methods
// are snapshot-in/snapshot-out: they mutate the passed vault.Snapshot (the
// pending queue and the audit ledger) and the caller persists it. The engine
// itself never performs I/O.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/factsentry/factsentry/internal/errors"
	"github.com/factsentry/factsentry/internal/match"
	"github.com/factsentry/factsentry/internal/policy"
	"github.com/factsentry/factsentry/internal/taxonomy"
	"github.com/factsentry/factsentry/internal/vault"
)

// approvalWindow is how long an approval challenge stays resolvable.
const approvalWindow = 15 * time.Minute

// suggestedRuleLifetime is the expiry horizon on suggested-rule hints.
const suggestedRuleLifetime = 30 * 24 * time.Hour

// Engine evaluates context requests against a vault snapshot. Read-only
// evaluation is side-effect free; mutating calls (Ask, Resolve,
// AskScheduled) must be serialized per vault by the caller.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine. A nil logger is replaced with slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Ask evaluates a context request: auto-allow, challenge, refuse, or report
// no data. Auto-allows and outright refusals append an audit event; a
// challenge only creates a pending approval (the audit entry is written when
// the challenge resolves), and no_data writes nothing at all.
func (e *Engine) Ask(snap *vault.Snapshot, req ContextRequest, now time.Time) Decision {
	fields := taxonomy.NormalizeAll(req.FieldsRequested)

	if snap.Settings.RecipientBlocked(req.Recipient.Value) {
		auditID := e.appendAudit(snap, now, "", vault.DecisionDeny, req, nil)
		e.logDecision("deny", req, "recipient blocked", auditID)
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  "recipient is blocked",
			AuditID: auditID,
		}
	}

	personaName := req.PersonaHint
	if personaName == "" {
		personaName = snap.Settings.DefaultPersona
	}
	if personaName == "" {
		personaName = "default"
	}

	persona := snap.Persona(personaName)
	if persona == nil {
		return Decision{Outcome: OutcomeNoData, Reason: "persona not found"}
	}
	if !persona.Visible() {
		// Hidden personas surface only as hidden, never by content.
		return Decision{Outcome: OutcomeNoData, Reason: "persona is hidden"}
	}

	facts := match.Facts(persona, fields)
	if len(facts) == 0 {
		return Decision{Outcome: OutcomeNoData, Reason: "no fields matched"}
	}

	verdict := policy.CheckAutoAllow(snap, policy.Query{
		RecipientDomain: req.Recipient.Value,
		PurposeCategory: req.Purpose.Category,
		PurposeAction:   req.Purpose.Action,
		Facts:           facts,
		Override:        persona.AutoRelease(),
		Now:             now,
	})

	if verdict.Allow {
		auditID := e.appendAudit(snap, now, "", vault.DecisionAllow, req, match.Keys(facts))
		e.logDecision("allow", req, verdict.Reason, auditID)

		d := Decision{
			Outcome:       OutcomeAllow,
			Reason:        verdict.Reason,
			AuditID:       auditID,
			ReleasedFacts: facts,
			TTL:           snap.Settings.ContextTTL(),
		}
		// When the posture default carried the decision, hint at a standing
		// rule the user could persist to keep this pairing frictionless.
		if verdict.RuleID == "" {
			d.SuggestedRule = e.suggestRule(req, facts, now)
		}
		return d
	}

	pending := vault.PendingApproval{
		ID:          newRequestID(),
		CreatedAtMs: now.UnixMilli(),
		ExpiresAtMs: now.Add(approvalWindow).UnixMilli(),
		Status:      vault.StatusPending,
		Request: vault.RequestInfo{
			AgentID:         req.AgentID,
			PurposeCategory: req.Purpose.Category,
			PurposeAction:   req.Purpose.Action,
			PurposeDetail:   req.Purpose.Detail,
			RecipientDomain: req.Recipient.Value,
			Persona:         persona.Name,
			Fields:          fields,
		},
		MatchedFacts: facts,
	}
	snap.Pending = append(snap.Pending, pending)

	e.logger.Info("approval challenge created",
		"request_id", pending.ID,
		"agent", req.AgentID,
		"recipient", req.Recipient.Value,
		"purpose", req.Purpose.Category+"/"+req.Purpose.Action,
		"fields", len(facts),
	)

	return Decision{
		Outcome:   OutcomeAsk,
		Reason:    verdict.Reason,
		RequestID: pending.ID,
		Challenge: buildChallenge(&pending),
	}
}

// Resolve approves or denies a pending challenge. Resolving an unknown,
// already-resolved, or aged-out id is an error, never a no-op: the state
// machine forbids re-entering a terminal state. Aged-out entries found
// during lookup are pruned from the pending index.
func (e *Engine) Resolve(snap *vault.Snapshot, req ResolveRequest, now time.Time) (Decision, error) {
	idx := snap.FindPending(req.RequestID)
	if idx < 0 {
		return Decision{}, errors.ErrRequestExpired
	}

	entry := &snap.Pending[idx]
	if entry.Expired(now.UnixMilli()) {
		snap.RemovePending(idx)
		return Decision{}, errors.ErrRequestExpired
	}

	request := toContextRequest(entry.Request)
	facts := entry.MatchedFacts

	if !req.Approve {
		entry.Status = vault.StatusDenied
		entry.ResolvedAtMs = now.UnixMilli()
		auditID := e.appendAudit(snap, now, entry.ID, vault.DecisionAskDenied, request, nil)
		snap.RemovePending(idx)
		e.logDecision("ask_denied", request, "user denied challenge", auditID)
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  "challenge denied",
			AuditID: auditID,
		}, nil
	}

	entry.Status = vault.StatusApproved
	entry.ResolvedAtMs = now.UnixMilli()
	auditID := e.appendAudit(snap, now, entry.ID, vault.DecisionAskApproved, request, match.Keys(facts))
	snap.RemovePending(idx)
	e.logDecision("ask_approved", request, "user approved challenge", auditID)

	return Decision{
		Outcome:       OutcomeAllow,
		Reason:        "challenge approved",
		AuditID:       auditID,
		ReleasedFacts: facts,
		TTL:           snap.Settings.ContextTTL(),
	}, nil
}

// AskScheduled evaluates a non-interactive trigger (heartbeat or cron).
// With no user present to answer a challenge, the outcome is allow or deny,
// and both are audited.
func (e *Engine) AskScheduled(snap *vault.Snapshot, req ScheduledRequest, now time.Time) Decision {
	fields := taxonomy.NormalizeAll(req.FieldsRequested)

	personaName := req.Persona
	if personaName == "" {
		personaName = snap.Settings.DefaultPersona
	}
	if personaName == "" {
		personaName = "default"
	}

	persona := snap.Persona(personaName)
	if persona == nil || !persona.Visible() {
		return Decision{Outcome: OutcomeNoData, Reason: "persona not found"}
	}

	facts := match.Facts(persona, fields)
	if len(facts) == 0 {
		return Decision{Outcome: OutcomeNoData, Reason: "no fields matched"}
	}

	ctxReq := ContextRequest{
		AgentID:         req.SourceID,
		Purpose:         Purpose{Category: req.PurposeCategory, Action: req.PurposeAction},
		Recipient:       Recipient{Type: "domain", Value: req.RecipientDomain},
		FieldsRequested: fields,
	}

	verdict := policy.CheckScheduledAllow(snap, policy.ScheduledQuery{
		SourceID:        req.SourceID,
		RequestType:     req.RequestType,
		RecipientDomain: req.RecipientDomain,
		PurposeCategory: req.PurposeCategory,
		PurposeAction:   req.PurposeAction,
		Facts:           facts,
		Now:             now,
	})

	if !verdict.Allow {
		auditID := e.appendAudit(snap, now, "", vault.DecisionDeny, ctxReq, nil)
		e.logDecision("deny", ctxReq, verdict.Reason, auditID)
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  verdict.Reason,
			AuditID: auditID,
		}
	}

	auditID := e.appendAudit(snap, now, "", vault.DecisionAllow, ctxReq, match.Keys(facts))
	e.logDecision("allow", ctxReq, verdict.Reason, auditID)
	return Decision{
		Outcome:       OutcomeAllow,
		Reason:        verdict.Reason,
		AuditID:       auditID,
		ReleasedFacts: facts,
		TTL:           snap.Settings.ContextTTL(),
	}
}

// PrunePending drops aged-out entries from the pending index and returns how
// many were removed. Listing endpoints call this so callers never see
// challenges that can no longer be resolved.
func (e *Engine) PrunePending(snap *vault.Snapshot, now time.Time) int {
	nowMs := now.UnixMilli()
	kept := snap.Pending[:0]
	removed := 0
	for _, p := range snap.Pending {
		if p.Status == vault.StatusPending && p.Expired(nowMs) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	snap.Pending = kept
	return removed
}

// appendAudit writes one ledger entry for a terminal decision and returns
// its id. fieldsReleased must be nil for every denial.
func (e *Engine) appendAudit(snap *vault.Snapshot, now time.Time, requestID string, decision vault.AuditDecision, req ContextRequest, fieldsReleased []string) string {
	if fieldsReleased == nil {
		fieldsReleased = []string{}
	}
	ev := vault.AuditEvent{
		ID:              newAuditID(),
		Timestamp:       now,
		RequestID:       requestID,
		AgentID:         req.AgentID,
		Decision:        decision,
		RecipientDomain: req.Recipient.Value,
		Purpose:         req.Purpose.Category + "/" + req.Purpose.Action,
		FieldsReleased:  fieldsReleased,
	}
	snap.AppendAudit(ev)
	return ev.ID
}

// suggestRule builds a ready-to-persist standing rule mirroring the request
// that just auto-allowed.
func (e *Engine) suggestRule(req ContextRequest, facts []vault.Fact, now time.Time) *vault.PolicyRule {
	return &vault.PolicyRule{
		ID:              newRuleID(),
		RecipientDomain: req.Recipient.Value,
		PurposeCategory: req.Purpose.Category,
		PurposeAction:   req.Purpose.Action,
		MaxSensitivity:  vault.MaxSensitivity(facts),
		AllowedFields:   taxonomy.NormalizeAll(req.FieldsRequested),
		ExpiresAt:       now.Add(suggestedRuleLifetime).Format(time.RFC3339),
		Enabled:         true,
	}
}

func (e *Engine) logDecision(decision string, req ContextRequest, reason, auditID string) {
	e.logger.Info("decision",
		"decision", decision,
		"agent", req.AgentID,
		"recipient", req.Recipient.Value,
		"purpose", req.Purpose.Category+"/"+req.Purpose.Action,
		"reason", reason,
		"audit_id", auditID,
	)
}

// toContextRequest reconstructs the request view from a stored RequestInfo.
func toContextRequest(info vault.RequestInfo) ContextRequest {
	return ContextRequest{
		AgentID: info.AgentID,
		Purpose: Purpose{
			Category: info.PurposeCategory,
			Action:   info.PurposeAction,
			Detail:   info.PurposeDetail,
		},
		Recipient:       Recipient{Type: "domain", Value: info.RecipientDomain},
		PersonaHint:     info.Persona,
		FieldsRequested: info.Fields,
	}
}

// String renders a short human-readable summary for logs and errors.
func (r ContextRequest) String() string {
	return fmt.Sprintf("%s -> %s (%s/%s)", r.AgentID, r.Recipient.Value, r.Purpose.Category, r.Purpose.Action)
}
