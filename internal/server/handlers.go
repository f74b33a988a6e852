package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/factsentry/factsentry/internal/engine"
	vaulterrors "github.com/factsentry/factsentry/internal/errors"
	"github.com/factsentry/factsentry/internal/match"
	"github.com/factsentry/factsentry/internal/vault"
)

// decisionResponse is the JSON body returned by decision endpoints. It wraps
// the engine decision with a seconds-based TTL and an optional release grant.
type decisionResponse struct {
	engine.Decision
	TTLSeconds int64  `json:"ttl_seconds,omitempty"` // 0 or absent means no expiry
	Grant      string `json:"grant,omitempty"`
}

// approvalSummary is one pending challenge in the GET /v1/approvals listing.
// It carries field keys only, never fact values.
type approvalSummary struct {
	ID              string   `json:"id"`
	AgentID         string   `json:"agent_id"`
	RecipientDomain string   `json:"recipient_domain"`
	Purpose         string   `json:"purpose"`
	Persona         string   `json:"persona"`
	Fields          []string `json:"fields"`
	CreatedAtMs     int64    `json:"created_at_ms"`
	ExpiresAtMs     int64    `json:"expires_at_ms"`
}

// handler builds the complete HTTP handler with routing and instrumentation.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", s.healthHandler)
	mux.Handle("/readyz", s.healthHandler)
	mux.HandleFunc("/metrics", s.metrics.Handler())

	mux.HandleFunc("POST /v1/context", s.handleContext)
	mux.HandleFunc("POST /v1/approvals/{id}/approve", s.resolveHandler(true))
	mux.HandleFunc("POST /v1/approvals/{id}/deny", s.resolveHandler(false))
	mux.HandleFunc("GET /v1/approvals", s.handleListApprovals)
	mux.HandleFunc("GET /v1/audit", s.handleListAudit)
	mux.HandleFunc("POST /v1/scheduled", s.handleScheduled)

	return s.instrument(mux)
}

// instrument wraps the mux with request counting and duration metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := normalizeEndpoint(r.URL.Path)
		s.metrics.RecordRequest(endpoint, rec.status)
		s.metrics.RecordRequestDuration(endpoint, time.Since(start))
	})
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// normalizeEndpoint folds per-request path segments into a stable label so
// approval ids do not explode metric cardinality.
func normalizeEndpoint(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1/approvals/"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/v1/approvals/{id}" + rest[i:]
		}
		return "/v1/approvals/{id}"
	}
	return path
}

// handleContext evaluates an interactive context request.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req engine.ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrInvalidRequest)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.allowAgent(req.AgentID) {
		s.metrics.RecordRateLimitHit()
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrRateLimited)
		return
	}

	now := time.Now()
	var (
		decision engine.Decision
		appended []vault.AuditEvent
	)
	err := s.store.Mutate(func(snap *vault.Snapshot) error {
		before := len(snap.Audit)
		decision = s.engine.Ask(snap, req, now)
		appended = append(appended, snap.Audit[before:]...)
		s.metrics.SetPendingApprovals(len(snap.Pending))
		return nil
	})
	s.metrics.RecordVaultSave(err == nil)
	if err != nil {
		s.logger.Error("context decision failed", "error", err, "request", req.String())
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrVaultUnavailable)
		return
	}

	s.mirrorAudit(r.Context(), appended)
	s.metrics.RecordDecision(string(decision.Outcome))
	writeJSON(w, http.StatusOK, s.decisionResponse(r.Context(), decision, req.AgentID, req.Recipient.Value, now))
}

// resolveHandler returns a handler that approves or denies a pending challenge.
func (s *Server) resolveHandler(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := engine.ResolveRequest{RequestID: r.PathValue("id"), Approve: approve}
		if err := req.Validate(); err != nil {
			s.writeError(w, err)
			return
		}

		now := time.Now()
		var (
			decision engine.Decision
			appended []vault.AuditEvent
			info     vault.RequestInfo
			waited   time.Duration
		)
		err := s.store.Mutate(func(snap *vault.Snapshot) error {
			if idx := snap.FindPending(req.RequestID); idx >= 0 {
				info = snap.Pending[idx].Request
				waited = time.Duration(now.UnixMilli()-snap.Pending[idx].CreatedAtMs) * time.Millisecond
			}
			before := len(snap.Audit)
			var rerr error
			decision, rerr = s.engine.Resolve(snap, req, now)
			if rerr != nil {
				return rerr
			}
			appended = append(appended, snap.Audit[before:]...)
			s.metrics.SetPendingApprovals(len(snap.Pending))
			return nil
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.metrics.RecordVaultSave(true)

		s.mirrorAudit(r.Context(), appended)
		s.metrics.RecordDecision(string(vaultDecisionFor(approve)))
		s.metrics.RecordApprovalLatency(waited)
		writeJSON(w, http.StatusOK, s.decisionResponse(r.Context(), decision, info.AgentID, info.RecipientDomain, now))
	}
}

// handleListApprovals lists challenges that are still resolvable.
func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	nowMs := time.Now().UnixMilli()
	summaries := []approvalSummary{}
	err := s.store.View(func(snap *vault.Snapshot) error {
		for i := range snap.Pending {
			p := &snap.Pending[i]
			if p.Status != vault.StatusPending || p.Expired(nowMs) {
				continue
			}
			summaries = append(summaries, approvalSummary{
				ID:              p.ID,
				AgentID:         p.Request.AgentID,
				RecipientDomain: p.Request.RecipientDomain,
				Purpose:         p.Request.PurposeCategory + "/" + p.Request.PurposeAction,
				Persona:         p.Request.Persona,
				Fields:          p.Request.Fields,
				CreatedAtMs:     p.CreatedAtMs,
				ExpiresAtMs:     p.ExpiresAtMs,
			})
		}
		return nil
	})
	if err != nil {
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrVaultUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": summaries})
}

// handleListAudit returns the newest audit ledger entries.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			vaulterrors.WriteHTTPError(w, vaulterrors.ErrInvalidRequest)
			return
		}
		limit = n
	}

	events := []vault.AuditEvent{}
	err := s.store.View(func(snap *vault.Snapshot) error {
		events = append(events, snap.AuditTail(limit)...)
		return nil
	})
	if err != nil {
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrVaultUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleScheduled evaluates a non-interactive heartbeat or cron trigger.
func (s *Server) handleScheduled(w http.ResponseWriter, r *http.Request) {
	var req engine.ScheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrInvalidRequest)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.allowAgent(req.SourceID) {
		s.metrics.RecordRateLimitHit()
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrRateLimited)
		return
	}

	now := time.Now()
	var (
		decision engine.Decision
		appended []vault.AuditEvent
	)
	err := s.store.Mutate(func(snap *vault.Snapshot) error {
		before := len(snap.Audit)
		decision = s.engine.AskScheduled(snap, req, now)
		appended = append(appended, snap.Audit[before:]...)
		return nil
	})
	s.metrics.RecordVaultSave(err == nil)
	if err != nil {
		s.logger.Error("scheduled decision failed", "error", err, "source", req.SourceID)
		vaulterrors.WriteHTTPError(w, vaulterrors.ErrVaultUnavailable)
		return
	}

	s.mirrorAudit(r.Context(), appended)
	s.metrics.RecordScheduledCheck(string(decision.Outcome))
	writeJSON(w, http.StatusOK, s.decisionResponse(r.Context(), decision, req.SourceID, req.RecipientDomain, now))
}

// decisionResponse builds the response body for a decision, attaching a
// signed release grant to allows when grants are configured.
func (s *Server) decisionResponse(ctx context.Context, d engine.Decision, agentID, recipientDomain string, now time.Time) decisionResponse {
	resp := decisionResponse{
		Decision:   d,
		TTLSeconds: int64(d.TTL.Seconds()),
	}
	if d.Outcome == engine.OutcomeAllow && s.signer != nil {
		token, err := s.signer.Issue(ctx, agentID, recipientDomain, d.AuditID, match.Keys(d.ReleasedFacts), now)
		if err != nil {
			// The release already happened and is audited; a missing grant
			// token is an observability loss, not a security one.
			s.logger.Error("issuing release grant failed", "error", err, "audit_id", d.AuditID)
		} else {
			resp.Grant = token
		}
	}
	return resp
}

// mirrorAudit forwards freshly appended ledger entries to the decision log.
func (s *Server) mirrorAudit(ctx context.Context, events []vault.AuditEvent) {
	log := s.auditLog()
	for _, ev := range events {
		log.LogEvent(ctx, ev)
	}
}

// writeError maps an error to its HTTP response. Typed engine errors carry
// their own status; anything else is a vault failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if verr, ok := err.(*vaulterrors.VaultError); ok {
		vaulterrors.WriteHTTPError(w, verr)
		return
	}
	s.logger.Error("request failed", "error", err)
	vaulterrors.WriteHTTPError(w, vaulterrors.ErrVaultUnavailable)
}

// vaultDecisionFor maps a resolution to its ledger decision label.
func vaultDecisionFor(approve bool) vault.AuditDecision {
	if approve {
		return vault.DecisionAskApproved
	}
	return vault.DecisionAskDenied
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
