package engine

import (
	"github.com/factsentry/factsentry/internal/vault"
)

// previewMaxLen caps how much of a fact value a challenge shows.
const previewMaxLen = 48

// Challenge is the human-readable summary of a pending approval, shown to
// the user before they decide. It never releases data by itself.
type Challenge struct {
	RequestID   string           `json:"request_id"`
	AgentID     string           `json:"agent_id"`
	Recipient   string           `json:"recipient"`
	Purpose     string           `json:"purpose"`
	ExpiresAtMs int64            `json:"expires_at_ms"`
	Fields      []ChallengeField `json:"fields"`
}

// ChallengeField previews one matched fact. High-sensitivity values are
// never previewed, only their presence.
type ChallengeField struct {
	Key         string            `json:"key"`
	Sensitivity vault.Sensitivity `json:"sensitivity"`
	Preview     string            `json:"preview,omitempty"`
	Previewable bool              `json:"previewable"`
}

// buildChallenge renders the sensitivity-gated preview for a pending entry.
func buildChallenge(p *vault.PendingApproval) *Challenge {
	fields := make([]ChallengeField, len(p.MatchedFacts))
	for i, f := range p.MatchedFacts {
		cf := ChallengeField{
			Key:         f.Key,
			Sensitivity: f.Sensitivity,
		}
		if f.Sensitivity.Rank() < vault.SensitivityHigh.Rank() {
			cf.Previewable = true
			cf.Preview = truncate(f.Value, previewMaxLen)
		}
		fields[i] = cf
	}

	return &Challenge{
		RequestID:   p.ID,
		AgentID:     p.Request.AgentID,
		Recipient:   p.Request.RecipientDomain,
		Purpose:     p.Request.PurposeCategory + "/" + p.Request.PurposeAction,
		ExpiresAtMs: p.ExpiresAtMs,
		Fields:      fields,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
