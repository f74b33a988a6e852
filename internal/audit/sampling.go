package audit

import (
	"math/rand"

	"github.com/factsentry/factsentry/internal/vault"
)

// SamplingConfig controls decision log sampling rates.
type SamplingConfig struct {
	Rate     float64 // allow/approval sampling rate (0.0-1.0)
	DenyRate float64 // denial sampling rate (0.0-1.0)
}

// ShouldLog determines if a decision should be logged. Denials use DenyRate,
// everything else uses Rate.
func (s SamplingConfig) ShouldLog(decision vault.AuditDecision) bool {
	switch decision {
	case vault.DecisionDeny, vault.DecisionAskDenied:
		return s.DenyRate >= 1.0 || rand.Float64() < s.DenyRate
	default:
		return s.Rate >= 1.0 || rand.Float64() < s.Rate
	}
}
