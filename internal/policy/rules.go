package policy

import (
	"fmt"
	"time"

	"github.com/factsentry/factsentry/internal/match"
	"github.com/factsentry/factsentry/internal/vault"
)

// Verdict is the outcome of an auto-allow evaluation.
type Verdict struct {
	Allow  bool
	Reason string // human-readable reason for logging
	RuleID string // id of the satisfying rule, empty for posture/override outcomes
}

// Query captures one release decision's inputs.
type Query struct {
	RecipientDomain string
	PurposeCategory string
	PurposeAction   string
	Facts           []vault.Fact // already matched and canonicalized
	Override        vault.AutoReleaseMode
	Now             time.Time
}

// CheckAutoAllow decides whether the matched facts may be released without
// asking. Evaluation order, short-circuiting:
//
//  1. locked-down posture — never, rules cannot override.
//  2. Persona override always_ask — never.
//  3. Nothing matched — never (least privilege).
//  4. Persona override auto_low with all-low facts — yes.
//  5. Posture default — yes when it says so.
//  6. Balanced posture with medium-or-higher facts — never, a hard
//     sensitivity ceiling that rules cannot bypass.
//  7. First enabled, unexpired rule matching recipient, purpose, sensitivity
//     ceiling, and field coverage — yes.
func CheckAutoAllow(snap *vault.Snapshot, q Query) Verdict {
	posture := ParsePosture(snap.Settings.Posture)

	if posture == PostureLockedDown {
		return Verdict{Allow: false, Reason: "locked-down posture requires approval for everything"}
	}
	if q.Override == vault.ReleaseAlwaysAsk {
		return Verdict{Allow: false, Reason: "persona is set to always ask"}
	}
	if len(q.Facts) == 0 {
		return Verdict{Allow: false, Reason: "no facts matched"}
	}

	max := vault.MaxSensitivity(q.Facts)

	if q.Override == vault.ReleaseAutoLow && max == vault.SensitivityLow {
		return Verdict{Allow: true, Reason: "persona auto-releases low-sensitivity facts"}
	}
	if AutoAllowDefault(posture, max) {
		return Verdict{Allow: true, Reason: fmt.Sprintf("%s posture auto-allows low-sensitivity facts", posture)}
	}
	if posture == PostureBalanced && max.Rank() >= vault.SensitivityMedium.Rank() {
		return Verdict{Allow: false, Reason: "balanced posture requires approval above low sensitivity"}
	}

	for i := range snap.Rules {
		r := &snap.Rules[i]
		if !r.Active(q.Now) {
			continue
		}
		if !ruleMatches(r, q.RecipientDomain, q.PurposeCategory, q.PurposeAction, q.Facts, max) {
			continue
		}
		return Verdict{
			Allow:  true,
			Reason: fmt.Sprintf("matched rule %s for %s/%s", r.ID, q.PurposeCategory, q.PurposeAction),
			RuleID: r.ID,
		}
	}

	return Verdict{Allow: false, Reason: "no matching rule"}
}

// ruleMatches checks rule scope, sensitivity ceiling, and field coverage
// against the matched facts.
func ruleMatches(r *vault.PolicyRule, recipient, category, action string, facts []vault.Fact, max vault.Sensitivity) bool {
	if r.RecipientDomain != recipient {
		return false
	}
	if r.PurposeCategory != category {
		return false
	}
	if r.PurposeAction != action {
		return false
	}
	if r.MaxSensitivity.Rank() < max.Rank() {
		return false
	}
	if len(r.AllowedFields) > 0 {
		for _, f := range facts {
			if !match.CoveredByAny(f.Key, r.AllowedFields) {
				return false
			}
		}
	}
	return true
}
