// Package policy implements the release decision logic: the global posture,
// standing allow-rules, per-persona overrides, and the scheduled-rule
// evaluator for non-interactive triggers.
package policy

import "github.com/factsentry/factsentry/internal/vault"

// Posture is the global default stance controlling how readily facts
// auto-release.
type Posture string

// The three postures.
const (
	PostureOpenish    Posture = "open-ish"
	PostureBalanced   Posture = "balanced"
	PostureLockedDown Posture = "locked-down"
)

// postureAliases folds the legacy home-security posture names into the
// canonical ones, mirroring how the taxonomy folds field aliases.
var postureAliases = map[string]Posture{
	"simple-lock":  PostureOpenish,
	"alarm-system": PostureBalanced,
	"bank-vault":   PostureLockedDown,
}

// ParsePosture maps a stored posture string onto a canonical Posture.
// Empty means the balanced default; an unrecognized value is treated as
// locked-down (fail-closed).
func ParsePosture(s string) Posture {
	switch Posture(s) {
	case PostureOpenish, PostureBalanced, PostureLockedDown:
		return Posture(s)
	}
	if p, ok := postureAliases[s]; ok {
		return p
	}
	if s == "" {
		return PostureBalanced
	}
	return PostureLockedDown
}

// AutoAllowDefault is the posture's default answer for a fact set with the
// given maximum sensitivity, before rules and overrides are consulted.
// locked-down never auto-allows; open-ish and balanced auto-allow only when
// everything matched is low.
func AutoAllowDefault(p Posture, max vault.Sensitivity) bool {
	switch p {
	case PostureLockedDown:
		return false
	case PostureOpenish, PostureBalanced:
		return max == vault.SensitivityLow
	default:
		return false
	}
}
