package policy

import (
	"testing"

	"github.com/factsentry/factsentry/internal/vault"
)

func TestParsePosture(t *testing.T) {
	tests := []struct {
		in   string
		want Posture
	}{
		{"open-ish", PostureOpenish},
		{"balanced", PostureBalanced},
		{"locked-down", PostureLockedDown},
		{"simple-lock", PostureOpenish},
		{"alarm-system", PostureBalanced},
		{"bank-vault", PostureLockedDown},
		{"", PostureBalanced},
		{"yolo", PostureLockedDown}, // unrecognized fails closed
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParsePosture(tt.in); got != tt.want {
				t.Errorf("ParsePosture(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAutoAllowDefault(t *testing.T) {
	tests := []struct {
		name    string
		posture Posture
		max     vault.Sensitivity
		want    bool
	}{
		{"locked-down low", PostureLockedDown, vault.SensitivityLow, false},
		{"locked-down high", PostureLockedDown, vault.SensitivityHigh, false},
		{"open-ish low", PostureOpenish, vault.SensitivityLow, true},
		{"open-ish medium", PostureOpenish, vault.SensitivityMedium, false},
		{"open-ish high", PostureOpenish, vault.SensitivityHigh, false},
		{"balanced low", PostureBalanced, vault.SensitivityLow, true},
		{"balanced medium", PostureBalanced, vault.SensitivityMedium, false},
		{"balanced high", PostureBalanced, vault.SensitivityHigh, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AutoAllowDefault(tt.posture, tt.max); got != tt.want {
				t.Errorf("AutoAllowDefault(%q, %q) = %v, want %v", tt.posture, tt.max, got, tt.want)
			}
		})
	}
}
