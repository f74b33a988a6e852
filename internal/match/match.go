// Package match decides whether concrete fact keys are covered by request
// field patterns. Matching is exact or prefix-wildcard, never substring:
// wildcard matches are anchored at a dot boundary or end-of-string.
package match

import (
	"strings"

	"github.com/factsentry/factsentry/internal/taxonomy"
	"github.com/factsentry/factsentry/internal/vault"
)

// wildcardSuffix marks a pattern that covers a key and all of its
// dot-separated descendants.
const wildcardSuffix = ".*"

// Matches reports whether factKey is covered by pattern. Both sides are
// normalized before comparison. A pattern ending in ".*" matches its prefix
// exactly or any descendant below it; any other pattern requires an exact
// match. The prefix "app" never matches "apparel.pants.waist".
func Matches(factKey, pattern string) bool {
	key := taxonomy.Normalize(factKey)
	pat := taxonomy.Normalize(pattern)

	prefix, wildcard := strings.CutSuffix(pat, wildcardSuffix)
	if !wildcard {
		return key == pat
	}
	if prefix == "" {
		return false
	}
	return key == prefix || strings.HasPrefix(key, prefix+".")
}

// CoveredByAny reports whether factKey is covered by at least one pattern.
func CoveredByAny(factKey string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(factKey, p) {
			return true
		}
	}
	return false
}

// Facts returns the persona's facts covered by the requested field patterns,
// with keys canonicalized. An empty or absent request yields nothing — there
// is no implicit "give everything". Results are deduplicated by
// (canonical key, value), since distinct legacy aliases can collapse to the
// same canonical fact.
func Facts(persona *vault.Persona, requestedFields []string) []vault.Fact {
	if persona == nil || len(requestedFields) == 0 {
		return nil
	}

	type identity struct {
		key   string
		value string
	}
	seen := make(map[identity]bool)

	var out []vault.Fact
	for _, f := range persona.Facts {
		key := taxonomy.Normalize(f.Key)
		if !CoveredByAny(key, requestedFields) {
			continue
		}
		id := identity{key: key, value: f.Value}
		if seen[id] {
			continue
		}
		seen[id] = true

		canonical := f
		canonical.Key = key
		out = append(out, canonical)
	}
	return out
}

// Keys returns the canonical keys of the given facts, in order.
func Keys(facts []vault.Fact) []string {
	keys := make([]string, len(facts))
	for i, f := range facts {
		keys[i] = f.Key
	}
	return keys
}
