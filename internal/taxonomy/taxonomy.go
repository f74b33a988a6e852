// Package taxonomy maps legacy and alias field names onto canonical dotted
// keys. Every component that compares field keys must normalize through this
// package first — comparing un-normalized keys is a correctness bug, not a
// style choice.
package taxonomy

import "strings"

// aliases folds legacy flat field names into the canonical dotted taxonomy.
// Distinct aliases may collapse to the same canonical key.
var aliases = map[string]string{
	// identity
	"name":       "identity.name",
	"full_name":  "identity.name",
	"fullname":   "identity.name",
	"dob":        "identity.birth_date",
	"birthdate":  "identity.birth_date",
	"birth_date": "identity.birth_date",

	// contact
	"email":         "contact.email",
	"email_address": "contact.email",
	"phone":         "contact.phone",
	"phone_number":  "contact.phone",

	// shipping
	"address":     "shipping.address",
	"street":      "shipping.address.street",
	"city":        "shipping.address.city",
	"zip":         "shipping.address.postal_code",
	"zipcode":     "shipping.address.postal_code",
	"postal_code": "shipping.address.postal_code",

	// apparel
	"shirt_size":  "apparel.tops.size",
	"pants_waist": "apparel.pants.waist",
	"waist":       "apparel.pants.waist",
	"inseam":      "apparel.pants.inseam",
	"shoe_size":   "apparel.shoes.size",

	// preferences
	"diet":                 "food.dietary_restrictions",
	"dietary_restrictions": "food.dietary_restrictions",
	"allergies":            "health.allergies",
}

// Normalize maps a field key to its canonical dotted form. It is pure and
// total: unknown keys pass through unchanged (after whitespace trimming and
// lowercasing). Wildcard suffixes survive normalization untouched.
func Normalize(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := aliases[k]; ok {
		return canonical
	}
	// Normalize the base of a wildcard pattern like "pants_waist.*".
	if base, found := strings.CutSuffix(k, ".*"); found {
		if canonical, ok := aliases[base]; ok {
			return canonical + ".*"
		}
	}
	return k
}

// NormalizeAll normalizes a slice of keys, returning a new slice.
// A nil input yields nil.
func NormalizeAll(keys []string) []string {
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = Normalize(k)
	}
	return out
}
