// Package grant issues signed release grants. A grant is a JWS token binding
// an agent, the released field keys, and an expiry to an audit ledger entry,
// so downstream services can check that a release was actually authorized.
package grant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Grant is the signed payload carried by a release token.
type Grant struct {
	ID              string   `json:"grant_id"`
	AgentID         string   `json:"agent_id"`
	RecipientDomain string   `json:"recipient"`
	Fields          []string `json:"fields"`
	AuditID         string   `json:"audit_id"`
	IssuedAt        int64    `json:"iat"`
	ExpiresAt       int64    `json:"exp"`
}

// Signer signs and verifies release grants with a local JWK.
type Signer struct {
	key jwk.Key
	pub jwk.Key
	ttl time.Duration
}

// NewSigner loads the signing key from a JWK (or JWKS) file. The key must
// carry an "alg" parameter; there is no algorithm fallback.
func NewSigner(jwkFile string, ttl time.Duration) (*Signer, error) {
	set, err := jwk.ReadFile(jwkFile)
	if err != nil {
		return nil, fmt.Errorf("reading grant JWK %q: %w", jwkFile, err)
	}
	key, ok := set.Key(0)
	if !ok {
		return nil, fmt.Errorf("grant JWK %q holds no keys", jwkFile)
	}
	return newSigner(key, ttl)
}

func newSigner(key jwk.Key, ttl time.Duration) (*Signer, error) {
	if key.Algorithm() == nil || key.Algorithm().String() == "" {
		return nil, fmt.Errorf("grant JWK must carry an alg parameter")
	}
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("deriving public key: %w", err)
	}
	return &Signer{key: key, pub: pub, ttl: ttl}, nil
}

// Issue signs a grant for the given release and returns its compact JWS form.
func (s *Signer) Issue(ctx context.Context, agentID, recipientDomain, auditID string, fields []string, now time.Time) (string, error) {
	g := Grant{
		ID:              "grant_" + uuid.NewString(),
		AgentID:         agentID,
		RecipientDomain: recipientDomain,
		Fields:          fields,
		AuditID:         auditID,
		IssuedAt:        now.Unix(),
		ExpiresAt:       now.Add(s.ttl).Unix(),
	}
	payload, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("marshaling grant: %w", err)
	}
	signed, err := jws.Sign(payload, jws.WithKey(s.key.Algorithm(), s.key))
	if err != nil {
		return "", fmt.Errorf("signing grant: %w", err)
	}
	return string(signed), nil
}

// Verify checks a grant token's signature and expiry and returns its payload.
func (s *Signer) Verify(ctx context.Context, token string, now time.Time) (*Grant, error) {
	payload, err := jws.Verify([]byte(token), jws.WithKey(s.key.Algorithm(), s.pub))
	if err != nil {
		return nil, fmt.Errorf("grant signature verification failed: %w", err)
	}
	var g Grant
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, fmt.Errorf("unmarshaling grant payload: %w", err)
	}
	if now.Unix() > g.ExpiresAt {
		return nil, fmt.Errorf("grant %s expired", g.ID)
	}
	return &g, nil
}

// TTL returns the configured grant lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}
