package grant

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// writeTestJWK generates an ES256 key and writes it as a JWK file.
func writeTestJWK(t *testing.T) string {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("wrapping key: %v", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256); err != nil {
		t.Fatalf("setting alg: %v", err)
	}
	data, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "grant.jwk")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}
	return path
}

func TestIssueAndVerify(t *testing.T) {
	s, err := NewSigner(writeTestJWK(t), 10*time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	token, err := s.Issue(context.Background(), "agent_shopper", "nordstrom.com", "aud_1", []string{"apparel.pants.waist"}, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token is not compact JWS: %q", token)
	}

	g, err := s.Verify(context.Background(), token, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if g.AgentID != "agent_shopper" || g.RecipientDomain != "nordstrom.com" || g.AuditID != "aud_1" {
		t.Errorf("grant payload = %+v", g)
	}
	if len(g.Fields) != 1 || g.Fields[0] != "apparel.pants.waist" {
		t.Errorf("grant fields = %v", g.Fields)
	}
	if !strings.HasPrefix(g.ID, "grant_") {
		t.Errorf("grant id = %q", g.ID)
	}
	if g.ExpiresAt != now.Add(10*time.Minute).Unix() {
		t.Errorf("grant exp = %d", g.ExpiresAt)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, err := NewSigner(writeTestJWK(t), time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := s.Issue(context.Background(), "agent_shopper", "nordstrom.com", "aud_1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := s.Verify(context.Background(), token, now.Add(2*time.Minute)); err == nil {
		t.Error("expired grant verified")
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	s, err := NewSigner(writeTestJWK(t), time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := s.Issue(context.Background(), "agent_shopper", "nordstrom.com", "aud_1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a byte in the payload segment.
	parts := strings.Split(token, ".")
	parts[1] = "x" + parts[1][1:]
	if _, err := s.Verify(context.Background(), strings.Join(parts, "."), now); err == nil {
		t.Error("tampered grant verified")
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a, err := NewSigner(writeTestJWK(t), time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	b, err := NewSigner(writeTestJWK(t), time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	token, err := a.Issue(context.Background(), "agent_shopper", "nordstrom.com", "aud_1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(context.Background(), token, now); err == nil {
		t.Error("grant verified with a different key")
	}
}

func TestNewSignerRequiresAlg(t *testing.T) {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("wrapping key: %v", err)
	}
	data, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "grant.jwk")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}

	if _, err := NewSigner(path, time.Minute); err == nil {
		t.Error("keyless alg accepted")
	}
}

func TestNewSignerMissingFile(t *testing.T) {
	if _, err := NewSigner(filepath.Join(t.TempDir(), "absent.jwk"), time.Minute); err == nil {
		t.Error("missing key file accepted")
	}
}
