package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/factsentry/factsentry/internal/engine"
	"github.com/factsentry/factsentry/internal/grant"
)

func writeSignerJWK(t *testing.T) string {
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

func TestAllowCarriesVerifiableGrant(t *testing.T) {
	s := newTestServer(t, "open-ish")
	signer, err := grant.NewSigner(writeSignerJWK(t), 10*time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	s.signer = signer

	rec := postJSON(t, s.handler(), "/v1/context", contextRequest("apparel.pants.waist"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp decisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Outcome != engine.OutcomeAllow {
		t.Fatalf("outcome = %q (%s)", resp.Outcome, resp.Reason)
	}
	if resp.Grant == "" {
		t.Fatal("allow carried no grant token")
	}

	g, err := signer.Verify(context.Background(), resp.Grant, time.Now())
	if err != nil {
		t.Fatalf("verifying grant: %v", err)
	}
	if g.AgentID != "agent_shopper" || g.RecipientDomain != "nordstrom.com" {
		t.Errorf("grant payload = %+v", g)
	}
	if g.AuditID != resp.AuditID {
		t.Errorf("grant audit id = %q, response audit id = %q", g.AuditID, resp.AuditID)
	}
	if len(g.Fields) != 1 || g.Fields[0] != "apparel.pants.waist" {
		t.Errorf("grant fields = %v", g.Fields)
	}
}

func TestAskCarriesNoGrant(t *testing.T) {
	s := newTestServer(t, "balanced")
	signer, err := grant.NewSigner(writeSignerJWK(t), 10*time.Minute)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	s.signer = signer

	rec := postJSON(t, s.handler(), "/v1/context", contextRequest("contact.email"))
	var resp decisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Outcome != engine.OutcomeAsk {
		t.Fatalf("outcome = %q", resp.Outcome)
	}
	if resp.Grant != "" {
		t.Error("challenge carried a grant token")
	}
}
