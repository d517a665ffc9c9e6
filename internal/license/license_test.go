package license

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func makeKey(t *testing.T, seats int, expiry time.Time, priv ed25519.PrivateKey) string {
	t.Helper()

	payload := keyPayload{
		ID:         "lic-test",
		Seats:      seats,
		ExpiryDate: expiry.Format(time.RFC3339),
	}
	if priv != nil {
		sig := ed25519.Sign(priv, signedPayload(payload))
		payload.Sig = base64.StdEncoding.EncodeToString(sig)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return keyPrefix + base64.StdEncoding.EncodeToString(raw)
}

func TestParse_EmptyKeyIsOSS(t *testing.T) {
	lic, err := Parse("", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if lic.Plan() != PlanOSS {
		t.Errorf("expected oss plan, got %s", lic.Plan())
	}
	if lic.HasEntitlement(EntitlementPermissionSyncing) {
		t.Error("oss plan must not include permission syncing")
	}
}

func TestParse_EnterpriseKey(t *testing.T) {
	key := makeKey(t, 50, time.Now().Add(24*time.Hour), nil)

	lic, err := Parse(key, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if lic.Plan() != PlanEnterprise {
		t.Errorf("expected enterprise plan, got %s", lic.Plan())
	}
	if lic.Seats() != 50 {
		t.Errorf("expected 50 seats, got %d", lic.Seats())
	}
	if !lic.HasEntitlement(EntitlementPermissionSyncing) {
		t.Error("enterprise plan must include permission syncing")
	}
}

func TestParse_UnlimitedSeats(t *testing.T) {
	key := makeKey(t, UnlimitedSeats, time.Now().Add(24*time.Hour), nil)

	lic, err := Parse(key, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if lic.Plan() != PlanEnterpriseUnlimited {
		t.Errorf("expected enterprise-unlimited plan, got %s", lic.Plan())
	}
}

func TestParse_ExpiredKey(t *testing.T) {
	key := makeKey(t, 10, time.Now().Add(-time.Hour), nil)

	if _, err := Parse(key, nil); err == nil {
		t.Fatal("expected error for expired key, got nil")
	}
}

func TestParse_BadPrefix(t *testing.T) {
	if _, err := Parse("not_a_license_key", nil); err == nil {
		t.Fatal("expected error for malformed key, got nil")
	}
}

func TestParse_SignatureVerification(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	key := makeKey(t, 10, time.Now().Add(24*time.Hour), priv)
	lic, err := Parse(key, pub)
	if err != nil {
		t.Fatalf("expected valid signature to verify, got %v", err)
	}
	if lic.Plan() != PlanEnterprise {
		t.Errorf("expected enterprise plan, got %s", lic.Plan())
	}

	// A key signed by a different key must be rejected.
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	forged := makeKey(t, 10, time.Now().Add(24*time.Hour), otherPriv)
	if _, err := Parse(forged, pub); err == nil {
		t.Fatal("expected signature verification to fail for forged key")
	}

	// Unsigned keys are rejected when a public key is configured.
	unsigned := makeKey(t, 10, time.Now().Add(24*time.Hour), nil)
	if _, err := Parse(unsigned, pub); err == nil {
		t.Fatal("expected unsigned key to be rejected in verify mode")
	}
}
