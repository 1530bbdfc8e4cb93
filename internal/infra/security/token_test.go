package security

import (
	"testing"
	"time"
)

func TestCookieSignerRoundTrip(t *testing.T) {
	signer, err := NewCookieSigner("unit-test-secret")
	if err != nil {
		t.Fatalf("NewCookieSigner returned error: %v", err)
	}

	value, err := signer.Sign("session-abc", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	sessionID, err := signer.Parse(value)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if sessionID != "session-abc" {
		t.Fatalf("session ID = %q, want session-abc", sessionID)
	}
}

func TestCookieSignerRejectsExpired(t *testing.T) {
	signer, err := NewCookieSigner("unit-test-secret")
	if err != nil {
		t.Fatalf("NewCookieSigner returned error: %v", err)
	}

	value, err := signer.Sign("session-abc", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	if _, err := signer.Parse(value); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestCookieSignerRejectsForeignSignature(t *testing.T) {
	signer, err := NewCookieSigner("unit-test-secret")
	if err != nil {
		t.Fatalf("NewCookieSigner returned error: %v", err)
	}
	other, err := NewCookieSigner("different-secret")
	if err != nil {
		t.Fatalf("NewCookieSigner returned error: %v", err)
	}

	value, err := other.Sign("session-abc", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	if _, err := signer.Parse(value); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	second, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct tokens")
	}
	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatal("expected error for non-positive length")
	}
}
