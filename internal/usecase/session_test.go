package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/infra/security"
)

type sessionFixture struct {
	service *SessionService
	store   *stubSessionStore
	now     time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	signer, err := security.NewCookieSigner(testSessionSettings().Secret)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	// The cookie signer checks expiry against wall-clock time, so the fixture
	// clock starts at the real now and only moves forward.
	f := &sessionFixture{
		store: newStubSessionStore(),
		now:   time.Now().UTC(),
	}
	f.service = NewSessionService(f.store, signer, testSessionSettings())
	f.service.WithClock(func() time.Time { return f.now })
	return f
}

func testAccount() *domain.Account {
	return &domain.Account{
		ID:       "acct-1",
		Username: "alnewman",
		Role:     domain.RoleManager,
	}
}

func TestSessionEstablishAndValidate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, cookie, err := f.service.Establish(ctx, testAccount(), false, "203.0.113.7", "test-agent/1.0")
	if err != nil {
		t.Fatalf("establish failed: %v", err)
	}
	if session.ExpiresAt.Sub(session.CreatedAt) != 12*time.Hour {
		t.Fatalf("default lifetime %v, want 12h", session.ExpiresAt.Sub(session.CreatedAt))
	}
	if f.store.lastTTL != 12*time.Hour {
		t.Fatalf("store TTL %v, want 12h", f.store.lastTTL)
	}

	resolved, err := f.service.Validate(ctx, cookie)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if resolved.AccountID != "acct-1" || resolved.Username != "alnewman" {
		t.Fatalf("unexpected session %+v", resolved)
	}
	if resolved.Role != domain.RoleManager {
		t.Fatalf("role %q, want manager", resolved.Role)
	}
	if resolved.IP == nil || *resolved.IP != "203.0.113.7" {
		t.Fatal("session should record the client address")
	}
}

func TestSessionRememberMeStretchesLifetime(t *testing.T) {
	f := newSessionFixture(t)

	session, _, err := f.service.Establish(context.Background(), testAccount(), true, "", "")
	if err != nil {
		t.Fatalf("establish failed: %v", err)
	}
	if got, want := session.ExpiresAt.Sub(session.CreatedAt), 21*24*time.Hour; got != want {
		t.Fatalf("remember-me lifetime %v, want %v", got, want)
	}
	if !session.Remember {
		t.Fatal("remember flag should be set")
	}
}

func TestSessionValidateRejectsExpired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, cookie, err := f.service.Establish(ctx, testAccount(), false, "", "")
	if err != nil {
		t.Fatalf("establish failed: %v", err)
	}

	f.now = f.now.Add(13 * time.Hour)

	if _, err := f.service.Validate(ctx, cookie); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestSessionValidateRejectsGarbage(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for _, cookie := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := f.service.Validate(ctx, cookie); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("cookie %q: expected invalid session, got %v", cookie, err)
		}
	}
}

func TestSessionValidateRejectsForeignSignature(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	foreign, err := security.NewCookieSigner("some-other-secret")
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	cookie, err := foreign.Sign("session-id", f.now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := f.service.Validate(ctx, cookie); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session, got %v", err)
	}
}

func TestSessionRevoke(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, cookie, err := f.service.Establish(ctx, testAccount(), false, "", "")
	if err != nil {
		t.Fatalf("establish failed: %v", err)
	}

	if err := f.service.Revoke(ctx, cookie); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := f.service.Validate(ctx, cookie); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("revoked session should be invalid, got %v", err)
	}

	// Revoking again, or revoking garbage, is a no-op.
	if err := f.service.Revoke(ctx, cookie); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := f.service.Revoke(ctx, "not-a-token"); err != nil {
		t.Fatalf("garbage revoke: %v", err)
	}
}
