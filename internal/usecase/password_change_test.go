package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/security"
)

type changeFixture struct {
	service   *PasswordChangeService
	accounts  *stubAccountRepo
	publisher *stubPublisher
	hasher    *security.Hasher
	now       time.Time
}

func newChangeFixture(t *testing.T) *changeFixture {
	t.Helper()

	f := &changeFixture{
		accounts:  newStubAccountRepo(),
		publisher: &stubPublisher{},
		hasher:    testHasher(t),
		now:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.service = NewPasswordChangeService(
		f.accounts, f.hasher, security.NewPasswordPolicy(0), f.publisher,
		config.PasswordSettings{BcryptCost: security.DefaultBcryptCost, ChangeCooldown: 24 * time.Hour},
	)
	f.service.WithClock(func() time.Time { return f.now })
	return f
}

func (f *changeFixture) seedAccount(t *testing.T, password string, lastChange time.Time) *domain.Account {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := domain.Account{
		ID:                 "acct-1",
		Username:           "alnewman",
		PasswordHash:       hash,
		Role:               domain.RoleReviewer,
		LastPasswordChange: lastChange,
	}
	if err := f.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return &account
}

func TestPasswordChangeSuccess(t *testing.T) {
	f := newChangeFixture(t)
	f.seedAccount(t, "Sup3r#ecret!", f.now.Add(-48*time.Hour))
	ctx := context.Background()

	if err := f.service.Change(ctx, ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: "Sup3r#ecret!",
		NewPassword:     "Fresh#ecret9",
		Confirm:         "Fresh#ecret9",
	}); err != nil {
		t.Fatalf("change failed: %v", err)
	}

	account, err := f.accounts.GetByID(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if ok, _ := f.hasher.Verify("Fresh#ecret9", account.PasswordHash); !ok {
		t.Fatal("new password should verify")
	}
	if !account.LastPasswordChange.Equal(f.now) {
		t.Fatalf("change stamp %v, want %v", account.LastPasswordChange, f.now)
	}

	if len(f.publisher.changed) != 1 || f.publisher.changed[0].ChangedBy != "self" {
		t.Fatalf("expected one self change event, got %+v", f.publisher.changed)
	}
}

func TestPasswordChangeCooldown(t *testing.T) {
	f := newChangeFixture(t)
	f.seedAccount(t, "Sup3r#ecret!", f.now.Add(-90*time.Minute))
	ctx := context.Background()

	err := f.service.Change(ctx, ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: "Sup3r#ecret!",
		NewPassword:     "Fresh#ecret9",
		Confirm:         "Fresh#ecret9",
	})
	var cooldown *CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	// 22.5 hours remain; the message reports whole hours, rounded up.
	if cooldown.RemainingHours() != 23 {
		t.Fatalf("remaining hours = %d, want 23", cooldown.RemainingHours())
	}

	// The cooldown fires before the current password is checked, so a wrong
	// password gets the same response.
	err = f.service.Change(ctx, ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: "wrong-guess1!",
		NewPassword:     "Fresh#ecret9",
		Confirm:         "Fresh#ecret9",
	})
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
}

func TestPasswordChangeWrongCurrentPassword(t *testing.T) {
	f := newChangeFixture(t)
	f.seedAccount(t, "Sup3r#ecret!", f.now.Add(-48*time.Hour))

	if err := f.service.Change(context.Background(), ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: "wrong-guess1!",
		NewPassword:     "Fresh#ecret9",
		Confirm:         "Fresh#ecret9",
	}); !errors.Is(err, ErrCurrentPasswordInvalid) {
		t.Fatalf("expected current password error, got %v", err)
	}
}

func TestPasswordChangeMismatchedConfirmation(t *testing.T) {
	f := newChangeFixture(t)
	f.seedAccount(t, "Sup3r#ecret!", f.now.Add(-48*time.Hour))

	if err := f.service.Change(context.Background(), ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: "Sup3r#ecret!",
		NewPassword:     "Fresh#ecret9",
		Confirm:         "0ther#ecret9",
	}); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestPasswordChangeReuseWindow(t *testing.T) {
	f := newChangeFixture(t)
	f.seedAccount(t, "Original#ecret0", f.now.Add(-48*time.Hour))
	ctx := context.Background()

	// Walk through eleven rotations so the original hash ages out of the
	// ten-entry history window.
	current := "Original#ecret0"
	for i := 1; i <= 11; i++ {
		next := fmt.Sprintf("Rotated#ecret%d", i)
		if err := f.service.Change(ctx, ChangeInput{
			AccountID:       "acct-1",
			CurrentPassword: current,
			NewPassword:     next,
			Confirm:         next,
		}); err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		current = next
		f.now = f.now.Add(25 * time.Hour)
	}

	// The most recent retired passwords are still blocked.
	if err := f.service.Change(ctx, ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: current,
		NewPassword:     "Rotated#ecret11",
		Confirm:         "Rotated#ecret11",
	}); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("current password should be blocked, got %v", err)
	}
	if err := f.service.Change(ctx, ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: current,
		NewPassword:     "Rotated#ecret5",
		Confirm:         "Rotated#ecret5",
	}); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("retired password inside the window should be blocked, got %v", err)
	}

	// The original password fell out of the window and is accepted again.
	if err := f.service.Change(ctx, ChangeInput{
		AccountID:       "acct-1",
		CurrentPassword: current,
		NewPassword:     "Original#ecret0",
		Confirm:         "Original#ecret0",
	}); err != nil {
		t.Fatalf("password outside the window should be accepted: %v", err)
	}
}

func TestPasswordChangeUnknownAccount(t *testing.T) {
	f := newChangeFixture(t)

	if err := f.service.Change(context.Background(), ChangeInput{
		AccountID:       "no-such-account",
		CurrentPassword: "Sup3r#ecret!",
		NewPassword:     "Fresh#ecret9",
		Confirm:         "Fresh#ecret9",
	}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session, got %v", err)
	}
}
