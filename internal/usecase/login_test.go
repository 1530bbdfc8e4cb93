package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/repository"
)

func testLockoutSettings() config.LockoutSettings {
	return config.LockoutSettings{
		AccountThreshold:        5,
		AccountLockDuration:     5 * time.Minute,
		AccountAttemptRetention: 720 * time.Hour,
		OriginThreshold:         20,
		OriginBlacklistDuration: 30 * time.Minute,
	}
}

func testHasher(t *testing.T) *security.Hasher {
	t.Helper()

	hasher, err := security.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("create hasher: %v", err)
	}
	return hasher
}

type loginFixture struct {
	service         *LoginService
	accounts        *stubAccountRepo
	accountAttempts *stubAccountAttempts
	originAttempts  *stubOriginAttempts
	publisher       *stubPublisher
	hasher          *security.Hasher
	now             time.Time
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()

	f := &loginFixture{
		accounts:        newStubAccountRepo(),
		accountAttempts: newStubAccountAttempts(),
		originAttempts:  newStubOriginAttempts(),
		publisher:       &stubPublisher{},
		hasher:          testHasher(t),
		now:             time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.service = NewLoginService(
		f.accounts, f.accountAttempts, f.originAttempts,
		f.hasher, f.publisher, testLockoutSettings(),
	)
	f.service.WithClock(func() time.Time { return f.now })
	return f
}

func (f *loginFixture) seedAccount(t *testing.T, username, password string) *domain.Account {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := domain.Account{
		ID:                 "acct-" + username,
		Username:           username,
		PasswordHash:       hash,
		Role:               domain.RoleReviewer,
		LastPasswordChange: f.now.Add(-48 * time.Hour),
		CreatedAt:          f.now.Add(-96 * time.Hour),
	}
	if err := f.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return &account
}

func TestLoginSuccessClearsTrackers(t *testing.T) {
	f := newLoginFixture(t)
	f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	// Two failures first so there is tracker state to clear.
	for i := 0; i < 2; i++ {
		if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "wrong-guess1!", IP: "203.0.113.7"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials, got %v", err)
		}
	}

	account, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "Sup3r#ecret!", IP: "203.0.113.7"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if account.Username != "alnewman" {
		t.Fatalf("unexpected account %q", account.Username)
	}

	if _, err := f.accountAttempts.Get(ctx, "alnewman"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("username tracker should be deleted, got %v", err)
	}
	if _, err := f.originAttempts.Get(ctx, "203.0.113.7"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("origin tracker should be deleted, got %v", err)
	}

	stored, err := f.accounts.GetByUsername(ctx, "alnewman")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected zeroed counter, got %d", stored.FailedLoginAttempts)
	}
	if stored.LastSuccessfulLogin == nil {
		t.Fatal("expected successful login stamp")
	}
}

func TestLoginLocksUsernameAfterThreshold(t *testing.T) {
	f := newLoginFixture(t)
	f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "wrong-guess1!", IP: "203.0.113.7"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	tracker, err := f.accountAttempts.Get(ctx, "alnewman")
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if tracker.LockUntil == nil {
		t.Fatal("expected tracker lock after fifth failure")
	}
	if got, want := *tracker.LockUntil, f.now.Add(5*time.Minute); !got.Equal(want) {
		t.Fatalf("lock until %v, want %v", got, want)
	}
	if tracker.Attempts != 0 {
		t.Fatalf("lock should reset the counter, got %d", tracker.Attempts)
	}

	if len(f.publisher.locked) != 1 {
		t.Fatalf("expected one lock event, got %d", len(f.publisher.locked))
	}
	if f.publisher.locked[0].Attempts != 5 {
		t.Fatalf("lock event attempts = %d, want 5", f.publisher.locked[0].Attempts)
	}

	// While locked even the correct password is rejected without being verified.
	if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "Sup3r#ecret!", IP: "203.0.113.7"}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected locked error, got %v", err)
	}
	tracker, err = f.accountAttempts.Get(ctx, "alnewman")
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if tracker.Attempts != 0 {
		t.Fatalf("locked attempt must not increment, got %d", tracker.Attempts)
	}
}

func TestLoginLocksFromAccountCounterWithoutTracker(t *testing.T) {
	f := newLoginFixture(t)
	account := f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	// Four failures already sit on the account row while the standalone
	// tracker row is gone, as after a purge sweep.
	for i := 0; i < 4; i++ {
		if _, err := f.accounts.RecordFailure(ctx, account.ID, f.now); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if _, err := f.accountAttempts.Get(ctx, "alnewman"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("tracker row must be absent for this scenario")
	}

	if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "wrong-guess1!", IP: "203.0.113.7"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	stored, err := f.accounts.GetByUsername(ctx, "alnewman")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if stored.LockUntil == nil {
		t.Fatal("account counter reached the threshold, expected a lock")
	}
	if got, want := *stored.LockUntil, f.now.Add(5*time.Minute); !got.Equal(want) {
		t.Fatalf("lock until %v, want %v", got, want)
	}
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("lock should reset the embedded counter, got %d", stored.FailedLoginAttempts)
	}

	if len(f.publisher.locked) != 1 {
		t.Fatalf("expected one lock event, got %d", len(f.publisher.locked))
	}
	if f.publisher.locked[0].Attempts != 5 {
		t.Fatalf("lock event attempts = %d, want 5", f.publisher.locked[0].Attempts)
	}

	if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "Sup3r#ecret!", IP: "203.0.113.7"}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected locked error, got %v", err)
	}
}

func TestLoginLockExpiresAndCountsFresh(t *testing.T) {
	f := newLoginFixture(t)
	f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "wrong-guess1!", IP: "203.0.113.7"})
	}

	f.now = f.now.Add(6 * time.Minute)

	if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "wrong-guess1!", IP: "203.0.113.7"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials after lock expiry, got %v", err)
	}

	tracker, err := f.accountAttempts.Get(ctx, "alnewman")
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if tracker.Attempts != 1 {
		t.Fatalf("post-lock window should restart at 1, got %d", tracker.Attempts)
	}
}

func TestLoginUnknownUsernameTracksOriginOnly(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, LoginInput{Username: "ghost", Password: "wrong-guess1!", IP: "203.0.113.7"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	if _, err := f.accountAttempts.Get(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unregistered username must not grow tracker state, got %v", err)
	}

	origin, err := f.originAttempts.Get(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("load origin tracker: %v", err)
	}
	if origin.Attempts != 1 {
		t.Fatalf("origin attempts = %d, want 1", origin.Attempts)
	}
}

func TestLoginBlacklistsOriginAfterThreshold(t *testing.T) {
	f := newLoginFixture(t)
	f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	// Spread failures over unknown usernames so only the origin accumulates.
	for i := 0; i < 20; i++ {
		_, _ = f.service.Login(ctx, LoginInput{Username: "ghost", Password: "wrong-guess1!", IP: "203.0.113.9"})
	}

	origin, err := f.originAttempts.Get(ctx, "203.0.113.9")
	if err != nil {
		t.Fatalf("load origin tracker: %v", err)
	}
	if origin.BlacklistUntil == nil {
		t.Fatal("expected blacklist after twentieth failure")
	}
	if len(f.publisher.blacklisted) != 1 {
		t.Fatalf("expected one blacklist event, got %d", len(f.publisher.blacklisted))
	}

	// A blacklisted address is refused before any account state is consulted,
	// correct password included.
	if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "Sup3r#ecret!", IP: "203.0.113.9"}); !errors.Is(err, ErrOriginBlacklisted) {
		t.Fatalf("expected blacklisted error, got %v", err)
	}

	// Other addresses are unaffected.
	if _, err := f.service.Login(ctx, LoginInput{Username: "alnewman", Password: "Sup3r#ecret!", IP: "198.51.100.4"}); err != nil {
		t.Fatalf("other origin should log in, got %v", err)
	}
}

func TestLoginRejectsMalformedInputWithoutTracking(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	cases := []LoginInput{
		{Username: "", Password: "Sup3r#ecret!", IP: "203.0.113.7"},
		{Username: "alnewman", Password: "", IP: "203.0.113.7"},
		{Username: "al\x00newman", Password: "Sup3r#ecret!", IP: "203.0.113.7"},
		{Username: "alnewman", Password: "pa[ss]word1!", IP: "203.0.113.7"},
	}
	for _, input := range cases {
		if _, err := f.service.Login(ctx, input); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("input %+v: expected invalid credentials, got %v", input, err)
		}
	}

	if _, err := f.originAttempts.Get(ctx, "203.0.113.7"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("malformed input must not count as guessing, got %v", err)
	}
}

func TestProbeDisclosesLockCountdown(t *testing.T) {
	f := newLoginFixture(t)
	f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := f.service.Probe(ctx, ProbeInput{Username: "alnewman", Password: "wrong-guess1!"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	_, err := f.service.Probe(ctx, ProbeInput{Username: "alnewman", Password: "wrong-guess1!"})
	var lockErr *LockoutError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected lockout error on fifth failure, got %v", err)
	}
	if lockErr.RetryAfter != 5*time.Minute {
		t.Fatalf("retry after %v, want 5m", lockErr.RetryAfter)
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("lockout error should match ErrAccountLocked")
	}

	// A later probe reports the shrinking countdown.
	f.now = f.now.Add(2 * time.Minute)
	_, err = f.service.Probe(ctx, ProbeInput{Username: "alnewman", Password: "Sup3r#ecret!"})
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected lockout error while locked, got %v", err)
	}
	if lockErr.RetryAfter != 3*time.Minute {
		t.Fatalf("retry after %v, want 3m", lockErr.RetryAfter)
	}
}

func TestProbeSuccessResetsCounter(t *testing.T) {
	f := newLoginFixture(t)
	seeded := f.seedAccount(t, "alnewman", "Sup3r#ecret!")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = f.service.Probe(ctx, ProbeInput{Username: "alnewman", Password: "wrong-guess1!"})
	}

	account, err := f.service.Probe(ctx, ProbeInput{Username: "alnewman", Password: "Sup3r#ecret!"})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if account.ID != seeded.ID {
		t.Fatalf("unexpected account %q", account.ID)
	}

	stored, err := f.accounts.GetByID(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected zeroed counter, got %d", stored.FailedLoginAttempts)
	}
}

func TestProbeUnknownUsernameStaysGeneric(t *testing.T) {
	f := newLoginFixture(t)

	if _, err := f.service.Probe(context.Background(), ProbeInput{Username: "ghost", Password: "wrong-guess1!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
