package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/logger"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/repository"
)

// LoginService authenticates credentials under the two-level throttle: a
// per-address blacklist consulted first, then a per-username lock, and only
// then the hash comparison.
type LoginService struct {
	accounts        port.AccountRepository
	accountAttempts port.AccountAttemptRepository
	originAttempts  port.OriginAttemptRepository
	hasher          *security.Hasher
	publisher       port.EventPublisher
	lockout         config.LockoutSettings
	now             func() time.Time
}

// NewLoginService constructs a LoginService instance.
func NewLoginService(
	accounts port.AccountRepository,
	accountAttempts port.AccountAttemptRepository,
	originAttempts port.OriginAttemptRepository,
	hasher *security.Hasher,
	publisher port.EventPublisher,
	lockout config.LockoutSettings,
) *LoginService {
	return &LoginService{
		accounts:        accounts,
		accountAttempts: accountAttempts,
		originAttempts:  originAttempts,
		hasher:          hasher,
		publisher:       publisher,
		lockout:         lockout,
		now:             time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *LoginService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// LoginInput carries the credentials and request origin for a login attempt.
type LoginInput struct {
	Username  string
	Password  string
	Remember  bool
	IP        string
	UserAgent string
}

// Login verifies the credentials. Failures are indistinguishable to the
// caller: an unknown username, a locked username, and a wrong password all
// come back as a generic failure, and the decoy hash comparison keeps the
// unknown-username path on the same timing as a real one.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*domain.Account, error) {
	now := s.now().UTC()

	if err := s.checkOrigin(ctx, input.IP, now); err != nil {
		return nil, err
	}

	// Reject malformed input before touching any tracker; garbage submissions
	// are not counted as guessing attempts.
	if input.Username == "" || input.Password == "" ||
		security.ContainsForbiddenBytes(input.Username) || security.ContainsForbiddenBytes(input.Password) {
		return nil, ErrInvalidCredentials
	}

	tracker, err := s.accountAttempts.Get(ctx, input.Username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load username tracker: %w", err)
	}
	if tracker != nil && tracker.Locked(now) {
		// The credential is never verified while the lock holds.
		return nil, ErrAccountLocked
	}

	account, err := s.accounts.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(input.Password)
			// Only the origin is tracked for usernames that were never
			// registered; creating username rows here would let an attacker
			// grow unbounded state.
			s.recordOriginFailure(ctx, input.IP, now)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if account.Locked(now) {
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordUsernameFailure(ctx, account, now)
		s.recordOriginFailure(ctx, input.IP, now)
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.ClearFailures(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("clear account failures: %w", err)
	}
	// Success wipes both trackers rather than zeroing them; absent rows keep
	// the tables small and make the purge sweep cheap.
	if err := s.accountAttempts.Delete(ctx, input.Username); err != nil {
		logger.WithContext(ctx).Warn("delete username tracker",
			zap.String("username", logger.MaskUsername(input.Username)), zap.Error(err))
	}
	if input.IP != "" {
		if err := s.originAttempts.Delete(ctx, input.IP); err != nil {
			logger.WithContext(ctx).Warn("delete origin tracker",
				zap.String("ip", logger.MaskIP(input.IP)), zap.Error(err))
		}
	}

	return account, nil
}

// ProbeInput carries the credentials for a lock-status probe.
type ProbeInput struct {
	Username string
	Password string
}

// Probe verifies credentials against the account-embedded counters and, when
// the account is locked, discloses the remaining lock time. This is the only
// path that does; Login stays opaque.
func (s *LoginService) Probe(ctx context.Context, input ProbeInput) (*domain.Account, error) {
	now := s.now().UTC()

	if input.Username == "" || input.Password == "" ||
		security.ContainsForbiddenBytes(input.Username) || security.ContainsForbiddenBytes(input.Password) {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(input.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if account.Locked(now) {
		return nil, &LockoutError{RetryAfter: account.LockUntil.Sub(now)}
	}

	ok, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		attempts, err := s.accounts.RecordFailure(ctx, account.ID, now)
		if err != nil {
			return nil, fmt.Errorf("record account failure: %w", err)
		}
		if attempts >= s.lockout.AccountThreshold {
			until := now.Add(s.lockout.AccountLockDuration)
			if err := s.accounts.Lock(ctx, account.ID, until); err != nil {
				return nil, fmt.Errorf("lock account: %w", err)
			}
			s.publishAccountLocked(ctx, account.Username, attempts, now, until)
			return nil, &LockoutError{RetryAfter: s.lockout.AccountLockDuration}
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.ClearFailures(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("clear account failures: %w", err)
	}

	return account, nil
}

func (s *LoginService) checkOrigin(ctx context.Context, ip string, now time.Time) error {
	if ip == "" {
		return nil
	}

	record, err := s.originAttempts.Get(ctx, ip)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load origin tracker: %w", err)
	}
	if record.Blacklisted(now) {
		return ErrOriginBlacklisted
	}

	return nil
}

func (s *LoginService) recordUsernameFailure(ctx context.Context, account *domain.Account, now time.Time) {
	log := logger.WithContext(ctx)

	until := now.Add(s.lockout.AccountLockDuration)
	accountLocked := false

	// The embedded counter locks on its own; the account stays protected even
	// when the standalone tracker row is missing or unreachable.
	attempts, err := s.accounts.RecordFailure(ctx, account.ID, now)
	if err != nil {
		log.Warn("record account failure", zap.Error(err))
	} else if attempts >= s.lockout.AccountThreshold {
		if err := s.accounts.Lock(ctx, account.ID, until); err != nil {
			log.Warn("lock account", zap.Error(err))
		} else {
			accountLocked = true
			s.publishAccountLocked(ctx, account.Username, attempts, now, until)
		}
	}

	tracker, err := s.accountAttempts.Increment(ctx, account.Username, now)
	if err != nil {
		log.Warn("increment username tracker",
			zap.String("username", logger.MaskUsername(account.Username)), zap.Error(err))
		return
	}

	if tracker.Attempts >= s.lockout.AccountThreshold && !tracker.Locked(now) {
		// Lock resets the counter in the same write; a concurrent request that
		// already locked the row wins and this write becomes a no-op.
		if err := s.accountAttempts.Lock(ctx, account.Username, until, now); err != nil {
			log.Warn("lock username tracker",
				zap.String("username", logger.MaskUsername(account.Username)), zap.Error(err))
			return
		}
		if !accountLocked {
			if err := s.accounts.Lock(ctx, account.ID, until); err != nil {
				log.Warn("lock account", zap.Error(err))
			}
			s.publishAccountLocked(ctx, account.Username, tracker.Attempts, now, until)
		}
	}
}

func (s *LoginService) recordOriginFailure(ctx context.Context, ip string, now time.Time) {
	if ip == "" {
		return
	}

	log := logger.WithContext(ctx)

	record, err := s.originAttempts.Increment(ctx, ip, now)
	if err != nil {
		log.Warn("increment origin tracker", zap.String("ip", logger.MaskIP(ip)), zap.Error(err))
		return
	}

	if record.Attempts >= s.lockout.OriginThreshold && !record.Blacklisted(now) {
		until := now.Add(s.lockout.OriginBlacklistDuration)
		if err := s.originAttempts.Blacklist(ctx, ip, until, now); err != nil {
			log.Warn("blacklist origin", zap.String("ip", logger.MaskIP(ip)), zap.Error(err))
			return
		}
		if err := s.publisher.PublishOriginBlacklisted(ctx, domain.OriginBlacklistedEvent{
			Address:       ip,
			Attempts:      record.Attempts,
			BlacklistedAt: now,
		}); err != nil {
			log.Warn("publish origin blacklisted", zap.Error(err))
		}
	}
}

func (s *LoginService) publishAccountLocked(ctx context.Context, username string, attempts int, now, until time.Time) {
	if err := s.publisher.PublishAccountLocked(ctx, domain.AccountLockedEvent{
		Username:  username,
		Attempts:  attempts,
		LockedAt:  now,
		LockUntil: until,
	}); err != nil {
		logger.WithContext(ctx).Warn("publish account locked", zap.Error(err))
	}
}
