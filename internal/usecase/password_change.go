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

// PasswordChangeService rotates passwords for authenticated accounts under a
// change cooldown and the reuse window.
type PasswordChangeService struct {
	accounts  port.AccountRepository
	hasher    *security.Hasher
	policy    *security.PasswordPolicy
	publisher port.EventPublisher
	password  config.PasswordSettings
	now       func() time.Time
}

// NewPasswordChangeService constructs a PasswordChangeService instance.
func NewPasswordChangeService(
	accounts port.AccountRepository,
	hasher *security.Hasher,
	policy *security.PasswordPolicy,
	publisher port.EventPublisher,
	password config.PasswordSettings,
) *PasswordChangeService {
	return &PasswordChangeService{
		accounts:  accounts,
		hasher:    hasher,
		policy:    policy,
		publisher: publisher,
		password:  password,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordChangeService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ChangeInput carries a self-service password change request.
type ChangeInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
	Confirm         string
}

// Change rotates the password after the cooldown, current-password, policy,
// and reuse checks pass, in that order. The cooldown runs first so an
// attacker with a stolen session cannot use repeated attempts to probe the
// current password.
func (s *PasswordChangeService) Change(ctx context.Context, input ChangeInput) error {
	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidSession
		}
		return fmt.Errorf("load account: %w", err)
	}

	now := s.now().UTC()
	if s.password.ChangeCooldown > 0 {
		elapsed := now.Sub(account.LastPasswordChange)
		if elapsed < s.password.ChangeCooldown {
			return &CooldownError{Remaining: s.password.ChangeCooldown - elapsed}
		}
	}

	ok, err := s.hasher.Verify(input.CurrentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return ErrCurrentPasswordInvalid
	}

	if err := s.policy.ValidatePassword(input.NewPassword); err != nil {
		return err
	}
	if input.NewPassword != input.Confirm {
		return ErrPasswordMismatch
	}

	reused, err := passwordReused(ctx, s.accounts, s.hasher, account, input.NewPassword)
	if err != nil {
		return err
	}
	if reused {
		return ErrPasswordReuse
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.RotatePassword(ctx, account.ID, hash, now); err != nil {
		return fmt.Errorf("rotate password: %w", err)
	}

	if err := s.publisher.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
		AccountID: account.ID,
		ChangedAt: now,
		ChangedBy: "self",
	}); err != nil {
		logger.WithContext(ctx).Warn("publish password changed", zap.Error(err))
	}

	return nil
}
