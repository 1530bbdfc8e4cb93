package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/logger"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/repository"
)

// RecoveryService runs knowledge-based password recovery. Stage one verifies
// the recovery question and answer and issues a reset grant; stage two redeems
// the grant for a password rotation.
type RecoveryService struct {
	accounts  port.AccountRepository
	attempts  port.AccountAttemptRepository
	grants    port.GrantStore
	hasher    *security.Hasher
	policy    *security.PasswordPolicy
	publisher port.EventPublisher
	session   config.SessionSettings
	now       func() time.Time
}

// NewRecoveryService constructs a RecoveryService instance.
func NewRecoveryService(
	accounts port.AccountRepository,
	attempts port.AccountAttemptRepository,
	grants port.GrantStore,
	hasher *security.Hasher,
	policy *security.PasswordPolicy,
	publisher port.EventPublisher,
	session config.SessionSettings,
) *RecoveryService {
	return &RecoveryService{
		accounts:  accounts,
		attempts:  attempts,
		grants:    grants,
		hasher:    hasher,
		policy:    policy,
		publisher: publisher,
		session:   session,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RecoveryStartInput carries stage-one recovery data.
type RecoveryStartInput struct {
	Username string
	Question string
	Answer   string
	IP       string
}

// Start verifies the recovery question and answer and issues a reset grant.
// An unknown username burns a decoy hash comparison and fails with the same
// error as a wrong answer, so the response never confirms whether the
// username exists.
func (s *RecoveryService) Start(ctx context.Context, input RecoveryStartInput) (string, error) {
	username, err := s.policy.ValidateUsername(input.Username)
	if err != nil {
		return "", ErrRecoveryMismatch
	}
	if !domain.KnownRecoveryQuestion(input.Question) {
		return "", ErrUnknownQuestion
	}
	answer, err := s.policy.ValidateRecoveryAnswer(input.Answer, domain.NormalizeRecoveryAnswer)
	if err != nil {
		return "", ErrRecoveryMismatch
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(answer)
			return "", ErrRecoveryMismatch
		}
		return "", fmt.Errorf("load account: %w", err)
	}

	if account.RecoveryQuestion != input.Question {
		// Still burn the comparison so a wrong question costs the same as a
		// wrong answer.
		s.hasher.VerifyDummy(answer)
		return "", ErrRecoveryMismatch
	}

	ok, err := s.hasher.Verify(answer, account.RecoveryAnswerHash)
	if err != nil {
		return "", fmt.Errorf("verify recovery answer: %w", err)
	}
	if !ok {
		return "", ErrRecoveryMismatch
	}

	now := s.now().UTC()
	grant := domain.ResetGrant{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Username:  account.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.session.GrantTTL),
	}
	if err := s.grants.StoreResetGrant(ctx, grant, s.session.GrantTTL); err != nil {
		return "", fmt.Errorf("store reset grant: %w", err)
	}

	event := domain.PasswordResetGrantedEvent{
		AccountID: account.ID,
		GrantID:   grant.ID,
		GrantedAt: now,
		ExpiresAt: now.Add(s.session.GrantTTL),
	}
	if input.IP != "" {
		ip := input.IP
		event.IPAddress = &ip
	}
	if err := s.publisher.PublishPasswordResetGranted(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish password reset granted", zap.Error(err))
	}

	return grant.ID, nil
}

// RecoveryCompleteInput carries stage-two recovery data.
type RecoveryCompleteInput struct {
	GrantID     string
	NewPassword string
	Confirm     string
}

// Complete redeems a reset grant and rotates the password. The grant is
// consumed as soon as it is fetched, before the new password is validated, so
// a rejected password still spends the grant and the caller must restart.
// A successful rotation clears the account's failure lock and deletes its
// attempt tracker record, so the proven owner can sign in immediately.
func (s *RecoveryService) Complete(ctx context.Context, input RecoveryCompleteInput) (*domain.Account, error) {
	grant, err := s.grants.FetchResetGrant(ctx, input.GrantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantExpired
		}
		return nil, fmt.Errorf("fetch reset grant: %w", err)
	}
	if err := s.grants.DeleteResetGrant(ctx, input.GrantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Another redemption got there first.
			return nil, ErrGrantExpired
		}
		return nil, fmt.Errorf("consume reset grant: %w", err)
	}

	if err := s.policy.ValidatePassword(input.NewPassword); err != nil {
		return nil, err
	}
	if input.NewPassword != input.Confirm {
		return nil, ErrPasswordMismatch
	}

	account, err := s.accounts.GetByID(ctx, grant.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantExpired
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	reused, err := passwordReused(ctx, s.accounts, s.hasher, account, input.NewPassword)
	if err != nil {
		return nil, err
	}
	if reused {
		return nil, ErrPasswordReuse
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.RotatePassword(ctx, account.ID, hash, now); err != nil {
		return nil, fmt.Errorf("rotate password: %w", err)
	}

	if err := s.attempts.Delete(ctx, account.Username); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		logger.WithContext(ctx).Warn("clear attempt tracker after reset",
			zap.String("username", logger.MaskUsername(account.Username)), zap.Error(err))
	}

	if err := s.publisher.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
		AccountID: account.ID,
		ChangedAt: now,
		ChangedBy: "recovery",
	}); err != nil {
		logger.WithContext(ctx).Warn("publish password changed", zap.Error(err))
	}

	account.PasswordHash = hash
	account.LastPasswordChange = now
	account.FailedLoginAttempts = 0
	account.LockUntil = nil

	return account, nil
}

// passwordReused reports whether the candidate matches the current password
// or any retained history entry.
func passwordReused(
	ctx context.Context,
	accounts port.AccountRepository,
	hasher *security.Hasher,
	account *domain.Account,
	candidate string,
) (bool, error) {
	match, err := hasher.Verify(candidate, account.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("compare current password: %w", err)
	}
	if match {
		return true, nil
	}

	history, err := accounts.ListPasswordHistory(ctx, account.ID, domain.PasswordHistoryLimit)
	if err != nil {
		return false, fmt.Errorf("list password history: %w", err)
	}
	for _, entry := range history {
		match, err := hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("compare password history: %w", err)
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}
