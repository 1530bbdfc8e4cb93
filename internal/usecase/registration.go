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

// RegistrationService runs the two-stage signup flow. Stage one validates the
// credentials and parks them behind a short-lived grant; stage two redeems the
// grant with a recovery question and answer and creates the account.
type RegistrationService struct {
	accounts  port.AccountRepository
	grants    port.GrantStore
	hasher    *security.Hasher
	policy    *security.PasswordPolicy
	publisher port.EventPublisher
	session   config.SessionSettings
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	accounts port.AccountRepository,
	grants port.GrantStore,
	hasher *security.Hasher,
	policy *security.PasswordPolicy,
	publisher port.EventPublisher,
	session config.SessionSettings,
) *RegistrationService {
	return &RegistrationService{
		accounts:  accounts,
		grants:    grants,
		hasher:    hasher,
		policy:    policy,
		publisher: publisher,
		session:   session,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// StartInput carries stage-one registration data. Remember is captured here
// and applied to the session established when the registration completes.
type StartInput struct {
	Username string
	Password string
	Confirm  string
	Role     domain.Role
	Remember bool
}

// Start validates the username and password, checks availability, and stores
// a pending registration. The returned grant ID redeems it in Complete.
// Availability here is advisory only; the unique constraint at Complete is
// what actually decides a race.
func (s *RegistrationService) Start(ctx context.Context, input StartInput) (string, error) {
	username, err := s.policy.ValidateUsername(input.Username)
	if err != nil {
		return "", err
	}
	if err := s.policy.ValidatePassword(input.Password); err != nil {
		return "", err
	}
	if input.Password != input.Confirm {
		return "", ErrPasswordMismatch
	}

	role := input.Role
	if role == "" {
		role = domain.RoleReviewer
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return "", ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("check username availability: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	createdAt := s.now().UTC()
	pending := domain.PendingRegistration{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Remember:     input.Remember,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(s.session.GrantTTL),
	}
	if err := s.grants.StorePendingRegistration(ctx, pending, s.session.GrantTTL); err != nil {
		return "", fmt.Errorf("store pending registration: %w", err)
	}

	return pending.ID, nil
}

// CompleteInput carries stage-two registration data.
type CompleteInput struct {
	GrantID  string
	Question string
	Answer   string
}

// Complete redeems a pending registration and creates the account, returning
// the account and the remember preference captured at stage one. Invalid
// question or answer input leaves the grant in place so the caller can retry
// within the TTL; a username conflict consumes it, since the grant can never
// succeed once the name is taken.
func (s *RegistrationService) Complete(ctx context.Context, input CompleteInput) (*domain.Account, bool, error) {
	pending, err := s.grants.FetchPendingRegistration(ctx, input.GrantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrGrantExpired
		}
		return nil, false, fmt.Errorf("fetch pending registration: %w", err)
	}

	if !domain.KnownRecoveryQuestion(input.Question) {
		return nil, false, ErrUnknownQuestion
	}
	answer, err := s.policy.ValidateRecoveryAnswer(input.Answer, domain.NormalizeRecoveryAnswer)
	if err != nil {
		return nil, false, err
	}

	answerHash, err := s.hasher.Hash(answer)
	if err != nil {
		return nil, false, fmt.Errorf("hash recovery answer: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:                 uuid.NewString(),
		Username:           pending.Username,
		PasswordHash:       pending.PasswordHash,
		Role:               pending.Role,
		RecoveryQuestion:   input.Question,
		RecoveryAnswerHash: answerHash,
		LastPasswordChange: now,
		CreatedAt:          now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.consumeGrant(ctx, input.GrantID)
			return nil, false, ErrUsernameTaken
		}
		return nil, false, fmt.Errorf("create account: %w", err)
	}

	s.consumeGrant(ctx, input.GrantID)

	if err := s.publisher.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
		AccountID:    account.ID,
		Username:     account.Username,
		Role:         string(account.Role),
		RegisteredAt: now,
	}); err != nil {
		logger.WithContext(ctx).Warn("publish account registered", zap.Error(err))
	}

	return &account, pending.Remember, nil
}

// UsernameAvailable reports whether a username is free to register. The
// answer is advisory and may be stale by the time registration completes.
func (s *RegistrationService) UsernameAvailable(ctx context.Context, rawUsername string) (bool, error) {
	username, err := s.policy.ValidateUsername(rawUsername)
	if err != nil {
		return false, err
	}

	if _, err := s.accounts.GetByUsername(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("check username availability: %w", err)
	}

	return false, nil
}

func (s *RegistrationService) consumeGrant(ctx context.Context, grantID string) {
	if err := s.grants.DeletePendingRegistration(ctx, grantID); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		logger.WithContext(ctx).Warn("delete pending registration", zap.Error(err))
	}
}
