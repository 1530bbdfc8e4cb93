package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/repository"
)

// stubAccountRepo is an in-memory AccountRepository used across the service
// tests.
type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	history  map[string][]domain.PasswordHistoryEntry
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{
		accounts: make(map[string]*domain.Account),
		history:  make(map[string][]domain.PasswordHistoryEntry),
	}
}

func (r *stubAccountRepo) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Username == account.Username {
			return repository.ErrDuplicate
		}
	}

	copy := account
	r.accounts[account.ID] = &copy
	return nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *account
	return &copy, nil
}

func (r *stubAccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.Username == username {
			copy := *account
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepo) RecordFailure(_ context.Context, id string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	account.FailedLoginAttempts++
	attempt := at
	account.LastLoginAttempt = &attempt
	return account.FailedLoginAttempts, nil
}

func (r *stubAccountRepo) Lock(_ context.Context, id string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	lock := until
	account.LockUntil = &lock
	account.FailedLoginAttempts = 0
	return nil
}

func (r *stubAccountRepo) ClearFailures(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.FailedLoginAttempts = 0
	account.LockUntil = nil
	stamp := at
	account.LastLoginAttempt = &stamp
	account.LastSuccessfulLogin = &stamp
	return nil
}

func (r *stubAccountRepo) RotatePassword(_ context.Context, id, newHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}

	r.history[id] = append(r.history[id], domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		AccountID:    id,
		PasswordHash: account.PasswordHash,
		SetAt:        changedAt,
	})
	entries := r.history[id]
	sort.Slice(entries, func(i, j int) bool { return entries[i].SetAt.After(entries[j].SetAt) })
	if len(entries) > domain.PasswordHistoryLimit {
		entries = entries[:domain.PasswordHistoryLimit]
	}
	r.history[id] = entries

	account.PasswordHash = newHash
	account.LastPasswordChange = changedAt
	account.FailedLoginAttempts = 0
	account.LockUntil = nil
	return nil
}

func (r *stubAccountRepo) ListPasswordHistory(_ context.Context, id string, limit int) ([]domain.PasswordHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.history[id]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.PasswordHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (r *stubAccountRepo) UpdateRecovery(_ context.Context, id, question, answerHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.RecoveryQuestion = question
	account.RecoveryAnswerHash = answerHash
	return nil
}

// stubAccountAttempts is an in-memory AccountAttemptRepository.
type stubAccountAttempts struct {
	mu      sync.Mutex
	records map[string]*domain.AccountAttempt
}

func newStubAccountAttempts() *stubAccountAttempts {
	return &stubAccountAttempts{records: make(map[string]*domain.AccountAttempt)}
}

func (r *stubAccountAttempts) Increment(_ context.Context, username string, at time.Time) (*domain.AccountAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[username]
	if !ok {
		record = &domain.AccountAttempt{Username: username}
		r.records[username] = record
	}
	record.Attempts++
	record.UpdatedAt = at
	copy := *record
	return &copy, nil
}

func (r *stubAccountAttempts) Lock(_ context.Context, username string, until, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[username]
	if !ok {
		record = &domain.AccountAttempt{Username: username}
		r.records[username] = record
	}
	if record.LockUntil != nil && record.LockUntil.After(at) {
		return nil
	}
	lock := until
	record.LockUntil = &lock
	record.Attempts = 0
	record.UpdatedAt = at
	return nil
}

func (r *stubAccountAttempts) Get(_ context.Context, username string) (*domain.AccountAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *record
	return &copy, nil
}

func (r *stubAccountAttempts) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, username)
	return nil
}

func (r *stubAccountAttempts) PurgeStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for username, record := range r.records {
		if record.UpdatedAt.Before(cutoff) {
			delete(r.records, username)
			purged++
		}
	}
	return purged, nil
}

// stubOriginAttempts is an in-memory OriginAttemptRepository.
type stubOriginAttempts struct {
	mu      sync.Mutex
	records map[string]*domain.OriginAttempt
}

func newStubOriginAttempts() *stubOriginAttempts {
	return &stubOriginAttempts{records: make(map[string]*domain.OriginAttempt)}
}

func (r *stubOriginAttempts) Increment(_ context.Context, address string, at time.Time) (*domain.OriginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[address]
	if !ok {
		record = &domain.OriginAttempt{Address: address}
		r.records[address] = record
	}
	record.Attempts++
	record.UpdatedAt = at
	copy := *record
	return &copy, nil
}

func (r *stubOriginAttempts) Blacklist(_ context.Context, address string, until, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[address]
	if !ok {
		record = &domain.OriginAttempt{Address: address}
		r.records[address] = record
	}
	if record.BlacklistUntil != nil && record.BlacklistUntil.After(at) {
		return nil
	}
	lock := until
	record.BlacklistUntil = &lock
	record.Attempts = 0
	record.UpdatedAt = at
	return nil
}

func (r *stubOriginAttempts) Get(_ context.Context, address string) (*domain.OriginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[address]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *record
	return &copy, nil
}

func (r *stubOriginAttempts) Delete(_ context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, address)
	return nil
}

// stubGrantStore is an in-memory GrantStore. TTLs are recorded but not
// enforced; expiry behaviour is covered by the Redis repository tests.
type stubGrantStore struct {
	mu            sync.Mutex
	registrations map[string]domain.PendingRegistration
	resets        map[string]domain.ResetGrant
}

func newStubGrantStore() *stubGrantStore {
	return &stubGrantStore{
		registrations: make(map[string]domain.PendingRegistration),
		resets:        make(map[string]domain.ResetGrant),
	}
}

func (s *stubGrantStore) StorePendingRegistration(_ context.Context, pending domain.PendingRegistration, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registrations[pending.ID] = pending
	return nil
}

func (s *stubGrantStore) FetchPendingRegistration(_ context.Context, id string) (*domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &pending, nil
}

func (s *stubGrantStore) DeletePendingRegistration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registrations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.registrations, id)
	return nil
}

func (s *stubGrantStore) StoreResetGrant(_ context.Context, grant domain.ResetGrant, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resets[grant.ID] = grant
	return nil
}

func (s *stubGrantStore) FetchResetGrant(_ context.Context, id string) (*domain.ResetGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.resets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &grant, nil
}

func (s *stubGrantStore) DeleteResetGrant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.resets, id)
	return nil
}

// stubSessionStore is an in-memory SessionStore.
type stubSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	lastTTL  time.Duration
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[string]domain.Session)}
}

func (s *stubSessionStore) Store(_ context.Context, session domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	s.lastTTL = ttl
	return nil
}

func (s *stubSessionStore) Fetch(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (s *stubSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// stubPublisher records published events.
type stubPublisher struct {
	mu          sync.Mutex
	registered  []domain.AccountRegisteredEvent
	locked      []domain.AccountLockedEvent
	blacklisted []domain.OriginBlacklistedEvent
	changed     []domain.PasswordChangedEvent
	granted     []domain.PasswordResetGrantedEvent
}

func (p *stubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return nil
}

func (p *stubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, event)
	return nil
}

func (p *stubPublisher) PublishOriginBlacklisted(_ context.Context, event domain.OriginBlacklistedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blacklisted = append(p.blacklisted, event)
	return nil
}

func (p *stubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, event)
	return nil
}

func (p *stubPublisher) PublishPasswordResetGranted(_ context.Context, event domain.PasswordResetGrantedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = append(p.granted, event)
	return nil
}
