package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/repository"
)

// AccountAttemptRepository implements port.AccountAttemptRepository using
// PostgreSQL. One row exists per username with recent failures; the row is
// removed on successful login and swept once it goes stale.
type AccountAttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountAttemptRepository wires a PostgreSQL-backed username tracker.
func NewAccountAttemptRepository(exec pgExecutor) *AccountAttemptRepository {
	return &AccountAttemptRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Increment upserts the tracker row and bumps its counter in one statement so
// concurrent failures never lose a count.
func (r *AccountAttemptRepository) Increment(ctx context.Context, username string, at time.Time) (*domain.AccountAttempt, error) {
	const stmt = `
		INSERT INTO auth.account_attempts (username, attempts, updated_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (username) DO UPDATE
		   SET attempts = auth.account_attempts.attempts + 1,
		       updated_at = EXCLUDED.updated_at
		RETURNING username, attempts, lock_until, updated_at`

	var record domain.AccountAttempt
	if err := r.exec.QueryRow(ctx, stmt, username, at).Scan(
		&record.Username,
		&record.Attempts,
		&record.LockUntil,
		&record.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("increment account attempts: %w", err)
	}

	return &record, nil
}

// Lock sets the lock deadline and resets the counter in the same write.
// A row already holding an unexpired lock is left untouched, which keeps the
// earlier deadline when two requests cross the threshold together.
func (r *AccountAttemptRepository) Lock(ctx context.Context, username string, until time.Time, at time.Time) error {
	const stmt = `
		UPDATE auth.account_attempts
		   SET lock_until = $2, attempts = 0, updated_at = $3
		 WHERE username = $1
		   AND (lock_until IS NULL OR lock_until <= $3)`

	if _, err := r.exec.Exec(ctx, stmt, username, until, at); err != nil {
		return fmt.Errorf("lock account attempts: %w", err)
	}

	return nil
}

// Get retrieves the tracker row for a username.
func (r *AccountAttemptRepository) Get(ctx context.Context, username string) (*domain.AccountAttempt, error) {
	stmt, args, err := r.builder.
		Select("username", "attempts", "lock_until", "updated_at").
		From("auth.account_attempts").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account attempts sql: %w", err)
	}

	var record domain.AccountAttempt
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&record.Username,
		&record.Attempts,
		&record.LockUntil,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account attempts: %w", err)
	}

	return &record, nil
}

// Delete removes the tracker row entirely. Missing rows are not an error.
func (r *AccountAttemptRepository) Delete(ctx context.Context, username string) error {
	stmt, args, err := r.builder.
		Delete("auth.account_attempts").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account attempts sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete account attempts: %w", err)
	}

	return nil
}

// PurgeStale removes tracker rows not updated since the cutoff.
func (r *AccountAttemptRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, args, err := r.builder.
		Delete("auth.account_attempts").
		Where(squirrel.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge account attempts sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge account attempts: %w", err)
	}

	return ct.RowsAffected(), nil
}

var _ port.AccountAttemptRepository = (*AccountAttemptRepository)(nil)
