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

// OriginAttemptRepository implements port.OriginAttemptRepository using
// PostgreSQL. Rows accumulate across usernames, so a spray from one address
// trips the blacklist even when every guess targets a different account.
type OriginAttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOriginAttemptRepository wires a PostgreSQL-backed origin tracker.
func NewOriginAttemptRepository(exec pgExecutor) *OriginAttemptRepository {
	return &OriginAttemptRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Increment upserts the tracker row and bumps its counter atomically.
func (r *OriginAttemptRepository) Increment(ctx context.Context, address string, at time.Time) (*domain.OriginAttempt, error) {
	const stmt = `
		INSERT INTO auth.origin_attempts (address, attempts, updated_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (address) DO UPDATE
		   SET attempts = auth.origin_attempts.attempts + 1,
		       updated_at = EXCLUDED.updated_at
		RETURNING address, attempts, blacklist_until, updated_at`

	var record domain.OriginAttempt
	if err := r.exec.QueryRow(ctx, stmt, address, at).Scan(
		&record.Address,
		&record.Attempts,
		&record.BlacklistUntil,
		&record.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("increment origin attempts: %w", err)
	}

	return &record, nil
}

// Blacklist sets the blacklist deadline and resets the counter in the same
// write. Rows already holding an unexpired blacklist are left untouched.
func (r *OriginAttemptRepository) Blacklist(ctx context.Context, address string, until time.Time, at time.Time) error {
	const stmt = `
		UPDATE auth.origin_attempts
		   SET blacklist_until = $2, attempts = 0, updated_at = $3
		 WHERE address = $1
		   AND (blacklist_until IS NULL OR blacklist_until <= $3)`

	if _, err := r.exec.Exec(ctx, stmt, address, until, at); err != nil {
		return fmt.Errorf("blacklist origin: %w", err)
	}

	return nil
}

// Get retrieves the tracker row for an address.
func (r *OriginAttemptRepository) Get(ctx context.Context, address string) (*domain.OriginAttempt, error) {
	stmt, args, err := r.builder.
		Select("address", "attempts", "blacklist_until", "updated_at").
		From("auth.origin_attempts").
		Where(squirrel.Eq{"address": address}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select origin attempts sql: %w", err)
	}

	var record domain.OriginAttempt
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&record.Address,
		&record.Attempts,
		&record.BlacklistUntil,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan origin attempts: %w", err)
	}

	return &record, nil
}

// Delete removes the tracker row entirely. Missing rows are not an error.
func (r *OriginAttemptRepository) Delete(ctx context.Context, address string) error {
	stmt, args, err := r.builder.
		Delete("auth.origin_attempts").
		Where(squirrel.Eq{"address": address}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete origin attempts sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete origin attempts: %w", err)
	}

	return nil
}

var _ port.OriginAttemptRepository = (*OriginAttemptRepository)(nil)
