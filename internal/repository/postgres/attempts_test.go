package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/mealmap/platform-auth/internal/repository"
)

func TestAccountAttemptRepository_Increment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountAttemptRepository(mock)
	at := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"username", "attempts", "lock_until", "updated_at"}).
		AddRow("alnewman", 5, nil, at)

	mock.ExpectQuery(`INSERT INTO auth\.account_attempts`).
		WithArgs("alnewman", at).
		WillReturnRows(rows)

	record, err := repo.Increment(context.Background(), "alnewman", at)
	if err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	if record.Attempts != 5 {
		t.Fatalf("attempts = %d, want 5", record.Attempts)
	}
	if record.LockUntil != nil {
		t.Fatalf("expected no lock, got %v", record.LockUntil)
	}
}

func TestAccountAttemptRepository_LockSkipsHeldLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountAttemptRepository(mock)
	at := time.Now().UTC()
	until := at.Add(5 * time.Minute)

	// Zero rows affected means another request locked first; that is fine.
	mock.ExpectExec(`UPDATE auth\.account_attempts`).
		WithArgs("alnewman", until, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Lock(context.Background(), "alnewman", until, at); err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountAttemptRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountAttemptRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM auth\.account_attempts`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"username", "attempts", "lock_until", "updated_at"}))

	_, err = repo.Get(context.Background(), "ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountAttemptRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountAttemptRepository(mock)

	mock.ExpectExec(`DELETE FROM auth\.account_attempts`).
		WithArgs("alnewman").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Delete(context.Background(), "alnewman"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestAccountAttemptRepository_PurgeStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountAttemptRepository(mock)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM auth\.account_attempts`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	purged, err := repo.PurgeStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PurgeStale returned error: %v", err)
	}
	if purged != 42 {
		t.Fatalf("purged = %d, want 42", purged)
	}
}

func TestOriginAttemptRepository_Increment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewOriginAttemptRepository(mock)
	at := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"address", "attempts", "blacklist_until", "updated_at"}).
		AddRow("203.0.113.7", 20, nil, at)

	mock.ExpectQuery(`INSERT INTO auth\.origin_attempts`).
		WithArgs("203.0.113.7", at).
		WillReturnRows(rows)

	record, err := repo.Increment(context.Background(), "203.0.113.7", at)
	if err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	if record.Attempts != 20 {
		t.Fatalf("attempts = %d, want 20", record.Attempts)
	}
}

func TestOriginAttemptRepository_Blacklist(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewOriginAttemptRepository(mock)
	at := time.Now().UTC()
	until := at.Add(30 * time.Minute)

	mock.ExpectExec(`UPDATE auth\.origin_attempts`).
		WithArgs("203.0.113.7", until, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Blacklist(context.Background(), "203.0.113.7", until, at); err != nil {
		t.Fatalf("Blacklist returned error: %v", err)
	}
}
