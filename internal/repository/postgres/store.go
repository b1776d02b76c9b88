package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ridecore/internal/repository"
)

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore creates a store. Row lock waits inside transactions are bounded
// by lockTimeout; zero leaves the server default.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// Repos returns repositories bound to the connection pool.
func (s *Store) Repos() repository.Repos {
	return reposFor(s.db)
}

// WithinTx runs fn inside one transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", translate(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", translate(err))
		}
	}

	if err = fn(ctx, reposFor(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translate(err))
	}
	return nil
}

func reposFor(q Querier) repository.Repos {
	return repository.Repos{
		People:     &PersonRepository{q: q},
		Rides:      &RideRepository{q: q},
		Wallets:    &WalletRepository{q: q},
		Payments:   &PaymentRepository{q: q},
		Rules:      &RuleRepository{q: q},
		Incentives: &IncentiveRepository{q: q},
	}
}
