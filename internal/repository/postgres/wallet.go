package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"ridecore/internal/domain"
)

// WalletRepository is a PostgreSQL implementation of repository.WalletRepository.
type WalletRepository struct {
	q Querier
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{q: db}
}

const accountColumns = `id, owner_id, kind, balance, total_commission, total_gst, updated_at`

func scanAccount(row rowScanner) (*domain.WalletAccount, error) {
	var a domain.WalletAccount
	err := row.Scan(&a.ID, &a.OwnerID, &a.Kind, &a.Balance, &a.TotalCommission, &a.TotalGST, &a.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// GetByOwner retrieves an account without locking it.
func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID string, kind domain.AccountKind) (*domain.WalletAccount, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM wallet_accounts WHERE owner_id = $1 AND kind = $2`, ownerID, kind))
}

// LockByOwner opens the account on first use and locks its row.
func (r *WalletRepository) LockByOwner(ctx context.Context, ownerID string, kind domain.AccountKind) (*domain.WalletAccount, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO wallet_accounts (id, owner_id, kind, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, kind) DO NOTHING`,
		uuid.NewString(), ownerID, kind, time.Now().UTC())
	if err != nil {
		return nil, translate(err)
	}
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM wallet_accounts WHERE owner_id = $1 AND kind = $2 FOR UPDATE`, ownerID, kind))
}

// UpdateBalance persists balance and platform totals.
func (r *WalletRepository) UpdateBalance(ctx context.Context, a *domain.WalletAccount) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET balance = $1, total_commission = $2, total_gst = $3, updated_at = $4
		WHERE id = $5`,
		a.Balance, a.TotalCommission, a.TotalGST, a.UpdatedAt, a.ID))
}

// AppendTransaction inserts an immutable ledger row.
func (r *WalletRepository) AppendTransaction(ctx context.Context, t *domain.WalletTransaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, account_id, type, amount, description, balance_after, ride_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.AccountID, t.Type, t.Amount, t.Description, t.BalanceAfter, nullString(t.RideID), t.CreatedAt)
	return translate(err)
}

// ListTransactions returns an account's rows, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, accountID string, limit int) ([]*domain.WalletTransaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, type, amount, description, balance_after, ride_id, created_at
		FROM wallet_transactions WHERE account_id = $1
		ORDER BY seq DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var txns []*domain.WalletTransaction
	for rows.Next() {
		var (
			t      domain.WalletTransaction
			rideID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Description, &t.BalanceAfter, &rideID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.RideID = rideID.String
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}
