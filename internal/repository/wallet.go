package repository

import (
	"context"

	"ridecore/internal/domain"
)

// WalletRepository defines the persistence operations for wallet accounts and their ledger rows.
type WalletRepository interface {
	// GetByOwner retrieves the account of an owner without locking it.
	GetByOwner(ctx context.Context, ownerID string, kind domain.AccountKind) (*domain.WalletAccount, error)

	// LockByOwner creates the account when missing and locks its row until the transaction ends.
	LockByOwner(ctx context.Context, ownerID string, kind domain.AccountKind) (*domain.WalletAccount, error)

	// UpdateBalance persists balance, platform totals and updated_at of a locked account.
	UpdateBalance(ctx context.Context, account *domain.WalletAccount) error

	// AppendTransaction inserts an immutable ledger row.
	AppendTransaction(ctx context.Context, txn *domain.WalletTransaction) error

	// ListTransactions returns an account's rows, newest first.
	ListTransactions(ctx context.Context, accountID string, limit int) ([]*domain.WalletTransaction, error)
}
