package repository

import "context"

// Repos bundles repositories that share one connection or transaction.
type Repos struct {
	People     PersonRepository
	Rides      RideRepository
	Wallets    WalletRepository
	Payments   PaymentRepository
	Rules      RuleRepository
	Incentives IncentiveRepository
}

// Store hands out repositories, either directly or scoped to a transaction.
type Store interface {
	// Repos returns repositories bound to the connection pool.
	Repos() Repos

	// WithinTx runs fn with repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
