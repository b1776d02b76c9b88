package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind determines the overdraft rule of a wallet.
type AccountKind string

const (
	AccountKindRider    AccountKind = "rider"
	AccountKindDriver   AccountKind = "driver"
	AccountKindPlatform AccountKind = "platform"
)

// PlatformOwnerID is the owner reference of the singleton platform wallet.
const PlatformOwnerID = "platform"

// AllowsNegative reports whether withdrawals may drive the balance below zero.
// Only rider wallets may, so cancellation charges can always be collected.
func (k AccountKind) AllowsNegative() bool {
	return k == AccountKindRider
}

// TransactionType tags a wallet posting.
type TransactionType string

const (
	TxDeposit     TransactionType = "deposit"
	TxWithdrawal  TransactionType = "withdrawal"
	TxCashback    TransactionType = "cashback"
	TxReward      TransactionType = "reward"
	TxRidePayment TransactionType = "ride_payment"
	TxRefund      TransactionType = "refund"
	TxCommission  TransactionType = "commission"
	TxGST         TransactionType = "gst"
	TxRevenue     TransactionType = "revenue"
)

// WalletAccount is a balance owned by a rider, a driver, or the platform.
// Balance always equals the sum of the account's transaction amounts.
type WalletAccount struct {
	ID              string
	OwnerID         string
	Kind            AccountKind
	Balance         decimal.Decimal
	TotalCommission decimal.Decimal // platform only
	TotalGST        decimal.Decimal // platform only
	UpdatedAt       time.Time
}

// WalletTransaction is an immutable ledger row.
type WalletTransaction struct {
	ID           string
	AccountID    string
	Type         TransactionType
	Amount       decimal.Decimal // signed
	Description  string
	BalanceAfter decimal.Decimal
	RideID       string
	CreatedAt    time.Time
}
