package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/observability"
	"ridecore/internal/repository"
)

const defaultHistoryLimit = 50

// AccountRef identifies a wallet by owner and kind.
type AccountRef struct {
	OwnerID string
	Kind    domain.AccountKind
}

// PlatformAccount is the singleton platform wallet.
var PlatformAccount = AccountRef{OwnerID: domain.PlatformOwnerID, Kind: domain.AccountKindPlatform}

// RiderAccount returns the wallet reference of a rider.
func RiderAccount(id string) AccountRef {
	return AccountRef{OwnerID: id, Kind: domain.AccountKindRider}
}

// DriverAccount returns the wallet reference of a driver.
func DriverAccount(id string) AccountRef {
	return AccountRef{OwnerID: id, Kind: domain.AccountKindDriver}
}

func (a AccountRef) validate() error {
	if a.OwnerID == "" {
		return invalid("owner_id", "required")
	}
	switch a.Kind {
	case domain.AccountKindRider, domain.AccountKindDriver, domain.AccountKindPlatform:
		return nil
	}
	return invalid("kind", fmt.Sprintf("unknown account kind %q", a.Kind))
}

// lockRank orders accounts so every transaction takes row locks in the same sequence.
func (a AccountRef) lockRank() int {
	switch a.Kind {
	case domain.AccountKindRider:
		return 0
	case domain.AccountKindDriver:
		return 1
	}
	return 2
}

// Posting is one balance change.
type Posting struct {
	Account     AccountRef
	Amount      decimal.Decimal // always positive; direction comes from the operation
	Type        domain.TransactionType
	Description string
	RideID      string
}

// WalletRequest is the input of WalletDeposit and WalletWithdraw.
type WalletRequest struct {
	OwnerID     string
	Kind        domain.AccountKind
	Amount      decimal.Decimal
	Description string
}

func (r WalletRequest) validate() error {
	if err := (AccountRef{OwnerID: r.OwnerID, Kind: r.Kind}).validate(); err != nil {
		return err
	}
	if r.Kind == domain.AccountKindPlatform {
		return invalid("kind", "the platform wallet is only posted to by rides")
	}
	if !r.Amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	return nil
}

// TransferRequest moves money between two wallets atomically.
type TransferRequest struct {
	From        AccountRef
	To          AccountRef
	Amount      decimal.Decimal
	Description string
	RideID      string
}

// RefundPosting describes a platform-to-rider refund.
type RefundPosting struct {
	RiderID     string
	Amount      decimal.Decimal
	Commission  decimal.Decimal // subtracted from the platform commission total
	GST         decimal.Decimal // subtracted from the platform GST total
	Description string
	RideID      string
}

// LedgerService posts balance changes. Every balance change appends exactly
// one transaction row whose BalanceAfter equals the new balance.
type LedgerService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store repository.Store, logger *slog.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger, now: time.Now}
}

// Deposit credits a wallet and returns the new balance.
func (s *LedgerService) Deposit(ctx context.Context, req WalletRequest) (decimal.Decimal, error) {
	if err := req.validate(); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		acct, err := s.deposit(ctx, r, Posting{
			Account:     AccountRef{OwnerID: req.OwnerID, Kind: req.Kind},
			Amount:      req.Amount,
			Type:        domain.TxDeposit,
			Description: describe(req.Description, "Wallet deposit"),
		})
		if err != nil {
			return err
		}
		balance = acct.Balance
		return nil
	})
	return balance, storeErr(err)
}

// Withdraw debits a wallet and returns the new balance.
func (s *LedgerService) Withdraw(ctx context.Context, req WalletRequest) (decimal.Decimal, error) {
	if err := req.validate(); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		acct, err := s.withdraw(ctx, r, Posting{
			Account:     AccountRef{OwnerID: req.OwnerID, Kind: req.Kind},
			Amount:      req.Amount,
			Type:        domain.TxWithdrawal,
			Description: describe(req.Description, "Wallet withdrawal"),
		})
		if err != nil {
			return err
		}
		balance = acct.Balance
		return nil
	})
	return balance, storeErr(err)
}

// Transfer withdraws from one wallet and deposits into another; both legs commit or neither does.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) error {
	if err := req.From.validate(); err != nil {
		return err
	}
	if err := req.To.validate(); err != nil {
		return err
	}
	if req.From == req.To {
		return invalid("to", "must differ from source account")
	}
	if !req.Amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	return storeErr(s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		return s.transfer(ctx, r, req)
	}))
}

// Balance returns a wallet. A wallet that has never been posted to reads as zero.
func (s *LedgerService) Balance(ctx context.Context, ref AccountRef) (*domain.WalletAccount, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	acct, err := s.store.Repos().Wallets.GetByOwner(ctx, ref.OwnerID, ref.Kind)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.WalletAccount{OwnerID: ref.OwnerID, Kind: ref.Kind}, nil
	}
	return acct, err
}

// Transactions returns the newest rows of a wallet.
func (s *LedgerService) Transactions(ctx context.Context, ref AccountRef, limit int) ([]*domain.WalletTransaction, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	repos := s.store.Repos()
	acct, err := repos.Wallets.GetByOwner(ctx, ref.OwnerID, ref.Kind)
	if errors.Is(err, repository.ErrNotFound) {
		return []*domain.WalletTransaction{}, nil
	}
	if err != nil {
		return nil, err
	}
	return repos.Wallets.ListTransactions(ctx, acct.ID, limit)
}

// PlatformSummary returns the platform wallet with its commission and GST totals.
func (s *LedgerService) PlatformSummary(ctx context.Context) (*domain.WalletAccount, error) {
	return s.Balance(ctx, PlatformAccount)
}

// lock takes row locks on every account in canonical order.
func (s *LedgerService) lock(ctx context.Context, r repository.Repos, refs ...AccountRef) error {
	sorted := make([]AccountRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].lockRank() != sorted[j].lockRank() {
			return sorted[i].lockRank() < sorted[j].lockRank()
		}
		return sorted[i].OwnerID < sorted[j].OwnerID
	})
	for _, ref := range sorted {
		if _, err := r.Wallets.LockByOwner(ctx, ref.OwnerID, ref.Kind); err != nil {
			return fmt.Errorf("lock wallet %s/%s: %w", ref.Kind, ref.OwnerID, err)
		}
	}
	return nil
}

func (s *LedgerService) deposit(ctx context.Context, r repository.Repos, p Posting) (*domain.WalletAccount, error) {
	if !p.Amount.IsPositive() {
		return nil, invalid("amount", "deposit must be greater than zero")
	}
	acct, err := r.Wallets.LockByOwner(ctx, p.Account.OwnerID, p.Account.Kind)
	if err != nil {
		return nil, err
	}
	acct.Balance = acct.Balance.Add(p.Amount)
	switch p.Type {
	case domain.TxCommission:
		acct.TotalCommission = acct.TotalCommission.Add(p.Amount)
	case domain.TxGST:
		acct.TotalGST = acct.TotalGST.Add(p.Amount)
	}
	if err := s.record(ctx, r, acct, p.Amount, p); err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *LedgerService) withdraw(ctx context.Context, r repository.Repos, p Posting) (*domain.WalletAccount, error) {
	if !p.Amount.IsPositive() {
		return nil, invalid("amount", "withdrawal must be greater than zero")
	}
	acct, err := r.Wallets.LockByOwner(ctx, p.Account.OwnerID, p.Account.Kind)
	if err != nil {
		return nil, err
	}
	if !acct.Kind.AllowsNegative() && p.Amount.GreaterThan(acct.Balance) {
		return nil, fmt.Errorf("%w: %s wallet %s has %s, needs %s",
			ErrInsufficientBalance, acct.Kind, acct.OwnerID, acct.Balance.StringFixed(2), p.Amount.StringFixed(2))
	}
	acct.Balance = acct.Balance.Sub(p.Amount)
	if err := s.record(ctx, r, acct, p.Amount.Neg(), p); err != nil {
		return nil, err
	}
	return acct, nil
}

// record persists the new balance and its ledger row together.
func (s *LedgerService) record(ctx context.Context, r repository.Repos, acct *domain.WalletAccount, signed decimal.Decimal, p Posting) error {
	now := s.now().UTC()
	acct.UpdatedAt = now
	if err := r.Wallets.UpdateBalance(ctx, acct); err != nil {
		return err
	}
	txn := &domain.WalletTransaction{
		ID:           uuid.New().String(),
		AccountID:    acct.ID,
		Type:         p.Type,
		Amount:       signed,
		Description:  p.Description,
		BalanceAfter: acct.Balance,
		RideID:       p.RideID,
		CreatedAt:    now,
	}
	if err := r.Wallets.AppendTransaction(ctx, txn); err != nil {
		return err
	}
	observability.LedgerPostings.WithLabelValues(string(p.Type)).Inc()
	return nil
}

func (s *LedgerService) transfer(ctx context.Context, r repository.Repos, req TransferRequest) error {
	if err := s.lock(ctx, r, req.From, req.To); err != nil {
		return err
	}
	desc := describe(req.Description, "Transfer")
	if _, err := s.withdraw(ctx, r, Posting{Account: req.From, Amount: req.Amount, Type: domain.TxWithdrawal, Description: desc, RideID: req.RideID}); err != nil {
		return err
	}
	_, err := s.deposit(ctx, r, Posting{Account: req.To, Amount: req.Amount, Type: domain.TxDeposit, Description: desc, RideID: req.RideID})
	return err
}

func (s *LedgerService) collectCommission(ctx context.Context, r repository.Repos, amount decimal.Decimal, rideID string) error {
	if !amount.IsPositive() {
		return nil
	}
	_, err := s.deposit(ctx, r, Posting{
		Account:     PlatformAccount,
		Amount:      amount,
		Type:        domain.TxCommission,
		Description: fmt.Sprintf("Commission for ride %s", rideID),
		RideID:      rideID,
	})
	return err
}

func (s *LedgerService) collectGST(ctx context.Context, r repository.Repos, amount decimal.Decimal, rideID string) error {
	if !amount.IsPositive() {
		return nil
	}
	_, err := s.deposit(ctx, r, Posting{
		Account:     PlatformAccount,
		Amount:      amount,
		Type:        domain.TxGST,
		Description: fmt.Sprintf("GST for ride %s", rideID),
		RideID:      rideID,
	})
	return err
}

// refund withdraws from the platform and deposits into the rider wallet.
// Both legs reference the same ride.
func (s *LedgerService) refund(ctx context.Context, r repository.Repos, p RefundPosting) (*domain.WalletAccount, error) {
	rider := RiderAccount(p.RiderID)
	if err := s.lock(ctx, r, rider, PlatformAccount); err != nil {
		return nil, err
	}
	desc := describe(p.Description, fmt.Sprintf("Refund for ride %s", p.RideID))

	platform, err := s.withdraw(ctx, r, Posting{Account: PlatformAccount, Amount: p.Amount, Type: domain.TxRefund, Description: desc, RideID: p.RideID})
	if err != nil {
		return nil, err
	}
	if p.Commission.IsPositive() || p.GST.IsPositive() {
		platform.TotalCommission = decimal.Max(platform.TotalCommission.Sub(p.Commission), decimal.Zero)
		platform.TotalGST = decimal.Max(platform.TotalGST.Sub(p.GST), decimal.Zero)
		if err := r.Wallets.UpdateBalance(ctx, platform); err != nil {
			return nil, err
		}
	}
	return s.deposit(ctx, r, Posting{Account: rider, Amount: p.Amount, Type: domain.TxRefund, Description: desc, RideID: p.RideID})
}

func describe(given, fallback string) string {
	if given != "" {
		return given
	}
	return fallback
}
