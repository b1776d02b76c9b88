package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// ConfirmPaymentRequest is the gateway callback after the rider pays.
type ConfirmPaymentRequest struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

// RefundRequest returns money for a paid ride to the rider wallet.
type RefundRequest struct {
	RideID          string
	Amount          decimal.Decimal // zero refunds the full fare
	SplitCommission bool            // also reduce the platform commission total
	SplitGST        bool            // also reduce the platform GST total
	Reason          string
}

// RefundResult is the outcome of RefundRide.
type RefundResult struct {
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
	Payment    *domain.Payment
}

// PayoutRequest moves driver earnings out through the gateway.
type PayoutRequest struct {
	DriverID    string
	Amount      decimal.Decimal
	Beneficiary string
}

// PayoutResult is the outcome of DriverPayout.
type PayoutResult struct {
	PayoutID   string
	NewBalance decimal.Decimal
}

// PaymentService settles rides and handles gateway callbacks, refunds and payouts.
type PaymentService struct {
	store   repository.Store
	ledger  *LedgerService
	gateway PaymentGateway
	logger  *slog.Logger
	now     func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(store repository.Store, ledger *LedgerService, gateway PaymentGateway, logger *slog.Logger) *PaymentService {
	return &PaymentService{store: store, ledger: ledger, gateway: gateway, logger: logger, now: time.Now}
}

// SetClock replaces the time source.
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

// settle posts a completed ride's money: commission and GST to the platform,
// earnings to the driver and, for wallet rides, the total from the rider.
// Gateway rides wait until the payment is confirmed. A ride settles once.
func (s *PaymentService) settle(ctx context.Context, r repository.Repos, ride *domain.Ride) error {
	if ride.Settled || ride.Status != domain.RideStatusCompleted {
		return nil
	}
	if ride.PaymentType == domain.PaymentTypeGateway && !ride.Paid {
		return nil
	}

	accounts := []AccountRef{DriverAccount(ride.DriverID), PlatformAccount}
	if ride.PaymentType == domain.PaymentTypeWallet {
		accounts = append(accounts, RiderAccount(ride.RiderID))
	}
	if err := s.ledger.lock(ctx, r, accounts...); err != nil {
		return err
	}

	if ride.PaymentType == domain.PaymentTypeWallet && ride.Fare.TotalUserPays > 0 {
		if _, err := s.ledger.withdraw(ctx, r, Posting{
			Account:     RiderAccount(ride.RiderID),
			Amount:      decimal.NewFromInt(ride.Fare.TotalUserPays),
			Type:        domain.TxRidePayment,
			Description: fmt.Sprintf("Payment for ride %s", ride.ID),
			RideID:      ride.ID,
		}); err != nil {
			return err
		}
	}
	if err := s.ledger.collectCommission(ctx, r, decimal.NewFromInt(ride.Fare.CommissionAmount), ride.ID); err != nil {
		return err
	}
	if err := s.ledger.collectGST(ctx, r, decimal.NewFromInt(ride.Fare.GSTAmount), ride.ID); err != nil {
		return err
	}
	if ride.Fare.DriverEarnings > 0 {
		if _, err := s.ledger.deposit(ctx, r, Posting{
			Account:     DriverAccount(ride.DriverID),
			Amount:      decimal.NewFromInt(ride.Fare.DriverEarnings),
			Type:        domain.TxRidePayment,
			Description: fmt.Sprintf("Earnings for ride %s", ride.ID),
			RideID:      ride.ID,
		}); err != nil {
			return err
		}
	}

	ride.Settled = true
	if ride.Paid {
		return nil
	}
	ride.Paid = true

	payment, err := r.Payments.GetByRideID(ctx, ride.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if payment.Status == domain.PaymentStatusPending {
		payment.Status = domain.PaymentStatusCompleted
		payment.UpdatedAt = s.now().UTC()
		return r.Payments.Update(ctx, payment)
	}
	return nil
}

// ConfirmPayment records a verified gateway payment. A signature that does
// not verify never marks the ride paid. Confirming twice is a no-op.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*domain.Payment, error) {
	if req.OrderRef == "" {
		return nil, invalid("order_ref", "required")
	}
	if req.PaymentRef == "" {
		return nil, invalid("payment_ref", "required")
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no payment gateway", ErrConfiguration)
	}
	if !s.gateway.VerifySignature(req.OrderRef, req.PaymentRef, req.Signature) {
		s.logger.Warn("payment signature mismatch", "order_ref", req.OrderRef)
		return nil, ErrSignatureMismatch
	}

	var payment *domain.Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		payment, err = r.Payments.GetByOrderRef(ctx, req.OrderRef)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentStatusCompleted {
			return nil
		}
		if payment.Status != domain.PaymentStatusPending {
			return fmt.Errorf("%w: payment is %s", ErrInvalidTransition, payment.Status)
		}

		ride, err := r.Rides.GetByIDForUpdate(ctx, payment.RideID)
		if err != nil {
			return err
		}
		payment.Status = domain.PaymentStatusCompleted
		payment.PaymentRef = req.PaymentRef
		payment.Signature = req.Signature
		payment.UpdatedAt = s.now().UTC()
		if err := r.Payments.Update(ctx, payment); err != nil {
			return err
		}

		ride.Paid = true
		if err := s.settle(ctx, r, ride); err != nil {
			return err
		}
		return r.Rides.Update(ctx, ride)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info("payment confirmed", "ride_id", payment.RideID, "order_ref", payment.OrderRef)
	return payment, nil
}

// RefundRide moves money from the platform back to the rider of a paid ride.
func (s *PaymentService) RefundRide(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.RideID == "" {
		return nil, invalid("ride_id", "required")
	}
	if req.Amount.IsNegative() {
		return nil, invalid("amount", "must not be negative")
	}

	var result RefundResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		ride, err := r.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return err
		}
		if !ride.Paid {
			return ErrRideNotPaid
		}
		payment, err := r.Payments.GetByRideID(ctx, ride.ID)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentStatusRefunded {
			return fmt.Errorf("%w: ride already refunded", ErrInvalidTransition)
		}

		total := decimal.NewFromInt(ride.Fare.TotalUserPays)
		amount := req.Amount
		if amount.IsZero() {
			amount = total
		}
		if !amount.IsPositive() {
			return invalid("amount", "nothing to refund")
		}
		if amount.GreaterThan(total) {
			return invalid("amount", fmt.Sprintf("exceeds fare total %s", total.StringFixed(2)))
		}

		posting := RefundPosting{
			RiderID:     ride.RiderID,
			Amount:      amount,
			Description: describe(req.Reason, ""),
			RideID:      ride.ID,
		}
		share := amount.Div(total)
		if req.SplitCommission {
			posting.Commission = decimal.NewFromInt(ride.Fare.CommissionAmount).Mul(share).Round(2)
		}
		if req.SplitGST {
			posting.GST = decimal.NewFromInt(ride.Fare.GSTAmount).Mul(share).Round(2)
		}
		rider, err := s.ledger.refund(ctx, r, posting)
		if err != nil {
			return err
		}

		payment.Status = domain.PaymentStatusRefunded
		payment.UpdatedAt = s.now().UTC()
		if err := r.Payments.Update(ctx, payment); err != nil {
			return err
		}
		result = RefundResult{Amount: amount, NewBalance: rider.Balance, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info("ride refunded", "ride_id", req.RideID, "amount", result.Amount.StringFixed(2))
	return &result, nil
}

// DriverPayout debits the driver wallet and pays the amount out through the
// gateway in one transaction. A failed payout leaves the wallet untouched.
func (s *PaymentService) DriverPayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	if req.DriverID == "" {
		return nil, invalid("driver_id", "required")
	}
	if !req.Amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}
	if req.Beneficiary == "" {
		return nil, invalid("beneficiary", "required")
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no payment gateway", ErrConfiguration)
	}

	var result PayoutResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		acct, err := s.ledger.withdraw(ctx, r, Posting{
			Account:     DriverAccount(req.DriverID),
			Amount:      req.Amount,
			Type:        domain.TxWithdrawal,
			Description: fmt.Sprintf("Payout to %s", req.Beneficiary),
		})
		if err != nil {
			return err
		}

		res, err := s.gateway.Payout(ctx, req.DriverID, req.Amount, req.Beneficiary)
		if err != nil {
			return fmt.Errorf("%w: payout: %v", ErrExternalService, err)
		}
		if !res.Success {
			return fmt.Errorf("%w: payout declined", ErrExternalService)
		}
		result = PayoutResult{PayoutID: res.PayoutID, NewBalance: acct.Balance}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info("driver payout sent", "driver_id", req.DriverID, "amount", req.Amount.StringFixed(2), "payout_id", result.PayoutID)
	return &result, nil
}

// GetByRide retrieves the payment record of a ride.
func (s *PaymentService) GetByRide(ctx context.Context, rideID string) (*domain.Payment, error) {
	if rideID == "" {
		return nil, invalid("ride_id", "required")
	}
	return s.store.Repos().Payments.GetByRideID(ctx, rideID)
}
