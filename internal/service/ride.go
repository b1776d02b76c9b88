package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/observability"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

const rideLockTTL = 10 * time.Second

// Charge status reported by CancelRide.
const (
	ChargeStatusFree    = "free cancellation"
	ChargeStatusCharged = "charged from wallet (wallet can go negative)"
	ChargeStatusNone    = "no charge for driver cancellation"
)

// TransitionRequest applies a driver event to a ride.
type TransitionRequest struct {
	RideID  string
	ActorID string
	Event   domain.RideEvent
	OTP     string // checked on start
}

func (r TransitionRequest) validate() error {
	if r.RideID == "" {
		return invalid("ride_id", "required")
	}
	if r.ActorID == "" {
		return invalid("actor_id", "required")
	}
	switch r.Event {
	case domain.RideEventAccept, domain.RideEventReject, domain.RideEventArrive,
		domain.RideEventStart, domain.RideEventComplete:
		return nil
	case domain.RideEventCancel:
		return invalid("event", "use the cancel operation")
	}
	return invalid("event", fmt.Sprintf("unknown event %q", r.Event))
}

// CancelRideRequest cancels a ride on behalf of its rider or driver.
type CancelRideRequest struct {
	RideID  string
	ActorID string
	Reason  string
}

// CancelResult is the outcome of CancelRide.
type CancelResult struct {
	Ride                       *domain.Ride
	Charge                     decimal.Decimal
	NewBalance                 decimal.Decimal
	ChargeStatus               string
	RemainingFreeCancellations int
}

// RideConfig tunes the ride lifecycle.
type RideConfig struct {
	RequireOTP bool
	PendingTTL time.Duration
	SweepBatch int
}

// RideService owns the ride lifecycle. Every transition runs in one database
// transaction together with its ledger postings and driver availability flips.
type RideService struct {
	store      repository.Store
	payments   *PaymentService
	ledger     *LedgerService
	incentives *IncentiveService
	matching   *MatchingService
	notifier   *NotificationService
	locks      redis.LockStoreInterface
	events     EventPublisher
	cfg        RideConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewRideService creates a new RideService. locks may be nil.
func NewRideService(
	store repository.Store,
	payments *PaymentService,
	ledger *LedgerService,
	incentives *IncentiveService,
	matching *MatchingService,
	notifier *NotificationService,
	locks redis.LockStoreInterface,
	events EventPublisher,
	cfg RideConfig,
	logger *slog.Logger,
) *RideService {
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &RideService{
		store:      store,
		payments:   payments,
		ledger:     ledger,
		incentives: incentives,
		matching:   matching,
		notifier:   notifier,
		locks:      locks,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (s *RideService) SetClock(now func() time.Time) {
	s.now = now
}

// GetRide retrieves a ride.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, invalid("ride_id", "required")
	}
	return s.store.Repos().Rides.GetByID(ctx, rideID)
}

// RiderHistory lists the newest rides of a rider.
func (s *RideService) RiderHistory(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	if riderID == "" {
		return nil, invalid("rider_id", "required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.store.Repos().Rides.ListByRider(ctx, riderID, limit)
}

// DriverHistory lists the newest rides of a driver.
func (s *RideService) DriverHistory(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, invalid("driver_id", "required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.store.Repos().Rides.ListByDriver(ctx, driverID, limit)
}

// Transition applies accept, reject, arrive, start or complete.
// A rejected guard leaves the ride unchanged.
func (s *RideService) Transition(ctx context.Context, req TransitionRequest) (*domain.Ride, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	release, err := s.lockRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	defer release()
	if req.Event == domain.RideEventAccept {
		releaseDriver, err := s.lockDriver(ctx, req.ActorID)
		if err != nil {
			return nil, err
		}
		defer releaseDriver()
	}

	var (
		ride *domain.Ride
		from domain.RideStatus
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		ride, err = r.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return err
		}
		from = ride.Status
		if !domain.CanApply(ride.Status, req.Event) {
			return fmt.Errorf("%w: cannot %s a %s ride", ErrInvalidTransition, req.Event, ride.Status)
		}

		now := s.now().UTC()
		switch req.Event {
		case domain.RideEventAccept:
			err = s.accept(ctx, r, ride, req.ActorID, now)
		case domain.RideEventReject:
			err = s.reject(ctx, r, ride, req.ActorID)
		case domain.RideEventArrive:
			err = s.requireDriver(ride, req.ActorID)
		case domain.RideEventStart:
			err = s.start(ride, req)
		case domain.RideEventComplete:
			err = s.complete(ctx, r, ride, req.ActorID, now)
		}
		if err != nil {
			return err
		}
		ride.Status = domain.TargetStatus(req.Event)
		return r.Rides.Update(ctx, ride)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	observability.RideTransitions.WithLabelValues(string(req.Event)).Inc()
	publishTransition(ctx, s.events, s.logger, domain.RideTransition{
		RideID: ride.ID, From: from, To: ride.Status, Event: req.Event, ActorID: req.ActorID, At: s.now().UTC(),
	})
	s.afterTransition(ctx, ride, req.Event)
	return ride, nil
}

func (s *RideService) accept(ctx context.Context, r repository.Repos, ride *domain.Ride, driverID string, now time.Time) error {
	if ride.DriverID != "" {
		return fmt.Errorf("%w: ride already has a driver", ErrInvalidTransition)
	}
	if ride.HasRejected(driverID) {
		return fmt.Errorf("%w: driver rejected this ride", ErrForbidden)
	}
	driver, err := r.People.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if !driver.IsDriver() {
		return fmt.Errorf("%w: %s is not a driver", ErrForbidden, driverID)
	}
	if !driver.Driver.Available {
		return fmt.Errorf("%w: driver is not available", ErrForbidden)
	}
	if !ride.VehicleTier.Matches(driver.Driver.VehicleTier) {
		return fmt.Errorf("%w: ride needs %s, driver has %s", ErrForbidden, ride.VehicleTier, driver.Driver.VehicleTier)
	}

	claimed, err := r.People.ClaimDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("%w: driver is not available", ErrForbidden)
	}
	ride.DriverID = driverID
	ride.AcceptedAt = now
	return nil
}

func (s *RideService) reject(ctx context.Context, r repository.Repos, ride *domain.Ride, driverID string) error {
	driver, err := r.People.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if !driver.IsDriver() {
		return fmt.Errorf("%w: %s is not a driver", ErrForbidden, driverID)
	}
	if ride.HasRejected(driverID) {
		return nil
	}
	if err := r.Rides.AddRejection(ctx, ride.ID, driverID); err != nil {
		return err
	}
	ride.RejectedBy = append(ride.RejectedBy, driverID)
	return nil
}

func (s *RideService) requireDriver(ride *domain.Ride, actorID string) error {
	if ride.DriverID == "" || ride.DriverID != actorID {
		return fmt.Errorf("%w: only the assigned driver can do this", ErrForbidden)
	}
	return nil
}

func (s *RideService) start(ride *domain.Ride, req TransitionRequest) error {
	if err := s.requireDriver(ride, req.ActorID); err != nil {
		return err
	}
	if s.cfg.RequireOTP && req.OTP != ride.OTP {
		return ErrInvalidOTP
	}
	return nil
}

func (s *RideService) complete(ctx context.Context, r repository.Repos, ride *domain.Ride, driverID string, now time.Time) error {
	if err := s.requireDriver(ride, driverID); err != nil {
		return err
	}
	ride.Status = domain.RideStatusCompleted
	ride.CompletedAt = now
	if err := s.payments.settle(ctx, r, ride); err != nil {
		return err
	}
	if err := s.incentives.advance(ctx, r, ride); err != nil {
		return err
	}
	return r.People.SetDriverAvailability(ctx, ride.DriverID, true)
}

// Cancel cancels a ride for its rider or driver. Rider cancellations beyond
// the free allowance are charged to the rider wallet, which may go negative.
func (s *RideService) Cancel(ctx context.Context, req CancelRideRequest) (*CancelResult, error) {
	if req.RideID == "" {
		return nil, invalid("ride_id", "required")
	}
	if req.ActorID == "" {
		return nil, invalid("actor_id", "required")
	}
	release, err := s.lockRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		result CancelResult
		from   domain.RideStatus
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		ride, err := r.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return err
		}
		from = ride.Status
		if !domain.CanApply(ride.Status, domain.RideEventCancel) {
			return fmt.Errorf("%w: cannot cancel a %s ride", ErrInvalidTransition, ride.Status)
		}

		switch {
		case req.ActorID == ride.RiderID:
			if err := s.chargeCancellation(ctx, r, ride, &result); err != nil {
				return err
			}
			ride.Status = domain.RideStatusCancelledByUser
			ride.IsCancelledByUser = true
		case ride.DriverID != "" && req.ActorID == ride.DriverID:
			ride.Status = domain.RideStatusCancelledByDriver
			ride.CancellationCharge = decimal.Zero
			result.ChargeStatus = ChargeStatusNone
			balance, err := s.riderBalance(ctx, r, ride.RiderID)
			if err != nil {
				return err
			}
			result.NewBalance = balance
		default:
			return fmt.Errorf("%w: only the rider or the assigned driver can cancel", ErrForbidden)
		}

		ride.CancelledAt = s.now().UTC()
		if ride.DriverID != "" {
			if err := r.People.SetDriverAvailability(ctx, ride.DriverID, true); err != nil {
				return err
			}
		}
		if err := r.Rides.Update(ctx, ride); err != nil {
			return err
		}
		result.Ride = ride
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	ride := result.Ride
	observability.RideTransitions.WithLabelValues(string(domain.RideEventCancel)).Inc()
	if result.Charge.IsPositive() {
		observability.CancellationCharges.Inc()
	}
	publishTransition(ctx, s.events, s.logger, domain.RideTransition{
		RideID: ride.ID, From: from, To: ride.Status, Event: domain.RideEventCancel, ActorID: req.ActorID, At: ride.CancelledAt,
	})

	counterparty := ride.DriverID
	if req.ActorID != ride.RiderID {
		counterparty = ride.RiderID
	}
	if counterparty != "" {
		s.notifier.RideCancelled(ctx, ride, s.pushToken(ctx, counterparty))
	}
	s.logger.Info("ride cancelled",
		"ride_id", ride.ID, "status", ride.Status, "charge", result.Charge.StringFixed(2), "reason", req.Reason)
	return &result, nil
}

// chargeCancellation applies the cancellation policy to a rider cancellation.
func (s *RideService) chargeCancellation(ctx context.Context, r repository.Repos, ride *domain.Ride, result *CancelResult) error {
	policy, err := r.Rules.ActiveCancellationPolicy(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: no active cancellation policy", ErrConfiguration)
	}
	if err != nil {
		return err
	}

	cancelled, err := r.Rides.CountCancelledByUser(ctx, ride.RiderID)
	if err != nil {
		return err
	}
	result.RemainingFreeCancellations = max(policy.FreeCancellations-cancelled-1, 0)

	charge := decimal.Zero
	if cancelled >= policy.FreeCancellations {
		charge = policy.ChargeAmount
	}
	ride.CancellationCharge = charge
	result.Charge = charge

	if !charge.IsPositive() {
		result.ChargeStatus = ChargeStatusFree
		balance, err := s.riderBalance(ctx, r, ride.RiderID)
		if err != nil {
			return err
		}
		result.NewBalance = balance
		return nil
	}

	if err := s.ledger.lock(ctx, r, RiderAccount(ride.RiderID), PlatformAccount); err != nil {
		return err
	}
	rider, err := s.ledger.withdraw(ctx, r, Posting{
		Account:     RiderAccount(ride.RiderID),
		Amount:      charge,
		Type:        domain.TxRidePayment,
		Description: fmt.Sprintf("Cancellation charge for ride %s", ride.ID),
		RideID:      ride.ID,
	})
	if err != nil {
		return err
	}
	if _, err := s.ledger.deposit(ctx, r, Posting{
		Account:     PlatformAccount,
		Amount:      charge,
		Type:        domain.TxRevenue,
		Description: fmt.Sprintf("Cancellation charge from rider %s for ride %s", ride.RiderID, ride.ID),
		RideID:      ride.ID,
	}); err != nil {
		return err
	}

	// Earlier free cancellations stop counting once a charge has been applied.
	if _, err := r.Rides.ReclassifyFreeCancellations(ctx, ride.RiderID); err != nil {
		return err
	}
	result.ChargeStatus = ChargeStatusCharged
	result.NewBalance = rider.Balance
	return nil
}

// AutoCancelStale cancels pending rides whose dispatch reference time is older
// than the pending TTL. Each ride is cancelled in its own transaction.
func (s *RideService) AutoCancelStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.cfg.PendingTTL)
	stale, err := s.store.Repos().Rides.ListStalePending(ctx, cutoff, s.cfg.SweepBatch)
	if err != nil {
		return 0, storeErr(err)
	}

	cancelled := 0
	for _, candidate := range stale {
		var ride *domain.Ride
		err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
			var err error
			ride, err = r.Rides.GetByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !domain.CanApply(ride.Status, domain.RideEventAutoCancel) || !ride.DispatchDeadline().Before(cutoff) {
				ride = nil
				return nil
			}
			ride.Status = domain.TargetStatus(domain.RideEventAutoCancel)
			ride.CancelledAt = now
			ride.CancellationCharge = decimal.Zero
			return r.Rides.Update(ctx, ride)
		})
		if err != nil {
			s.logger.Error("auto-cancel failed", "ride_id", candidate.ID, "error", storeErr(err))
			continue
		}
		if ride == nil {
			continue
		}
		cancelled++
		observability.RideTransitions.WithLabelValues(string(domain.RideEventAutoCancel)).Inc()
		publishTransition(ctx, s.events, s.logger, domain.RideTransition{
			RideID: ride.ID, From: domain.RideStatusPending, To: ride.Status, Event: domain.RideEventAutoCancel, At: now,
		})
		s.notifier.RideCancelled(ctx, ride, s.pushToken(ctx, ride.RiderID))
	}
	return cancelled, nil
}

func (s *RideService) afterTransition(ctx context.Context, ride *domain.Ride, event domain.RideEvent) {
	riderToken := s.pushToken(ctx, ride.RiderID)
	switch event {
	case domain.RideEventAccept:
		s.notifier.RideAccepted(ctx, ride, riderToken)
	case domain.RideEventReject:
		s.notifier.RideRejected(ctx, ride, riderToken)
		matches, err := s.matching.WithinRadius(ctx, MatchQuery{
			Lat: ride.Pickup.Lat, Lng: ride.Pickup.Lng, Tier: ride.VehicleTier, Exclude: ride.RejectedBy,
		}, 0)
		if err != nil {
			s.logger.Warn("re-dispatch lookup failed", "ride_id", ride.ID, "error", err)
			return
		}
		drivers := make([]domain.DriverRef, 0, len(matches))
		for _, m := range matches {
			drivers = append(drivers, m.Driver)
		}
		s.notifier.RideRequested(ctx, ride, drivers)
	default:
		s.notifier.RideStatusChanged(ctx, ride, riderToken)
	}
}

// lockRide takes the advisory Redis lock on a ride. Redis being unavailable is
// not fatal; the row lock inside the transaction still serialises writers.
func (s *RideService) lockRide(ctx context.Context, rideID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	return s.advisoryLock(ctx, "ride_id", rideID, s.locks.AcquireRideLock)
}

// lockDriver keeps one driver from being assigned two rides at once.
func (s *RideService) lockDriver(ctx context.Context, driverID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	return s.advisoryLock(ctx, "driver_id", driverID, s.locks.AcquireDriverLock)
}

func (s *RideService) advisoryLock(
	ctx context.Context,
	field, id string,
	acquire func(context.Context, string, time.Duration) (*redis.Lock, bool, error),
) (func(), error) {
	lock, ok, err := acquire(ctx, id, rideLockTTL)
	if err != nil {
		s.logger.Warn("advisory lock unavailable", field, id, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrRideBusy
	}
	return func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			s.logger.Warn("advisory lock release failed", field, id, "error", err)
		}
	}, nil
}

func (s *RideService) riderBalance(ctx context.Context, r repository.Repos, riderID string) (decimal.Decimal, error) {
	acct, err := r.Wallets.GetByOwner(ctx, riderID, domain.AccountKindRider)
	if errors.Is(err, repository.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

func (s *RideService) pushToken(ctx context.Context, personID string) string {
	p, err := s.store.Repos().People.GetByID(ctx, personID)
	if err != nil {
		s.logger.Debug("push token lookup failed", "person_id", personID, "error", err)
		return ""
	}
	return p.PushToken
}

func publishTransition(ctx context.Context, pub EventPublisher, logger *slog.Logger, t domain.RideTransition) {
	if pub == nil {
		return
	}
	if err := pub.PublishTransition(ctx, t); err != nil {
		logger.Warn("publish ride event failed", "ride_id", t.RideID, "event", t.Event, "error", err)
	}
}
