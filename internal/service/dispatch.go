package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/geo"
	"ridecore/internal/observability"
	"ridecore/internal/repository"
	"ridecore/internal/tasks"
)

// BookRideRequest is the input of BookRide.
type BookRideRequest struct {
	RiderID     string
	Pickup      domain.Point
	Drop        *domain.Point // when nil, DistanceKm is used as given
	DistanceKm  float64
	VehicleTier domain.VehicleTier
	PickupMode  domain.PickupMode  // defaults to now
	ScheduledAt time.Time          // required for later
	PaymentType domain.PaymentType // defaults to cod
}

func (r *BookRideRequest) normalize() {
	if r.PickupMode == "" {
		r.PickupMode = domain.PickupModeNow
	}
	if r.PaymentType == "" {
		r.PaymentType = domain.PaymentTypeCOD
	}
}

func (r BookRideRequest) validate(now time.Time) error {
	if r.RiderID == "" {
		return invalid("rider_id", "required")
	}
	if !geo.ValidCoordinate(r.Pickup.Lat, r.Pickup.Lng) {
		return invalid("pickup", "coordinates out of range")
	}
	if r.Drop != nil && !geo.ValidCoordinate(r.Drop.Lat, r.Drop.Lng) {
		return invalid("drop", "coordinates out of range")
	}
	if r.Drop == nil && r.DistanceKm <= 0 {
		return invalid("distance_km", "required when no drop location is given")
	}
	if !r.VehicleTier.Known() {
		return invalid("vehicle_tier", fmt.Sprintf("unknown tier %q", r.VehicleTier))
	}
	if !r.PaymentType.Valid() {
		return invalid("payment_type", fmt.Sprintf("unknown payment type %q", r.PaymentType))
	}
	switch r.PickupMode {
	case domain.PickupModeNow:
	case domain.PickupModeLater:
		if r.ScheduledAt.IsZero() {
			return invalid("scheduled_at", "required for later pickup")
		}
		if !r.ScheduledAt.After(now) {
			return invalid("scheduled_at", "must be in the future")
		}
	default:
		return invalid("pickup_mode", fmt.Sprintf("unknown mode %q", r.PickupMode))
	}
	return nil
}

// DispatchService books rides and dispatches them to drivers.
type DispatchService struct {
	store      repository.Store
	fares      *FareService
	incentives *IncentiveService
	matching   *MatchingService
	ledger     *LedgerService
	notifier   *NotificationService
	gateway    PaymentGateway
	distances  DistanceEstimator
	queue      tasks.Queue
	events     EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	store repository.Store,
	fares *FareService,
	incentives *IncentiveService,
	matching *MatchingService,
	ledger *LedgerService,
	notifier *NotificationService,
	gateway PaymentGateway,
	distances DistanceEstimator,
	queue tasks.Queue,
	events EventPublisher,
	logger *slog.Logger,
) *DispatchService {
	return &DispatchService{
		store:      store,
		fares:      fares,
		incentives: incentives,
		matching:   matching,
		ledger:     ledger,
		notifier:   notifier,
		gateway:    gateway,
		distances:  distances,
		queue:      queue,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (s *DispatchService) SetClock(now func() time.Time) {
	s.now = now
}

// BookRide prices a ride, finds drivers for immediate pickups or defers
// dispatch for scheduled ones, and persists the ride with a pending payment.
func (s *DispatchService) BookRide(ctx context.Context, req BookRideRequest) (*domain.Ride, error) {
	req.normalize()
	now := s.now().UTC()
	if err := req.validate(now); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	if _, err := repos.People.GetByID(ctx, req.RiderID); err != nil {
		return nil, fmt.Errorf("rider %s: %w", req.RiderID, err)
	}

	distance, err := s.distance(ctx, req)
	if err != nil {
		return nil, err
	}
	fare, err := s.fares.Quote(ctx, req.VehicleTier, distance)
	if err != nil {
		return nil, err
	}
	incentive, reward, err := s.incentives.RewardsFor(ctx, distance, req.VehicleTier)
	if err != nil {
		return nil, err
	}

	total := decimal.NewFromInt(fare.TotalUserPays)
	if req.PaymentType == domain.PaymentTypeWallet {
		acct, err := s.ledger.Balance(ctx, RiderAccount(req.RiderID))
		if err != nil {
			return nil, err
		}
		if acct.Balance.LessThan(total) {
			return nil, fmt.Errorf("%w: wallet has %s, ride costs %s", ErrInsufficientBalance, acct.Balance.StringFixed(2), total.StringFixed(2))
		}
	}

	// Immediate rides need a driver now; scheduled rides are matched when the job fires.
	var offers []domain.DriverRef
	if req.PickupMode == domain.PickupModeNow {
		offers, err = s.offersFor(ctx, req.Pickup, req.VehicleTier, nil)
		if err != nil {
			return nil, err
		}
		if len(offers) == 0 {
			return nil, ErrNoDriverAvailable
		}
	}

	ride := &domain.Ride{
		ID:              uuid.New().String(),
		BookingID:       fourDigits(),
		RiderID:         req.RiderID,
		Pickup:          req.Pickup,
		VehicleTier:     req.VehicleTier,
		PickupMode:      req.PickupMode,
		DistanceKm:      distance,
		Fare:            fare,
		DriverIncentive: incentive,
		CustomerReward:  reward,
		Status:          domain.RideStatusPending,
		PaymentType:     req.PaymentType,
		OTP:             fourDigits(),
		CreatedAt:       now,
	}
	if req.Drop != nil {
		ride.Drop = *req.Drop
	}
	if req.PickupMode == domain.PickupModeLater {
		ride.ScheduledAt = req.ScheduledAt.UTC()
	} else {
		ride.DispatchedAt = now
	}

	payment := &domain.Payment{
		ID:        uuid.New().String(),
		RideID:    ride.ID,
		RiderID:   ride.RiderID,
		Type:      ride.PaymentType,
		Amount:    total,
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ride.PaymentType == domain.PaymentTypeGateway {
		payment.OrderRef = s.createOrder(ctx, ride, total)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Rides.Create(ctx, ride); err != nil {
			return err
		}
		return r.Payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	observability.RidesBooked.WithLabelValues(string(ride.VehicleTier), string(ride.PickupMode)).Inc()
	publishTransition(ctx, s.events, s.logger, domain.RideTransition{
		RideID: ride.ID, To: domain.RideStatusPending, Event: domain.RideEventRequest, ActorID: ride.RiderID, At: now,
	})

	if ride.PickupMode == domain.PickupModeLater {
		job := tasks.NewJob(tasks.KindDispatchScheduledRide, ride.ID, ride.ScheduledAt)
		if err := s.queue.Enqueue(ctx, job); err != nil {
			// The stale-pending sweep still resolves the ride.
			s.logger.Error("enqueue scheduled dispatch failed", "ride_id", ride.ID, "error", err)
		}
	} else {
		s.notifier.RideRequested(ctx, ride, offers)
	}

	s.logger.Info("ride booked",
		"ride_id", ride.ID, "booking_id", ride.BookingID, "tier", ride.VehicleTier,
		"mode", ride.PickupMode, "distance_km", ride.DistanceKm, "total", fare.TotalUserPays,
		"offers", len(offers))
	return ride, nil
}

// DispatchScheduledRide offers a scheduled ride to nearby drivers. It may run
// any number of times; only the first run on a pending ride has an effect.
func (s *DispatchService) DispatchScheduledRide(ctx context.Context, job tasks.Job) error {
	repos := s.store.Repos()
	ride, err := repos.Rides.GetByID(ctx, job.RideID)
	if err != nil {
		return fmt.Errorf("load ride %s: %w", job.RideID, err)
	}
	if ride.Status != domain.RideStatusPending || !ride.DispatchedAt.IsZero() {
		s.logger.Debug("scheduled dispatch skipped", "ride_id", ride.ID, "status", ride.Status)
		return nil
	}

	offers, err := s.offersFor(ctx, ride.Pickup, ride.VehicleTier, ride.RejectedBy)
	if err != nil {
		return err
	}

	marked, err := repos.Rides.MarkDispatched(ctx, ride.ID, s.now().UTC())
	if err != nil {
		return storeErr(err)
	}
	if !marked {
		return nil
	}

	if len(offers) == 0 {
		s.logger.Warn("no drivers for scheduled ride", "ride_id", ride.ID)
		return nil
	}
	s.notifier.RideRequested(ctx, ride, offers)
	return nil
}

// offersFor returns the drivers a ride is offered to: everyone within the search
// radius, or the single nearest driver when nobody is that close.
func (s *DispatchService) offersFor(ctx context.Context, pickup domain.Point, tier domain.VehicleTier, exclude []string) ([]domain.DriverRef, error) {
	q := MatchQuery{Lat: pickup.Lat, Lng: pickup.Lng, Tier: tier, Exclude: exclude}
	matches, err := s.matching.WithinRadius(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		nearest, ok, err := s.matching.NearestAvailable(ctx, q)
		if err != nil || !ok {
			return nil, err
		}
		matches = []geo.Match{nearest}
	}

	drivers := make([]domain.DriverRef, 0, len(matches))
	for _, m := range matches {
		drivers = append(drivers, m.Driver)
	}
	return drivers, nil
}

func (s *DispatchService) distance(ctx context.Context, req BookRideRequest) (float64, error) {
	if req.Drop == nil {
		return geo.Round2(req.DistanceKm), nil
	}
	km, err := s.distances.DistanceKm(ctx, req.Pickup, *req.Drop)
	if err != nil {
		return 0, fmt.Errorf("%w: route distance: %v", ErrExternalService, err)
	}
	return geo.Round2(km), nil
}

// createOrder opens a gateway order. When the gateway is unreachable a
// placeholder reference is stored so the booking still succeeds.
func (s *DispatchService) createOrder(ctx context.Context, ride *domain.Ride, total decimal.Decimal) string {
	if s.gateway != nil {
		ref, err := s.gateway.CreateOrder(ctx, total)
		if err == nil {
			return ref
		}
		s.logger.Warn("gateway order failed, using placeholder",
			"ride_id", ride.ID, "error", fmt.Errorf("%w: %v", ErrExternalService, err))
	}
	return fmt.Sprintf("order_%s_%d", ride.ID, ride.CreatedAt.Unix())
}

func fourDigits() string {
	return fmt.Sprintf("%04d", 1000+rand.IntN(9000))
}
