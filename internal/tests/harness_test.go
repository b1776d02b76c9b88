package tests

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/logging"
	"ridecore/internal/service"
	"ridecore/internal/tasks"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// harness wires every service over in-memory collaborators.
type harness struct {
	store       *MockStore
	notifier    *MockNotifier
	gateway     *MockGateway
	publisher   *MockPublisher
	locks       *MockLockStore
	locations   *MockLocationStore
	broadcaster *MockBroadcaster
	queue       *tasks.MemoryQueue
	pool        *tasks.Pool

	ledger     *service.LedgerService
	incentives *service.IncentiveService
	matching   *service.MatchingService
	payments   *service.PaymentService
	dispatch   *service.DispatchService
	rides      *service.RideService
	drivers    *service.DriverService
	people     *service.PeopleService
	sweep      *service.SweepService

	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := logging.Discard()
	h := &harness{
		store:       NewMockStore(),
		notifier:    NewMockNotifier(),
		gateway:     NewMockGateway(),
		publisher:   &MockPublisher{},
		locks:       NewMockLockStore(),
		locations:   NewMockLocationStore(),
		broadcaster: &MockBroadcaster{},
		queue:       tasks.NewMemoryQueue(),
		now:         testNow,
	}
	clock := func() time.Time { return h.now }

	h.store.SetFareRules(
		domain.FareRule{ID: "bike-1", VehicleTier: domain.VehicleTierBike, MinDistance: 0, MaxDistance: ptr(10.0), PerKmRate: 10, GSTPercent: 5, CommissionPercent: 20},
		domain.FareRule{ID: "bike-2", VehicleTier: domain.VehicleTierBike, MinDistance: 10, PerKmRate: 8, GSTPercent: 5, CommissionPercent: 20},
		domain.FareRule{ID: "car-1", VehicleTier: domain.VehicleTierCarCity, MinDistance: 0, PerKmRate: 20, GSTPercent: 5, CommissionPercent: 10},
	)
	h.store.SetPolicy(&domain.CancellationPolicy{ID: 1, FreeCancellations: 2, ChargeAmount: decimal.NewFromInt(50), Active: true})

	rules := service.NewRuleSource(h.store.Repos().Rules, nil, logger)
	fares := service.NewFareService(rules, true)
	notifications := service.NewNotificationService(h.notifier, logger)

	h.ledger = service.NewLedgerService(h.store, logger)
	h.incentives = service.NewIncentiveService(h.store, rules, h.ledger, logger)
	h.matching = service.NewMatchingService(h.store.Repos().People, 5)
	h.payments = service.NewPaymentService(h.store, h.ledger, h.gateway, logger)
	h.dispatch = service.NewDispatchService(
		h.store, fares, h.incentives, h.matching, h.ledger, notifications,
		h.gateway, FixedDistance{Km: 5}, h.queue, h.publisher, logger,
	)
	h.payments.SetClock(clock)
	h.dispatch.SetClock(clock)
	h.rides = service.NewRideService(
		h.store, h.payments, h.ledger, h.incentives, h.matching, notifications,
		h.locks, h.publisher,
		service.RideConfig{RequireOTP: true, PendingTTL: 30 * time.Minute},
		logger,
	)
	h.rides.SetClock(clock)
	h.drivers = service.NewDriverService(h.store, h.locations, h.broadcaster, logger)
	h.people = service.NewPeopleService(h.store.Repos().People)
	h.sweep = service.NewSweepService(h.rides, time.Minute, logger)

	h.pool = tasks.NewPool(h.queue, tasks.PoolConfig{Workers: 1, MaxAttempts: 3, BaseBackoff: time.Second}, logger)
	h.pool.SetClock(clock)
	service.RegisterJobs(h.pool, h.queue, h.dispatch, h.incentives, 0, logger)

	return h
}

func ptr[T any](v T) *T { return &v }

func (h *harness) addRider(id string) {
	h.store.AddPerson(&domain.Person{ID: id, Name: "Rider " + id, Phone: "+91" + id, PushToken: "tok-" + id})
}

func (h *harness) addDriver(id string, tier domain.VehicleTier, lat, lng float64) {
	h.store.AddPerson(&domain.Person{
		ID:        id,
		Name:      "Driver " + id,
		Phone:     "+91" + id,
		PushToken: "tok-" + id,
		Driver: &domain.DriverProfile{
			VehicleTier:   tier,
			PlateNumber:   "KA01" + id,
			Lat:           ptr(lat),
			Lng:           ptr(lng),
			Online:        true,
			Available:     true,
			ApprovalState: domain.ApprovalApproved,
		},
	})
}

func (h *harness) fund(t *testing.T, ref service.AccountRef, amount int64) {
	t.Helper()
	if _, err := h.ledger.Deposit(context.Background(), service.WalletRequest{
		OwnerID: ref.OwnerID, Kind: ref.Kind, Amount: decimal.NewFromInt(amount),
	}); err != nil {
		t.Fatalf("fund %s: %v", ref.OwnerID, err)
	}
}

// book creates an immediate bike ride of 5 km for rider near pickup (12.97, 77.59).
func (h *harness) book(t *testing.T, rider string, payment domain.PaymentType) *domain.Ride {
	t.Helper()
	ride, err := h.dispatch.BookRide(context.Background(), service.BookRideRequest{
		RiderID:     rider,
		Pickup:      domain.Point{Lat: 12.97, Lng: 77.59},
		Drop:        &domain.Point{Lat: 13.01, Lng: 77.61},
		VehicleTier: domain.VehicleTierBike,
		PaymentType: payment,
	})
	if err != nil {
		t.Fatalf("BookRide() error = %v", err)
	}
	return ride
}

func (h *harness) transition(ride *domain.Ride, actor string, event domain.RideEvent) (*domain.Ride, error) {
	return h.rides.Transition(context.Background(), service.TransitionRequest{
		RideID: ride.ID, ActorID: actor, Event: event, OTP: ride.OTP,
	})
}

// drive takes a booked ride through accept, arrive, start and complete.
func (h *harness) drive(t *testing.T, ride *domain.Ride, driver string) *domain.Ride {
	t.Helper()
	var err error
	for _, ev := range []domain.RideEvent{domain.RideEventAccept, domain.RideEventArrive, domain.RideEventStart, domain.RideEventComplete} {
		if ride, err = h.transition(ride, driver, ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	return ride
}

// assertReplay checks that an account's balance equals the sum of its rows
// and that every row's BalanceAfter is the running total.
func assertReplay(t *testing.T, store *MockStore, owner string, kind domain.AccountKind) {
	t.Helper()
	running := decimal.Zero
	for i, txn := range store.Transactions(owner, kind) {
		running = running.Add(txn.Amount)
		if !txn.BalanceAfter.Equal(running) {
			t.Errorf("%s/%s row %d: balance_after = %s, want %s", kind, owner, i, txn.BalanceAfter, running)
		}
	}
	if got := store.Balance(owner, kind); !got.Equal(running) {
		t.Errorf("%s/%s balance = %s, replayed %s", kind, owner, got, running)
	}
}
