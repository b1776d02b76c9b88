package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/logging"
	"ridecore/internal/service"
	"ridecore/internal/tasks"
)

func TestBookRide_Now(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	h.addDriver("d2", domain.VehicleTierBike, 12.975, 77.595)
	h.addDriver("car", domain.VehicleTierCarCity, 12.97, 77.59)

	ride := h.book(t, "r1", domain.PaymentTypeCOD)

	want := domain.FareBreakdown{BaseFare: 50, GSTAmount: 2, CommissionAmount: 10, DriverEarnings: 40, TotalUserPays: 52}
	if ride.Fare != want {
		t.Errorf("fare = %+v, want %+v", ride.Fare, want)
	}
	if ride.Status != domain.RideStatusPending {
		t.Errorf("status = %s, want pending", ride.Status)
	}
	if len(ride.OTP) != 4 || len(ride.BookingID) != 4 {
		t.Errorf("otp = %q, booking id = %q, want four digits each", ride.OTP, ride.BookingID)
	}
	if ride.DispatchedAt.IsZero() {
		t.Error("immediate ride should be stamped dispatched")
	}

	payment := h.store.Payment(ride.ID)
	if payment == nil {
		t.Fatal("payment not stored")
	}
	if payment.Status != domain.PaymentStatusPending || !payment.Amount.Equal(decimal.NewFromInt(52)) {
		t.Errorf("payment = %s %s, want PENDING 52", payment.Status, payment.Amount)
	}

	offers := h.notifier.WithTitle("New Ride Request")
	if len(offers) != 1 {
		t.Fatalf("ride requests sent = %d, want 1", len(offers))
	}
	tokens := strings.Join(offers[0].Tokens, ",")
	if !strings.Contains(tokens, "tok-d1") || !strings.Contains(tokens, "tok-d2") || strings.Contains(tokens, "tok-car") {
		t.Errorf("offered tokens = %s, want both bikes and no car", tokens)
	}

	if tr := h.publisher.Transitions(); len(tr) != 1 || tr[0].Event != domain.RideEventRequest {
		t.Errorf("published = %+v, want one request event", tr)
	}
}

func TestBookRide_FallsBackToNearestOutsideRadius(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	// About 30 km away, outside the 5 km search radius.
	h.addDriver("far", domain.VehicleTierBike, 13.24, 77.59)

	h.book(t, "r1", domain.PaymentTypeCOD)

	offers := h.notifier.WithTitle("New Ride Request")
	if len(offers) != 1 || len(offers[0].Tokens) != 1 || offers[0].Tokens[0] != "tok-far" {
		t.Errorf("offers = %+v, want only the nearest driver", offers)
	}
}

func TestBookRide_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(h *harness)
		req     service.BookRideRequest
		wantErr error
	}{
		{
			name:    "no driver",
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierBike},
			wantErr: service.ErrNoDriverAvailable,
		},
		{
			name: "wallet too low",
			setup: func(h *harness) {
				h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
			},
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierBike, PaymentType: domain.PaymentTypeWallet},
			wantErr: service.ErrInsufficientBalance,
		},
		{
			name: "no fare band",
			setup: func(h *harness) {
				h.addDriver("d1", domain.VehicleTierAuto, 12.98, 77.60)
			},
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierAuto},
			wantErr: service.ErrNoFareRule,
		},
		{
			name:    "unknown tier",
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierAny},
			wantErr: service.ErrValidation,
		},
		{
			name:    "pickup out of range",
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 91, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierBike},
			wantErr: service.ErrValidation,
		},
		{
			name:    "later without time",
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierBike, PickupMode: domain.PickupModeLater},
			wantErr: service.ErrValidation,
		},
		{
			name:    "later in the past",
			req:     service.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: domain.VehicleTierBike, PickupMode: domain.PickupModeLater, ScheduledAt: testNow.Add(-time.Minute)},
			wantErr: service.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.addRider("r1")
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := h.dispatch.BookRide(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BookRide() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(h.store.Rides()); n != 0 {
				t.Errorf("rides stored = %d, want 0", n)
			}
		})
	}
}

func TestBookRide_WalletWithEnoughBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	h.fund(t, service.RiderAccount("r1"), 52)

	ride := h.book(t, "r1", domain.PaymentTypeWallet)
	if ride.PaymentType != domain.PaymentTypeWallet {
		t.Errorf("payment type = %s, want wallet", ride.PaymentType)
	}
	// Nothing is debited until the ride completes.
	if got := h.store.Balance("r1", domain.AccountKindRider); !got.Equal(decimal.NewFromInt(52)) {
		t.Errorf("balance = %s, want 52", got)
	}
}

func TestBookRide_GatewayOrder(t *testing.T) {
	t.Parallel()

	t.Run("order created", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.addRider("r1")
		h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)

		ride := h.book(t, "r1", domain.PaymentTypeGateway)
		if got := h.store.Payment(ride.ID).OrderRef; got != "order_test_1" {
			t.Errorf("order ref = %q, want order_test_1", got)
		}
	})

	t.Run("placeholder when gateway fails", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.addRider("r1")
		h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
		h.gateway.CreateOrderError = errors.New("gateway down")

		ride := h.book(t, "r1", domain.PaymentTypeGateway)
		got := h.store.Payment(ride.ID).OrderRef
		if !strings.HasPrefix(got, "order_"+ride.ID+"_") {
			t.Errorf("order ref = %q, want placeholder", got)
		}
	})
}

func TestBookRide_DistanceLookupFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	logger := logging.Discard()
	h.dispatch = service.NewDispatchService(
		h.store, service.NewFareService(service.NewRuleSource(h.store.Repos().Rules, nil, logger), true),
		h.incentives, h.matching, h.ledger, service.NewNotificationService(h.notifier, logger),
		h.gateway, FixedDistance{Err: errors.New("quota exceeded")}, h.queue, h.publisher, logger,
	)

	_, err := h.dispatch.BookRide(context.Background(), service.BookRideRequest{
		RiderID:     "r1",
		Pickup:      domain.Point{Lat: 12.97, Lng: 77.59},
		Drop:        &domain.Point{Lat: 13.01, Lng: 77.61},
		VehicleTier: domain.VehicleTierBike,
	})
	if !errors.Is(err, service.ErrExternalService) {
		t.Fatalf("BookRide() error = %v, want ErrExternalService", err)
	}
}

func TestBookRide_CustomerReward(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	bike := domain.VehicleTierBike
	h.store.SetDistanceRewards(
		domain.DistanceReward{ID: "short", VehicleTier: &bike, MinDistance: 0, MaxDistance: ptr(10.0), Cashback: 5, Tea: 1},
	)

	ride := h.book(t, "r1", domain.PaymentTypeCOD)
	if ride.CustomerReward.Cashback == nil || *ride.CustomerReward.Cashback != 5 {
		t.Errorf("cashback = %v, want 5", ride.CustomerReward.Cashback)
	}
	if ride.CustomerReward.Discount != nil {
		t.Errorf("discount = %d, want unset", *ride.CustomerReward.Discount)
	}
	if ride.DriverIncentive != 10 {
		t.Errorf("driver incentive = %d, want 10", ride.DriverIncentive)
	}
}

func TestBookRide_Scheduled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.addRider("r1")
	at := testNow.Add(time.Hour)

	// No driver is needed at booking time.
	ride, err := h.dispatch.BookRide(ctx, service.BookRideRequest{
		RiderID:     "r1",
		Pickup:      domain.Point{Lat: 12.97, Lng: 77.59},
		DistanceKm:  5,
		VehicleTier: domain.VehicleTierBike,
		PickupMode:  domain.PickupModeLater,
		ScheduledAt: at,
	})
	if err != nil {
		t.Fatalf("BookRide() error = %v", err)
	}
	if !ride.DispatchedAt.IsZero() {
		t.Error("scheduled ride should not be dispatched at booking")
	}
	if len(h.notifier.WithTitle("New Ride Request")) != 0 {
		t.Error("no offers expected before the scheduled time")
	}

	jobs := h.queue.Snapshot()
	if len(jobs) != 1 || jobs[0].Kind != tasks.KindDispatchScheduledRide || jobs[0].RideID != ride.ID || !jobs[0].RunAt.Equal(at) {
		t.Fatalf("queued jobs = %+v", jobs)
	}

	// Not due yet.
	if n, _ := h.pool.Drain(ctx); n != 0 {
		t.Errorf("drained %d jobs before due time", n)
	}

	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	h.now = at
	if n, err := h.pool.Drain(ctx); err != nil || n != 1 {
		t.Fatalf("Drain() = %d, %v", n, err)
	}
	if got := h.store.Ride(ride.ID); got.DispatchedAt.IsZero() {
		t.Error("ride should be marked dispatched")
	}
	if len(h.notifier.WithTitle("New Ride Request")) != 1 {
		t.Error("driver should be offered the ride")
	}

	// A duplicate delivery is a no-op.
	if err := h.dispatch.DispatchScheduledRide(ctx, jobs[0]); err != nil {
		t.Fatalf("DispatchScheduledRide() error = %v", err)
	}
	if len(h.notifier.WithTitle("New Ride Request")) != 1 {
		t.Error("duplicate job must not offer the ride again")
	}
}
