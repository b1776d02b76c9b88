package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

func TestCancel_FreeAllowanceThenCharge(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)

	// Policy: two free cancellations, then 50 per cancellation.
	steps := []struct {
		charge    int64
		status    string
		remaining int
		balance   int64
	}{
		{charge: 0, status: service.ChargeStatusFree, remaining: 1, balance: 0},
		{charge: 0, status: service.ChargeStatusFree, remaining: 0, balance: 0},
		{charge: 50, status: service.ChargeStatusCharged, remaining: 0, balance: -50},
		// The charge reclassified the earlier free cancellations, so only
		// the charged one still counts against the allowance.
		{charge: 0, status: service.ChargeStatusFree, remaining: 0, balance: -50},
	}

	for i, step := range steps {
		ride := h.book(t, "r1", domain.PaymentTypeCOD)
		res, err := h.rides.Cancel(ctx, service.CancelRideRequest{RideID: ride.ID, ActorID: "r1", Reason: "changed plans"})
		if err != nil {
			t.Fatalf("cancel #%d: %v", i+1, err)
		}
		if !res.Charge.Equal(decimal.NewFromInt(step.charge)) {
			t.Errorf("cancel #%d: charge = %s, want %d", i+1, res.Charge, step.charge)
		}
		if res.ChargeStatus != step.status {
			t.Errorf("cancel #%d: status = %q, want %q", i+1, res.ChargeStatus, step.status)
		}
		if res.RemainingFreeCancellations != step.remaining {
			t.Errorf("cancel #%d: remaining = %d, want %d", i+1, res.RemainingFreeCancellations, step.remaining)
		}
		if !res.NewBalance.Equal(decimal.NewFromInt(step.balance)) {
			t.Errorf("cancel #%d: balance = %s, want %d", i+1, res.NewBalance, step.balance)
		}
		if res.Ride.Status != domain.RideStatusCancelledByUser {
			t.Errorf("cancel #%d: ride status = %s", i+1, res.Ride.Status)
		}
	}

	platform := h.store.Account(domain.PlatformOwnerID, domain.AccountKindPlatform)
	if platform == nil || !platform.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("platform = %+v, want balance 50", platform)
	}
	txns := h.store.Transactions(domain.PlatformOwnerID, domain.AccountKindPlatform)
	if len(txns) != 1 || txns[0].Type != domain.TxRevenue {
		t.Errorf("platform postings = %+v, want one revenue row", txns)
	}
	if !platform.TotalCommission.IsZero() {
		t.Errorf("commission total = %s, want 0", platform.TotalCommission)
	}
	assertReplay(t, h.store, "r1", domain.AccountKindRider)
}

func TestCancel_ByDriver(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	h.fund(t, service.RiderAccount("r1"), 30)
	ride := h.book(t, "r1", domain.PaymentTypeCOD)
	if _, err := h.transition(ride, "d1", domain.RideEventAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}

	res, err := h.rides.Cancel(context.Background(), service.CancelRideRequest{RideID: ride.ID, ActorID: "d1"})
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if res.Ride.Status != domain.RideStatusCancelledByDriver || res.ChargeStatus != service.ChargeStatusNone {
		t.Errorf("result = %s %q", res.Ride.Status, res.ChargeStatus)
	}
	if !res.Charge.IsZero() || !res.NewBalance.Equal(decimal.NewFromInt(30)) {
		t.Errorf("charge = %s, balance = %s, want 0 and 30", res.Charge, res.NewBalance)
	}
	if !h.store.Person("d1").Driver.Available {
		t.Error("driver should be released")
	}
	cancelled := h.notifier.WithTitle("Ride Cancelled")
	if len(cancelled) != 1 || cancelled[0].Tokens[0] != "tok-r1" {
		t.Errorf("cancel notices = %+v, want one to the rider", cancelled)
	}
}

func TestCancel_RiderReleasesAssignedDriver(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	ride := h.book(t, "r1", domain.PaymentTypeCOD)
	for _, ev := range []domain.RideEvent{domain.RideEventAccept, domain.RideEventArrive, domain.RideEventStart} {
		if _, err := h.transition(ride, "d1", ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}

	if _, err := h.rides.Cancel(context.Background(), service.CancelRideRequest{RideID: ride.ID, ActorID: "r1"}); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !h.store.Person("d1").Driver.Available {
		t.Error("driver should be released")
	}
	cancelled := h.notifier.WithTitle("Ride Cancelled")
	if len(cancelled) != 1 || cancelled[0].Tokens[0] != "tok-d1" {
		t.Errorf("cancel notices = %+v, want one to the driver", cancelled)
	}
}

func TestCancel_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, h *harness, ride *domain.Ride)
		actor   string
		wantErr error
	}{
		{name: "stranger", actor: "someone", wantErr: service.ErrForbidden},
		{name: "unassigned driver", actor: "d1", wantErr: service.ErrForbidden},
		{
			name:    "no policy",
			setup:   func(_ *testing.T, h *harness, _ *domain.Ride) { h.store.SetPolicy(nil) },
			actor:   "r1",
			wantErr: service.ErrConfiguration,
		},
		{
			name: "inactive policy",
			setup: func(_ *testing.T, h *harness, _ *domain.Ride) {
				h.store.SetPolicy(&domain.CancellationPolicy{ID: 1, Active: false})
			},
			actor:   "r1",
			wantErr: service.ErrConfiguration,
		},
		{
			name:    "completed ride",
			setup:   func(t *testing.T, h *harness, ride *domain.Ride) { h.drive(t, ride, "d1") },
			actor:   "r1",
			wantErr: service.ErrInvalidTransition,
		},
		{
			name:    "missing actor",
			wantErr: service.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.addRider("r1")
			h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
			ride := h.book(t, "r1", domain.PaymentTypeCOD)
			if tt.setup != nil {
				tt.setup(t, h, ride)
			}
			before := h.store.Ride(ride.ID).Status

			_, err := h.rides.Cancel(context.Background(), service.CancelRideRequest{RideID: ride.ID, ActorID: tt.actor})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Cancel() error = %v, want %v", err, tt.wantErr)
			}
			if got := h.store.Ride(ride.ID).Status; got != before {
				t.Errorf("status = %s, want unchanged %s", got, before)
			}
		})
	}
}

func TestCancel_PolicyChargeRollsBackOnLockTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	h.store.SetPolicy(&domain.CancellationPolicy{ID: 1, FreeCancellations: 0, ChargeAmount: decimal.NewFromInt(20), Active: true})
	ride := h.book(t, "r1", domain.PaymentTypeCOD)
	h.store.SetLockError(errLockTimeout)

	_, err := h.rides.Cancel(context.Background(), service.CancelRideRequest{RideID: ride.ID, ActorID: "r1"})
	if !errors.Is(err, service.ErrConcurrencyTimeout) {
		t.Fatalf("Cancel() error = %v, want ErrConcurrencyTimeout", err)
	}
	if got := h.store.Balance("r1", domain.AccountKindRider); !got.IsZero() {
		t.Errorf("rider balance = %s, want 0", got)
	}
	if got := h.store.Ride(ride.ID).Status; got != domain.RideStatusPending {
		t.Errorf("status = %s, want pending", got)
	}
}
