package domain

import (
	"testing"
	"time"
)

func TestCanApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from  RideStatus
		event RideEvent
		want  bool
	}{
		{from: RideStatusPending, event: RideEventAccept, want: true},
		{from: RideStatusPending, event: RideEventReject, want: true},
		{from: RideStatusPending, event: RideEventArrive, want: false},
		{from: RideStatusAccepted, event: RideEventArrive, want: true},
		{from: RideStatusAccepted, event: RideEventStart, want: false},
		{from: RideStatusArrived, event: RideEventStart, want: true},
		{from: RideStatusOngoing, event: RideEventComplete, want: true},
		{from: RideStatusOngoing, event: RideEventCancel, want: true},
		{from: RideStatusAccepted, event: RideEventAutoCancel, want: false},
		{from: RideStatusCompleted, event: RideEventCancel, want: false},
		{from: RideStatusAutoCancelled, event: RideEventAccept, want: false},
	}

	for _, tt := range tests {
		if got := CanApply(tt.from, tt.event); got != tt.want {
			t.Errorf("CanApply(%s, %s) = %v, want %v", tt.from, tt.event, got, tt.want)
		}
	}
}

func TestTerminalStatesAcceptNoEvent(t *testing.T) {
	t.Parallel()

	for event, froms := range AllowedTransitions {
		for _, from := range froms {
			if from.IsTerminal() {
				t.Errorf("%s is allowed from terminal state %s", event, from)
			}
		}
	}
	if TargetStatus(RideEventReject) != RideStatusPending {
		t.Errorf("reject should leave the ride pending")
	}
	if TargetStatus(RideEventCancel) != "" {
		t.Errorf("cancel target depends on the actor")
	}
}

func TestDispatchDeadline(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	pickup := created.Add(3 * time.Hour)

	now := &Ride{PickupMode: PickupModeNow, CreatedAt: created, ScheduledAt: pickup}
	if !now.DispatchDeadline().Equal(created) {
		t.Errorf("now ride deadline = %v, want creation time", now.DispatchDeadline())
	}
	later := &Ride{PickupMode: PickupModeLater, CreatedAt: created, ScheduledAt: pickup}
	if !later.DispatchDeadline().Equal(pickup) {
		t.Errorf("later ride deadline = %v, want pickup time", later.DispatchDeadline())
	}
}

func TestVehicleTierMatches(t *testing.T) {
	t.Parallel()

	if !VehicleTierAny.Matches(VehicleTierAuto) || !VehicleTier("").Matches(VehicleTierBike) {
		t.Error("any and empty should match every tier")
	}
	if VehicleTierBike.Matches(VehicleTierAuto) {
		t.Error("bike should not match auto")
	}
	if VehicleTierAny.Known() {
		t.Error("any is not a bookable tier")
	}
}

func TestPersonRole(t *testing.T) {
	t.Parallel()

	rider := &Person{ID: "r1"}
	driver := &Person{ID: "d1", Driver: &DriverProfile{VehicleTier: VehicleTierBike}}
	if rider.Role() != RoleRider || rider.IsDriver() {
		t.Errorf("rider role = %s", rider.Role())
	}
	if driver.Role() != RoleDriver || !driver.IsDriver() {
		t.Errorf("driver role = %s", driver.Role())
	}
	if AccountKindDriver.AllowsNegative() || AccountKindPlatform.AllowsNegative() || !AccountKindRider.AllowsNegative() {
		t.Error("only rider wallets may go negative")
	}
}
