package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusPending           RideStatus = "pending"
	RideStatusAccepted          RideStatus = "accepted"
	RideStatusArrived           RideStatus = "arrived"
	RideStatusOngoing           RideStatus = "ongoing"
	RideStatusCompleted         RideStatus = "completed"
	RideStatusCancelledByUser   RideStatus = "cancelled_by_user"
	RideStatusCancelledByDriver RideStatus = "cancelled_by_driver"
	RideStatusRejected          RideStatus = "rejected"
	RideStatusAutoCancelled     RideStatus = "auto_cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelledByUser, RideStatusCancelledByDriver,
		RideStatusRejected, RideStatusAutoCancelled:
		return true
	}
	return false
}

// RideEvent is an action applied to a ride.
type RideEvent string

const (
	RideEventRequest    RideEvent = "request"
	RideEventAccept     RideEvent = "accept"
	RideEventReject     RideEvent = "reject"
	RideEventArrive     RideEvent = "arrive"
	RideEventStart      RideEvent = "start"
	RideEventComplete   RideEvent = "complete"
	RideEventCancel     RideEvent = "cancel"
	RideEventAutoCancel RideEvent = "auto_cancel"
)

// AllowedTransitions lists, per event, the states the event may be applied from.
// Reject leaves the ride pending; cancel resolves to a by-user or by-driver state.
var AllowedTransitions = map[RideEvent][]RideStatus{
	RideEventAccept:     {RideStatusPending},
	RideEventReject:     {RideStatusPending},
	RideEventArrive:     {RideStatusAccepted},
	RideEventStart:      {RideStatusArrived},
	RideEventComplete:   {RideStatusOngoing},
	RideEventCancel:     {RideStatusPending, RideStatusAccepted, RideStatusArrived, RideStatusOngoing},
	RideEventAutoCancel: {RideStatusPending},
}

// CanApply reports whether event is valid from the given status.
func CanApply(from RideStatus, event RideEvent) bool {
	return slices.Contains(AllowedTransitions[event], from)
}

// TargetStatus returns the status a ride moves to when event is applied.
// Cancel depends on the actor and is resolved by the caller.
func TargetStatus(event RideEvent) RideStatus {
	switch event {
	case RideEventAccept:
		return RideStatusAccepted
	case RideEventReject:
		return RideStatusPending
	case RideEventArrive:
		return RideStatusArrived
	case RideEventStart:
		return RideStatusOngoing
	case RideEventComplete:
		return RideStatusCompleted
	case RideEventAutoCancel:
		return RideStatusAutoCancelled
	}
	return ""
}

// PickupMode is immediate or scheduled dispatch.
type PickupMode string

const (
	PickupModeNow   PickupMode = "now"
	PickupModeLater PickupMode = "later"
)

// PaymentType represents how the rider pays for a ride.
type PaymentType string

const (
	PaymentTypeCOD     PaymentType = "cod"
	PaymentTypeWallet  PaymentType = "wallet"
	PaymentTypeGateway PaymentType = "gateway"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	return p == PaymentTypeCOD || p == PaymentTypeWallet || p == PaymentTypeGateway
}

// FareBreakdown holds the money fields of a ride in whole currency units.
// TotalUserPays == BaseFare + GSTAmount and BaseFare == CommissionAmount + DriverEarnings.
type FareBreakdown struct {
	BaseFare         int64 `json:"base_fare"`
	GSTAmount        int64 `json:"gst_amount"`
	CommissionAmount int64 `json:"commission_amount"`
	DriverEarnings   int64 `json:"driver_earnings"`
	TotalUserPays    int64 `json:"total_user_pays"`
}

// Point is a coordinate pair with an optional free-text label.
type Point struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Text string  `json:"text,omitempty"`
}

// Ride represents a ride request in the system.
type Ride struct {
	ID                 string
	BookingID          string
	RiderID            string
	DriverID           string // empty until a driver accepts
	Pickup             Point
	Drop               Point
	VehicleTier        VehicleTier
	PickupMode         PickupMode
	ScheduledAt        time.Time
	DistanceKm         float64
	Fare               FareBreakdown
	DriverIncentive    int64
	CustomerReward     CustomerReward
	Status             RideStatus
	PaymentType        PaymentType
	Paid               bool
	Settled            bool
	CancellationCharge decimal.Decimal
	IsCancelledByUser  bool
	OTP                string
	RejectedBy         []string
	CreatedAt          time.Time
	AcceptedAt         time.Time
	CompletedAt        time.Time
	CancelledAt        time.Time
	DispatchedAt       time.Time
}

// HasRejected reports whether the driver has rejected this ride.
func (r *Ride) HasRejected(driverID string) bool {
	return slices.Contains(r.RejectedBy, driverID)
}

// DispatchDeadline is the reference time the stale-pending sweep measures against.
func (r *Ride) DispatchDeadline() time.Time {
	if r.PickupMode == PickupModeLater && !r.ScheduledAt.IsZero() {
		return r.ScheduledAt
	}
	return r.CreatedAt
}

// RideTransition records one committed state change.
type RideTransition struct {
	RideID  string     `json:"ride_id"`
	From    RideStatus `json:"from"`
	To      RideStatus `json:"to"`
	Event   RideEvent  `json:"event"`
	ActorID string     `json:"actor_id,omitempty"`
	At      time.Time  `json:"at"`
}
