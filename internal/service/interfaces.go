package service

import (
	"context"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/gateway"
	"ridecore/internal/notify"
)

// Notifier delivers push notifications. Failures are logged by callers, never returned.
type Notifier interface {
	Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) (notify.BatchResult, error)
}

// DriverDirectory is the read-only source matching snapshots are built from.
type DriverDirectory interface {
	ListOnlineAvailableDrivers(ctx context.Context, tier domain.VehicleTier) ([]domain.DriverRef, error)
}

// PaymentGateway creates orders, verifies callbacks and pays drivers out.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
	Payout(ctx context.Context, account string, amount decimal.Decimal, beneficiary string) (gateway.PayoutResult, error)
}

// EventPublisher emits committed ride transitions.
type EventPublisher interface {
	PublishTransition(ctx context.Context, t domain.RideTransition) error
}

// DistanceEstimator measures the trip distance between pickup and drop.
type DistanceEstimator interface {
	DistanceKm(ctx context.Context, from, to domain.Point) (float64, error)
}

// LocationBroadcaster fans a driver position out to live subscribers.
type LocationBroadcaster interface {
	BroadcastLocation(driverID string, lat, lng float64) int
}
