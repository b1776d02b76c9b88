package repository

import (
	"context"
	"time"

	"ridecore/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride and locks its row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// Update updates an existing ride.
	Update(ctx context.Context, ride *domain.Ride) error

	// AddRejection records that a driver rejected the ride.
	AddRejection(ctx context.Context, rideID, driverID string) error

	// CountCancelledByUser counts the rider's rides flagged as cancelled by the user.
	CountCancelledByUser(ctx context.Context, riderID string) (int, error)

	// ReclassifyFreeCancellations clears the cancelled-by-user flag on the rider's
	// zero-charge user cancellations and returns how many rows changed.
	ReclassifyFreeCancellations(ctx context.Context, riderID string) (int64, error)

	// ListStalePending returns pending rides whose dispatch reference time is before cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ride, error)

	// MarkDispatched stamps a pending, not yet dispatched ride. It returns false
	// when the ride is no longer pending or was already dispatched.
	MarkDispatched(ctx context.Context, rideID string, at time.Time) (bool, error)

	// ListByRider retrieves the most recent rides of a rider.
	ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error)

	// ListByDriver retrieves the most recent rides of a driver.
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error)
}
