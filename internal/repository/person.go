package repository

import (
	"context"
	"time"

	"ridecore/internal/domain"
)

// PersonRepository defines the persistence operations for riders and drivers.
type PersonRepository interface {
	// Create adds a new person, with its driver profile when present.
	Create(ctx context.Context, person *domain.Person) error

	// GetByID retrieves a person by ID.
	GetByID(ctx context.Context, id string) (*domain.Person, error)

	// ListOnlineAvailableDrivers returns located, online, available drivers with a push token.
	// An empty or "any" tier returns every tier.
	ListOnlineAvailableDrivers(ctx context.Context, tier domain.VehicleTier) ([]domain.DriverRef, error)

	// SetDriverAvailability flips the availability flag of a driver.
	SetDriverAvailability(ctx context.Context, driverID string, available bool) error

	// ClaimDriver marks an available driver unavailable. It reports false,
	// changing nothing, when the driver was already taken.
	ClaimDriver(ctx context.Context, driverID string) (bool, error)

	// SetDriverOnline updates the online flag of a driver.
	SetDriverOnline(ctx context.Context, driverID string, online bool) error

	// UpdateDriverLocation stores the latest reported position. Last writer wins.
	UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64, at time.Time) error

	// UpdatePushToken stores the device token used for notifications.
	UpdatePushToken(ctx context.Context, personID, token string) error
}
