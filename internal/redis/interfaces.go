package redis

import (
	"context"
	"errors"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/tasks"
)

// ErrNoLocation is returned when a driver has no mirrored position.
var ErrNoLocation = errors.New("no live location for driver")

// LocationStoreInterface defines the interface for live driver positions.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, loc DriverLocation) error
	GetLocation(ctx context.Context, driverID string) (*DriverLocation, error)
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, bool, error)
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (*Lock, bool, error)
	Release(ctx context.Context, lock *Lock) error
}

// RuleCacheInterface defines the interface for the pricing table cache.
type RuleCacheInterface interface {
	GetFareRules(ctx context.Context, tier domain.VehicleTier) ([]domain.FareRule, bool, error)
	SetFareRules(ctx context.Context, tier domain.VehicleTier, rules []domain.FareRule) error
	GetDistanceRewards(ctx context.Context) ([]domain.DistanceReward, bool, error)
	SetDistanceRewards(ctx context.Context, rewards []domain.DistanceReward) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ RuleCacheInterface     = (*RuleCache)(nil)
	_ tasks.Queue            = (*JobQueue)(nil)
)
