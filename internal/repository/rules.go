package repository

import (
	"context"

	"ridecore/internal/domain"
)

// RuleRepository reads the pricing and policy configuration tables.
type RuleRepository interface {
	// ListFareRules returns the fare bands of a tier.
	ListFareRules(ctx context.Context, tier domain.VehicleTier) ([]domain.FareRule, error)

	// ListDistanceRewards returns every distance reward.
	ListDistanceRewards(ctx context.Context) ([]domain.DistanceReward, error)

	// ActiveCancellationPolicy returns the active policy, or ErrNotFound.
	ActiveCancellationPolicy(ctx context.Context) (*domain.CancellationPolicy, error)
}

// IncentiveRepository persists incentive rules and per-driver progress.
type IncentiveRepository interface {
	// ListIncentives returns every incentive rule.
	ListIncentives(ctx context.Context) ([]domain.Incentive, error)

	// LockProgress returns the driver's progress for an incentive, creating it
	// when missing, and locks the row until the transaction ends.
	LockProgress(ctx context.Context, driverID, incentiveID string) (*domain.IncentiveProgress, error)

	// SaveProgress persists counters and the earned flag.
	SaveProgress(ctx context.Context, progress *domain.IncentiveProgress) error

	// ResetEarned starts a new incentive period for every driver and returns how many rows changed.
	ResetEarned(ctx context.Context) (int64, error)
}
