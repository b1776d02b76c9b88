package service

import (
	"context"
	"fmt"
	"log/slog"

	"ridecore/internal/domain"
	"ridecore/internal/pricing"
	"ridecore/internal/repository"
)

// IncentiveService computes booking rewards and tracks driver incentive progress.
type IncentiveService struct {
	store  repository.Store
	rules  *RuleSource
	ledger *LedgerService
	logger *slog.Logger
}

// NewIncentiveService creates a new IncentiveService.
func NewIncentiveService(store repository.Store, rules *RuleSource, ledger *LedgerService, logger *slog.Logger) *IncentiveService {
	return &IncentiveService{store: store, rules: rules, ledger: ledger, logger: logger}
}

// RewardsFor returns the driver incentive and the customer reward of a ride.
func (s *IncentiveService) RewardsFor(ctx context.Context, distanceKm float64, tier domain.VehicleTier) (int64, domain.CustomerReward, error) {
	rewards, err := s.rules.DistanceRewards(ctx)
	if err != nil {
		return 0, domain.CustomerReward{}, err
	}
	incentive, reward := pricing.RewardsFor(rewards, distanceKm, tier)
	return incentive, reward, nil
}

// advance records a completed ride against every incentive and credits the
// driver wallet for each incentive newly earned. It runs inside the caller's transaction.
func (s *IncentiveService) advance(ctx context.Context, r repository.Repos, ride *domain.Ride) error {
	incentives, err := r.Incentives.ListIncentives(ctx)
	if err != nil {
		return err
	}
	for _, inc := range incentives {
		if _, counts := pricing.RideKindFor(ride.DistanceKm, inc); !counts {
			continue
		}
		progress, err := r.Incentives.LockProgress(ctx, ride.DriverID, inc.ID)
		if err != nil {
			return err
		}
		updated, credit := pricing.Advance(*progress, inc, ride.DistanceKm)
		if err := r.Incentives.SaveProgress(ctx, &updated); err != nil {
			return err
		}
		if !credit || !inc.DriverIncentive.IsPositive() {
			continue
		}
		if _, err := s.ledger.deposit(ctx, r, Posting{
			Account:     DriverAccount(ride.DriverID),
			Amount:      inc.DriverIncentive,
			Type:        domain.TxReward,
			Description: fmt.Sprintf("Incentive %s earned", inc.ID),
			RideID:      ride.ID,
		}); err != nil {
			return err
		}
		s.logger.Info("driver incentive earned", "driver_id", ride.DriverID, "incentive_id", inc.ID, "amount", inc.DriverIncentive.StringFixed(2))
	}
	return nil
}

// ResetProgress starts a new incentive period for every driver.
func (s *IncentiveService) ResetProgress(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		n, err = r.Incentives.ResetEarned(ctx)
		return err
	})
	if err != nil {
		return 0, storeErr(err)
	}
	s.logger.Info("incentive progress reset", "rows", n)
	return n, nil
}
