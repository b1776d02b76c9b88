package pricing

import (
	"sort"

	"ridecore/internal/domain"
)

// DriverIncentiveMultiplier scales a matched reward's cashback into the driver incentive.
// It is a product policy value, not derived from anything.
const DriverIncentiveMultiplier = 2

// RewardsFor returns the driver incentive and customer reward of the first
// distance reward, ordered by MinDistance, that covers distanceKm and tier.
func RewardsFor(rewards []domain.DistanceReward, distanceKm float64, tier domain.VehicleTier) (int64, domain.CustomerReward) {
	candidates := make([]domain.DistanceReward, 0, len(rewards))
	for _, r := range rewards {
		if r.MinDistance > distanceKm {
			continue
		}
		if r.VehicleTier != nil && *r.VehicleTier != tier {
			continue
		}
		candidates = append(candidates, r)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MinDistance < candidates[j].MinDistance
	})

	for _, r := range candidates {
		if r.MaxDistance != nil && distanceKm > *r.MaxDistance {
			continue
		}

		cashback, bottles, tea := r.Cashback, r.WaterBottles, r.Tea
		reward := domain.CustomerReward{
			Cashback:     &cashback,
			WaterBottles: &bottles,
			Tea:          &tea,
		}
		if r.Discount != 0 {
			discount := r.Discount
			reward.Discount = &discount
		}
		return r.Cashback * DriverIncentiveMultiplier, reward
	}
	return 0, domain.CustomerReward{}
}
