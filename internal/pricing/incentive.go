package pricing

import (
	"math"

	"ridecore/internal/domain"
)

// RideKindFor classifies a ride of distanceKm against an incentive.
// The second result is false when the incentive does not count the ride.
func RideKindFor(distanceKm float64, inc domain.Incentive) (domain.IncentiveKind, bool) {
	if inc.Distance == nil {
		return domain.IncentiveCity, true
	}

	upper := math.Inf(1)
	if inc.MaxDistance != nil {
		upper = *inc.MaxDistance
	}

	if inc.Kind == domain.IncentiveCityDistance {
		if *inc.Distance <= distanceKm && distanceKm <= upper {
			return domain.IncentiveCityDistance, true
		}
		return "", false
	}
	if *inc.Distance < distanceKm && distanceKm < upper {
		return domain.IncentiveLong, true
	}
	return domain.IncentiveTourist, true
}

// Advance records one completed ride of distanceKm on progress.
// It returns the updated progress and whether the incentive should be
// credited now. Credit is reported at most once per progress record.
func Advance(progress domain.IncentiveProgress, inc domain.Incentive, distanceKm float64) (domain.IncentiveProgress, bool) {
	if _, ok := RideKindFor(distanceKm, inc); !ok {
		return progress, false
	}

	progress.RidesCompleted++
	progress.TravelledDistance += distanceKm

	earned := (inc.Days != nil && *inc.Days > 0 && progress.RidesCompleted >= *inc.Days) ||
		(inc.Distance != nil && *inc.Distance > 0 && progress.TravelledDistance >= *inc.Distance)

	if earned && !progress.Earned {
		progress.Earned = true
		return progress, true
	}
	return progress, false
}
