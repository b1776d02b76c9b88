// Package pricing computes fares and rewards from configured rules.
// Everything here is pure: rules in, numbers out.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
)

// ErrNoFareRule is returned when no band of the tier covers the distance.
var ErrNoFareRule = errors.New("no fare rule matches tier and distance")

// SelectFareRule returns the first rule of tier, ordered by MinDistance, whose band contains distanceKm.
func SelectFareRule(rules []domain.FareRule, tier domain.VehicleTier, distanceKm float64) (domain.FareRule, bool) {
	candidates := make([]domain.FareRule, 0, len(rules))
	for _, r := range rules {
		if r.VehicleTier == tier {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MinDistance < candidates[j].MinDistance
	})

	for _, r := range candidates {
		if r.MaxDistance == nil {
			if distanceKm >= r.MinDistance {
				return r, true
			}
			continue
		}
		if r.MinDistance <= distanceKm && distanceKm <= *r.MaxDistance {
			return r, true
		}
	}
	return domain.FareRule{}, false
}

var hundred = decimal.NewFromInt(100)

// BreakdownFor splits a fare for distanceKm under rule into whole currency units.
// Each field is truncated, then derived fields are computed from the truncated
// base so the breakdown always sums exactly. Products are exact decimals, so
// 1.15 km at 100/km is 115.
func BreakdownFor(rule domain.FareRule, distanceKm float64) domain.FareBreakdown {
	base := decimal.NewFromFloat(distanceKm).Mul(decimal.NewFromFloat(rule.PerKmRate)).IntPart()
	commission := percentOf(base, rule.CommissionPercent)
	gst := percentOf(base, rule.GSTPercent)

	return domain.FareBreakdown{
		BaseFare:         base,
		CommissionAmount: commission,
		DriverEarnings:   base - commission,
		GSTAmount:        gst,
		TotalUserPays:    base + gst,
	}
}

func percentOf(amount int64, pct float64) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(pct)).Div(hundred).IntPart()
}

// Calculator computes fare breakdowns from a rule set.
type Calculator struct {
	// Strict surfaces ErrNoFareRule when nothing matches. When false the
	// legacy behaviour applies and an all-zero breakdown is returned.
	Strict bool
}

// Calculate looks up the matching rule and returns the breakdown.
func (c Calculator) Calculate(rules []domain.FareRule, tier domain.VehicleTier, distanceKm float64) (domain.FareBreakdown, error) {
	if distanceKm < 0 {
		return domain.FareBreakdown{}, fmt.Errorf("negative distance %.2f", distanceKm)
	}

	rule, ok := SelectFareRule(rules, tier, distanceKm)
	if !ok {
		if c.Strict {
			return domain.FareBreakdown{}, fmt.Errorf("%w: tier=%s distance=%.2fkm", ErrNoFareRule, tier, distanceKm)
		}
		return domain.FareBreakdown{}, nil
	}
	return BreakdownFor(rule, distanceKm), nil
}
