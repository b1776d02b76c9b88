package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
)

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func carCityRules() []domain.FareRule {
	return []domain.FareRule{
		{ID: "above", VehicleTier: domain.VehicleTierCarCity, MinDistance: 10, MaxDistance: nil, PerKmRate: 12, GSTPercent: 5, CommissionPercent: 10},
		{ID: "city", VehicleTier: domain.VehicleTierCarCity, MinDistance: 0, MaxDistance: f64(10), PerKmRate: 10, GSTPercent: 5, CommissionPercent: 10},
		{ID: "bike", VehicleTier: domain.VehicleTierBike, MinDistance: 0, MaxDistance: nil, PerKmRate: 5, GSTPercent: 5, CommissionPercent: 10},
	}
}

func TestCalculate_CarCityEightKm(t *testing.T) {
	t.Parallel()

	got, err := Calculator{Strict: true}.Calculate(carCityRules(), domain.VehicleTierCarCity, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.FareBreakdown{BaseFare: 80, CommissionAmount: 8, DriverEarnings: 72, GSTAmount: 4, TotalUserPays: 84}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestCalculate_BandBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		distance float64
		wantBase int64
	}{
		{"lower bound of first band", 0, 0},
		{"upper bound is inclusive", 10, 100},
		{"above band", 10.5, 126},
		{"far above", 100, 1200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculator{Strict: true}.Calculate(carCityRules(), domain.VehicleTierCarCity, tc.distance)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.BaseFare != tc.wantBase {
				t.Errorf("expected base %d, got %d", tc.wantBase, got.BaseFare)
			}
		})
	}
}

func TestCalculate_ComponentsAlwaysReconcile(t *testing.T) {
	t.Parallel()

	rule := domain.FareRule{VehicleTier: domain.VehicleTierAuto, PerKmRate: 13.7, GSTPercent: 18, CommissionPercent: 12.5}
	for _, d := range []float64{0.3, 1.1, 2.29, 7.77, 19.99, 42.5, 133.33} {
		b := BreakdownFor(rule, d)
		if b.BaseFare+b.GSTAmount != b.TotalUserPays {
			t.Errorf("d=%v: base+gst=%d != total=%d", d, b.BaseFare+b.GSTAmount, b.TotalUserPays)
		}
		if b.CommissionAmount+b.DriverEarnings != b.BaseFare {
			t.Errorf("d=%v: commission+earnings=%d != base=%d", d, b.CommissionAmount+b.DriverEarnings, b.BaseFare)
		}
	}
}

func TestBreakdownFor_ExactDecimalProducts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		rule     domain.FareRule
		distance float64
		want     domain.FareBreakdown
	}{
		{
			name:     "1.15 km at 100",
			rule:     domain.FareRule{PerKmRate: 100, GSTPercent: 5, CommissionPercent: 20},
			distance: 1.15,
			want:     domain.FareBreakdown{BaseFare: 115, CommissionAmount: 23, DriverEarnings: 92, GSTAmount: 5, TotalUserPays: 120},
		},
		{
			name:     "0.57 km at 100",
			rule:     domain.FareRule{PerKmRate: 100},
			distance: 0.57,
			want:     domain.FareBreakdown{BaseFare: 57, DriverEarnings: 57, TotalUserPays: 57},
		},
		{
			name:     "fractional rate still truncates",
			rule:     domain.FareRule{PerKmRate: 13.7, GSTPercent: 18, CommissionPercent: 12.5},
			distance: 2.29,
			// 31.373 -> 31; commission 3.875 -> 3; gst 5.58 -> 5
			want: domain.FareBreakdown{BaseFare: 31, CommissionAmount: 3, DriverEarnings: 28, GSTAmount: 5, TotalUserPays: 36},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BreakdownFor(tc.rule, tc.distance); got != tc.want {
				t.Errorf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestCalculate_NoRule(t *testing.T) {
	t.Parallel()

	_, err := Calculator{Strict: true}.Calculate(carCityRules(), domain.VehicleTierTourismCar, 5)
	if !errors.Is(err, ErrNoFareRule) {
		t.Errorf("expected ErrNoFareRule, got %v", err)
	}

	got, err := Calculator{Strict: false}.Calculate(carCityRules(), domain.VehicleTierTourismCar, 5)
	if err != nil {
		t.Fatalf("lenient mode should not fail: %v", err)
	}
	if got != (domain.FareBreakdown{}) {
		t.Errorf("expected zero fare, got %+v", got)
	}
}

func TestRewardsFor_FirstMatchByMinDistance(t *testing.T) {
	t.Parallel()

	car := domain.VehicleTierCarCity
	rewards := []domain.DistanceReward{
		{ID: "long", MinDistance: 20, Cashback: 50, WaterBottles: 2, Tea: 1, Discount: 10},
		{ID: "short", MinDistance: 5, MaxDistance: f64(20), Cashback: 20, WaterBottles: 1},
		{ID: "bike-only", VehicleTier: ptrTier(domain.VehicleTierBike), MinDistance: 0, Cashback: 99},
		{ID: "car-any", VehicleTier: &car, MinDistance: 0, MaxDistance: f64(4), Cashback: 5},
	}

	incentive, reward := RewardsFor(rewards, 12, car)
	if incentive != 40 {
		t.Errorf("expected incentive 40, got %d", incentive)
	}
	if reward.Cashback == nil || *reward.Cashback != 20 {
		t.Errorf("expected cashback 20, got %v", reward.Cashback)
	}
	if reward.Discount != nil {
		t.Errorf("expected no discount key, got %v", *reward.Discount)
	}

	incentive, reward = RewardsFor(rewards, 25, car)
	if incentive != 100 || reward.Discount == nil || *reward.Discount != 10 {
		t.Errorf("expected long reward with discount, got %d %+v", incentive, reward)
	}

	incentive, reward = RewardsFor(rewards, 4.5, car)
	if incentive != 0 || !reward.IsZero() {
		t.Errorf("expected no reward in gap, got %d %+v", incentive, reward)
	}
}

func ptrTier(t domain.VehicleTier) *domain.VehicleTier { return &t }

func TestRideKindFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		inc    domain.Incentive
		d      float64
		want   domain.IncentiveKind
		counts bool
	}{
		{"no distance is city", domain.Incentive{}, 3, domain.IncentiveCity, true},
		{"city_distance inside", domain.Incentive{Kind: domain.IncentiveCityDistance, Distance: f64(5), MaxDistance: f64(15)}, 5, domain.IncentiveCityDistance, true},
		{"city_distance outside", domain.Incentive{Kind: domain.IncentiveCityDistance, Distance: f64(5), MaxDistance: f64(15)}, 16, "", false},
		{"long strictly inside", domain.Incentive{Kind: domain.IncentiveLong, Distance: f64(50)}, 60, domain.IncentiveLong, true},
		{"long boundary falls to tourist", domain.Incentive{Kind: domain.IncentiveLong, Distance: f64(50)}, 50, domain.IncentiveTourist, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RideKindFor(tc.d, tc.inc)
			if got != tc.want || ok != tc.counts {
				t.Errorf("expected (%q,%v), got (%q,%v)", tc.want, tc.counts, got, ok)
			}
		})
	}
}

func TestAdvance_CreditsOnce(t *testing.T) {
	t.Parallel()

	inc := domain.Incentive{ID: "i1", Days: intp(2), DriverIncentive: decimal.NewFromInt(100)}
	p := domain.IncentiveProgress{DriverID: "d1", IncentiveID: "i1"}

	p, credit := Advance(p, inc, 3)
	if credit || p.RidesCompleted != 1 {
		t.Fatalf("first ride should not credit: %+v", p)
	}
	p, credit = Advance(p, inc, 3)
	if !credit || !p.Earned {
		t.Fatalf("second ride should credit: %+v", p)
	}
	p, credit = Advance(p, inc, 3)
	if credit {
		t.Error("already earned incentive must not credit again")
	}
	if p.RidesCompleted != 3 || p.TravelledDistance != 9 {
		t.Errorf("counters should keep advancing: %+v", p)
	}
}

func TestAdvance_SkipsNonCountingRides(t *testing.T) {
	t.Parallel()

	inc := domain.Incentive{Kind: domain.IncentiveCityDistance, Distance: f64(5), MaxDistance: f64(10)}
	p, credit := Advance(domain.IncentiveProgress{}, inc, 20)
	if credit || p.RidesCompleted != 0 {
		t.Errorf("ride outside band should be ignored: %+v", p)
	}
}
