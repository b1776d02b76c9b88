package domain

import "github.com/shopspring/decimal"

// IncentiveKind classifies an incentive rule by the rides it counts.
type IncentiveKind string

const (
	IncentiveCity         IncentiveKind = "city"
	IncentiveCityDistance IncentiveKind = "city_distance"
	IncentiveLong         IncentiveKind = "long"
	IncentiveTourist      IncentiveKind = "tourist"
)

// Incentive is a longer-horizon driver goal: complete Days rides, or travel
// Distance km, and earn DriverIncentive once.
type Incentive struct {
	ID              string
	Kind            IncentiveKind
	Days            *int
	Distance        *float64
	MaxDistance     *float64
	DriverIncentive decimal.Decimal
}

// IncentiveProgress is a driver's running counters for one incentive.
type IncentiveProgress struct {
	DriverID          string
	IncentiveID       string
	RidesCompleted    int
	TravelledDistance float64
	Earned            bool
}
