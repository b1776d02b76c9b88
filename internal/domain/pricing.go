package domain

// FareRule is a per-kilometre rate for one distance band of a tier.
// A nil MaxDistance is the unbounded "above" band.
type FareRule struct {
	ID                string
	VehicleTier       VehicleTier
	MinDistance       float64
	MaxDistance       *float64
	PerKmRate         float64
	GSTPercent        float64
	CommissionPercent float64
}

// DistanceReward grants customer perks for rides within a distance band.
// A nil VehicleTier applies to every tier.
type DistanceReward struct {
	ID           string
	VehicleTier  *VehicleTier
	MinDistance  float64
	MaxDistance  *float64
	Cashback     int64
	WaterBottles int64
	Tea          int64
	Discount     int64
}

// CustomerReward is the sparse perk record attached to a ride.
type CustomerReward struct {
	Cashback     *int64 `json:"cashback,omitempty"`
	WaterBottles *int64 `json:"water_bottles,omitempty"`
	Tea          *int64 `json:"tea,omitempty"`
	Discount     *int64 `json:"discount,omitempty"`
}

// IsZero reports whether no perk is set.
func (c CustomerReward) IsZero() bool {
	return c.Cashback == nil && c.WaterBottles == nil && c.Tea == nil && c.Discount == nil
}
