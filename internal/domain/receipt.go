package domain

import "time"

// Receipt summarises what a completed ride cost and how it was paid.
type Receipt struct {
	ID            string
	RideID        string
	RiderID       string
	DriverID      string
	Pickup        Point
	Drop          Point
	VehicleTier   VehicleTier
	DistanceKm    float64
	Fare          FareBreakdown
	Reward        CustomerReward
	PaymentType   PaymentType
	PaymentStatus PaymentStatus
	Duration      time.Duration // accept to completion
	CompletedAt   time.Time
	IssuedAt      time.Time
}
