package domain

import "time"

// VehicleTier represents the vehicle category used for fares and matching.
type VehicleTier string

const (
	VehicleTierBike       VehicleTier = "bike"
	VehicleTierAuto       VehicleTier = "auto"
	VehicleTierCarCity    VehicleTier = "car_city"
	VehicleTierTourismCar VehicleTier = "tourism_car"

	// VehicleTierAny disables tier filtering in matching.
	VehicleTierAny VehicleTier = "any"
)

// Matches reports whether a driver of tier d satisfies the requested filter.
func (filter VehicleTier) Matches(d VehicleTier) bool {
	return filter == "" || filter == VehicleTierAny || filter == d
}

// Known reports whether t is a bookable tier. VehicleTierAny is not.
func (t VehicleTier) Known() bool {
	switch t {
	case VehicleTierBike, VehicleTierAuto, VehicleTierCarCity, VehicleTierTourismCar:
		return true
	}
	return false
}

// ApprovalState represents document verification of a driver.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// DriverProfile is the driving capability attached to a Person.
type DriverProfile struct {
	VehicleTier   VehicleTier
	PlateNumber   string
	Lat           *float64
	Lng           *float64
	Available     bool
	Online        bool
	ApprovalState ApprovalState
	LocatedAt     time.Time
}

// HasPosition reports whether the driver has reported a location.
func (d *DriverProfile) HasPosition() bool {
	return d.Lat != nil && d.Lng != nil
}

// DriverRef is the matching view of a driver.
type DriverRef struct {
	ID          string      `json:"id"`
	Lat         float64     `json:"lat"`
	Lng         float64     `json:"lng"`
	PushToken   string      `json:"-"`
	VehicleTier VehicleTier `json:"vehicle_tier"`
}
