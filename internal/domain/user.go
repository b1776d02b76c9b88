package domain

import "time"

// Role is derived from the capabilities a person carries.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Person is anyone who can book or drive. Driving is an optional capability.
type Person struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	PushToken string
	Driver    *DriverProfile
	CreatedAt time.Time
}

// Role returns RoleDriver when the person carries a driver profile.
func (p *Person) Role() Role {
	if p.Driver != nil {
		return RoleDriver
	}
	return RoleRider
}

// IsDriver reports whether the person can drive.
func (p *Person) IsDriver() bool {
	return p.Driver != nil
}
