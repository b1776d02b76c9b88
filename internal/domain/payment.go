package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment tracks how a ride's fare is collected.
type Payment struct {
	ID         string
	RideID     string
	RiderID    string
	Type       PaymentType
	Amount     decimal.Decimal
	Status     PaymentStatus
	OrderRef   string
	PaymentRef string
	Signature  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CancellationPolicy is the singleton rule set applied when a rider cancels.
type CancellationPolicy struct {
	ID                int64
	FreeCancellations int
	ChargeAmount      decimal.Decimal
	Active            bool
}
