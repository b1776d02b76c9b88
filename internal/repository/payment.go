package repository

import (
	"context"

	"ridecore/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByRideID retrieves the payment of a ride.
	GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error)

	// GetByOrderRef retrieves a payment by its gateway order reference.
	GetByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error)

	// Update persists status and gateway references.
	Update(ctx context.Context, payment *domain.Payment) error
}
