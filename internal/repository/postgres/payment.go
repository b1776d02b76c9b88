package postgres

import (
	"context"
	"database/sql"

	"ridecore/internal/domain"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

const paymentColumns = `id, ride_id, rider_id, type, amount, status, order_ref, payment_ref, signature, created_at, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.RideID, &p.RiderID, &p.Type, &p.Amount, &p.Status,
		&p.OrderRef, &p.PaymentRef, &p.Signature, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (id, ride_id, rider_id, type, amount, status, order_ref, payment_ref, signature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.RideID, p.RiderID, p.Type, p.Amount, p.Status,
		p.OrderRef, p.PaymentRef, p.Signature, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

// GetByRideID retrieves the payment of a ride.
func (r *PaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	return scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE ride_id = $1`, rideID))
}

// GetByOrderRef retrieves a payment by its gateway order reference.
func (r *PaymentRepository) GetByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error) {
	return scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_ref = $1`, orderRef))
}

// Update persists status and gateway references.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, order_ref = $2, payment_ref = $3, signature = $4, updated_at = $5
		WHERE id = $6`,
		p.Status, p.OrderRef, p.PaymentRef, p.Signature, p.UpdatedAt, p.ID))
}
