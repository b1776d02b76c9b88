package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ridecore/internal/domain"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

const rideColumns = `
	id, booking_id, rider_id, driver_id,
	pickup_lat, pickup_lng, pickup_text, drop_lat, drop_lng, drop_text,
	vehicle_tier, pickup_mode, scheduled_at, distance_km,
	base_fare, gst_amount, commission_amount, driver_earnings, total_user_pays,
	driver_incentive, customer_reward, status, payment_type, paid, settled,
	cancellation_charge, is_cancelled_by_user, otp,
	created_at, accepted_at, completed_at, cancelled_at, dispatched_at,
	COALESCE((SELECT array_agg(rr.driver_id ORDER BY rr.created_at) FROM ride_rejections rr WHERE rr.ride_id = rides.id), '{}')
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var (
		ride        domain.Ride
		driverID    sql.NullString
		scheduledAt sql.NullTime
		reward      []byte
		acceptedAt  sql.NullTime
		completedAt sql.NullTime
		cancelledAt sql.NullTime
		dispatched  sql.NullTime
	)
	err := row.Scan(
		&ride.ID, &ride.BookingID, &ride.RiderID, &driverID,
		&ride.Pickup.Lat, &ride.Pickup.Lng, &ride.Pickup.Text, &ride.Drop.Lat, &ride.Drop.Lng, &ride.Drop.Text,
		&ride.VehicleTier, &ride.PickupMode, &scheduledAt, &ride.DistanceKm,
		&ride.Fare.BaseFare, &ride.Fare.GSTAmount, &ride.Fare.CommissionAmount, &ride.Fare.DriverEarnings, &ride.Fare.TotalUserPays,
		&ride.DriverIncentive, &reward, &ride.Status, &ride.PaymentType, &ride.Paid, &ride.Settled,
		&ride.CancellationCharge, &ride.IsCancelledByUser, &ride.OTP,
		&ride.CreatedAt, &acceptedAt, &completedAt, &cancelledAt, &dispatched,
		pq.Array(&ride.RejectedBy),
	)
	if err != nil {
		return nil, translate(err)
	}

	if len(reward) > 0 {
		if err := json.Unmarshal(reward, &ride.CustomerReward); err != nil {
			return nil, fmt.Errorf("decode customer reward of ride %s: %w", ride.ID, err)
		}
	}
	ride.DriverID = driverID.String
	ride.ScheduledAt = scheduledAt.Time
	ride.AcceptedAt = acceptedAt.Time
	ride.CompletedAt = completedAt.Time
	ride.CancelledAt = cancelledAt.Time
	ride.DispatchedAt = dispatched.Time
	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	reward, err := json.Marshal(ride.CustomerReward)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rides (
			id, booking_id, rider_id, driver_id,
			pickup_lat, pickup_lng, pickup_text, drop_lat, drop_lng, drop_text,
			vehicle_tier, pickup_mode, scheduled_at, distance_km,
			base_fare, gst_amount, commission_amount, driver_earnings, total_user_pays,
			driver_incentive, customer_reward, status, payment_type, paid, settled,
			cancellation_charge, is_cancelled_by_user, otp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`
	_, err = r.q.ExecContext(ctx, query,
		ride.ID, ride.BookingID, ride.RiderID, nullString(ride.DriverID),
		ride.Pickup.Lat, ride.Pickup.Lng, ride.Pickup.Text, ride.Drop.Lat, ride.Drop.Lng, ride.Drop.Text,
		ride.VehicleTier, ride.PickupMode, nullTime(ride.ScheduledAt), ride.DistanceKm,
		ride.Fare.BaseFare, ride.Fare.GSTAmount, ride.Fare.CommissionAmount, ride.Fare.DriverEarnings, ride.Fare.TotalUserPays,
		ride.DriverIncentive, reward, ride.Status, ride.PaymentType, ride.Paid, ride.Settled,
		ride.CancellationCharge, ride.IsCancelledByUser, ride.OTP, ride.CreatedAt,
	)
	return translate(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	return scanRide(r.q.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id))
}

// GetByIDForUpdate retrieves a ride and locks its row.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return scanRide(r.q.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE OF rides`, id))
}

// Update persists the mutable columns of a ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET driver_id = $1, status = $2, paid = $3, settled = $4,
		    cancellation_charge = $5, is_cancelled_by_user = $6,
		    accepted_at = $7, completed_at = $8, cancelled_at = $9, dispatched_at = $10
		WHERE id = $11
	`
	return mustAffect(r.q.ExecContext(ctx, query,
		nullString(ride.DriverID), ride.Status, ride.Paid, ride.Settled,
		ride.CancellationCharge, ride.IsCancelledByUser,
		nullTime(ride.AcceptedAt), nullTime(ride.CompletedAt), nullTime(ride.CancelledAt), nullTime(ride.DispatchedAt),
		ride.ID,
	))
}

// AddRejection records that a driver rejected the ride. Repeats are ignored.
func (r *RideRepository) AddRejection(ctx context.Context, rideID, driverID string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO ride_rejections (ride_id, driver_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		rideID, driverID)
	return translate(err)
}

// CountCancelledByUser counts the rider's rides flagged as cancelled by the user.
func (r *RideRepository) CountCancelledByUser(ctx context.Context, riderID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rides WHERE rider_id = $1 AND is_cancelled_by_user`, riderID).Scan(&n)
	return n, translate(err)
}

// ReclassifyFreeCancellations clears the flag on zero-charge user cancellations.
func (r *RideRepository) ReclassifyFreeCancellations(ctx context.Context, riderID string) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE rides SET is_cancelled_by_user = FALSE
		WHERE rider_id = $1 AND is_cancelled_by_user AND cancellation_charge = 0`, riderID)
	if err != nil {
		return 0, translate(err)
	}
	return result.RowsAffected()
}

// ListStalePending returns pending rides whose dispatch reference time is before cutoff.
func (r *RideRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE status = 'pending'
		  AND COALESCE(CASE WHEN pickup_mode = 'later' THEN scheduled_at END, created_at) < $1
		ORDER BY created_at
		LIMIT $2`
	return r.list(ctx, query, cutoff, limit)
}

// MarkDispatched stamps a pending ride that has not been dispatched yet.
func (r *RideRepository) MarkDispatched(ctx context.Context, rideID string, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE rides SET dispatched_at = $1
		WHERE id = $2 AND status = 'pending' AND dispatched_at IS NULL`, at, rideID)
	if err != nil {
		return false, translate(err)
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// ListByRider retrieves the most recent rides of a rider.
func (r *RideRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	return r.list(ctx, `SELECT `+rideColumns+` FROM rides WHERE rider_id = $1 ORDER BY created_at DESC LIMIT $2`, riderID, limit)
}

// ListByDriver retrieves the most recent rides of a driver.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	return r.list(ctx, `SELECT `+rideColumns+` FROM rides WHERE driver_id = $1 ORDER BY created_at DESC LIMIT $2`, driverID, limit)
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}
