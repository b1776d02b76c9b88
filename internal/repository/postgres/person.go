package postgres

import (
	"context"
	"database/sql"
	"time"

	"ridecore/internal/domain"
)

// PersonRepository is a PostgreSQL implementation of repository.PersonRepository.
type PersonRepository struct {
	q Querier
}

// NewPersonRepository creates a new PostgreSQL person repository.
func NewPersonRepository(db *sql.DB) *PersonRepository {
	return &PersonRepository{q: db}
}

// Create adds a new person and, for drivers, the driver profile row.
func (r *PersonRepository) Create(ctx context.Context, p *domain.Person) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO people (id, name, phone, email, push_token, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Phone, p.Email, p.PushToken, p.CreatedAt,
	)
	if err != nil || p.Driver == nil {
		return translate(err)
	}

	d := p.Driver
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO driver_profiles (person_id, vehicle_tier, plate_number, lat, lng, available, online, approval_state, located_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, d.VehicleTier, d.PlateNumber, nullFloat(d.Lat), nullFloat(d.Lng),
		d.Available, d.Online, d.ApprovalState, nullTime(d.LocatedAt),
	)
	return translate(err)
}

// GetByID retrieves a person with the driver profile when one exists.
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	query := `
		SELECT p.id, p.name, p.phone, p.email, p.push_token, p.created_at,
		       d.person_id, d.vehicle_tier, d.plate_number, d.lat, d.lng, d.available, d.online,
		       d.approval_state, d.located_at
		FROM people p LEFT JOIN driver_profiles d ON d.person_id = p.id
		WHERE p.id = $1
	`

	var (
		p         domain.Person
		profileID sql.NullString
		tier      sql.NullString
		plate     sql.NullString
		lat, lng  sql.NullFloat64
		available sql.NullBool
		online    sql.NullBool
		approval  sql.NullString
		locatedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Phone, &p.Email, &p.PushToken, &p.CreatedAt,
		&profileID, &tier, &plate, &lat, &lng, &available, &online,
		&approval, &locatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}

	if profileID.Valid {
		p.Driver = &domain.DriverProfile{
			VehicleTier:   domain.VehicleTier(tier.String),
			PlateNumber:   plate.String,
			Lat:           floatPtr(lat),
			Lng:           floatPtr(lng),
			Available:     available.Bool,
			Online:        online.Bool,
			ApprovalState: domain.ApprovalState(approval.String),
			LocatedAt:     locatedAt.Time,
		}
	}
	return &p, nil
}

// ListOnlineAvailableDrivers returns the dispatchable drivers of a tier.
func (r *PersonRepository) ListOnlineAvailableDrivers(ctx context.Context, tier domain.VehicleTier) ([]domain.DriverRef, error) {
	query := `
		SELECT d.person_id, d.lat, d.lng, p.push_token, d.vehicle_tier
		FROM driver_profiles d JOIN people p ON p.id = d.person_id
		WHERE d.online AND d.available
		  AND d.lat IS NOT NULL AND d.lng IS NOT NULL
		  AND p.push_token <> ''
		  AND ($1::text = '' OR $1::text = 'any' OR d.vehicle_tier = $1::text)
		ORDER BY d.person_id
	`

	rows, err := r.q.QueryContext(ctx, query, string(tier))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var drivers []domain.DriverRef
	for rows.Next() {
		var d domain.DriverRef
		if err := rows.Scan(&d.ID, &d.Lat, &d.Lng, &d.PushToken, &d.VehicleTier); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// SetDriverAvailability flips the availability flag of a driver.
func (r *PersonRepository) SetDriverAvailability(ctx context.Context, driverID string, available bool) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE driver_profiles SET available = $1 WHERE person_id = $2`, available, driverID))
}

// ClaimDriver flips available to false only if it is still true, so two
// accepts racing on one driver cannot both succeed.
func (r *PersonRepository) ClaimDriver(ctx context.Context, driverID string) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE driver_profiles SET available = false WHERE person_id = $1 AND available`, driverID)
	if err != nil {
		return false, translate(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetDriverOnline updates the online flag of a driver.
func (r *PersonRepository) SetDriverOnline(ctx context.Context, driverID string, online bool) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE driver_profiles SET online = $1 WHERE person_id = $2`, online, driverID))
}

// UpdateDriverLocation stores the latest reported position.
func (r *PersonRepository) UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64, at time.Time) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE driver_profiles SET lat = $1, lng = $2, located_at = $3 WHERE person_id = $4`,
		lat, lng, at, driverID))
}

// UpdatePushToken stores the device token used for notifications.
func (r *PersonRepository) UpdatePushToken(ctx context.Context, personID, token string) error {
	return mustAffect(r.q.ExecContext(ctx,
		`UPDATE people SET push_token = $1 WHERE id = $2`, token, personID))
}
