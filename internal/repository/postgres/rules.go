package postgres

import (
	"context"
	"database/sql"

	"ridecore/internal/domain"
)

// RuleRepository is a PostgreSQL implementation of repository.RuleRepository.
type RuleRepository struct {
	q Querier
}

// ListFareRules returns the fare bands of a tier ordered by lower bound.
func (r *RuleRepository) ListFareRules(ctx context.Context, tier domain.VehicleTier) ([]domain.FareRule, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, vehicle_tier, min_distance, max_distance, per_km_rate, gst_percent, commission_percent
		FROM fare_rules WHERE vehicle_tier = $1 ORDER BY min_distance`, tier)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var rules []domain.FareRule
	for rows.Next() {
		var (
			fr      domain.FareRule
			maxDist sql.NullFloat64
		)
		if err := rows.Scan(&fr.ID, &fr.VehicleTier, &fr.MinDistance, &maxDist, &fr.PerKmRate, &fr.GSTPercent, &fr.CommissionPercent); err != nil {
			return nil, err
		}
		fr.MaxDistance = floatPtr(maxDist)
		rules = append(rules, fr)
	}
	return rules, rows.Err()
}

// ListDistanceRewards returns every distance reward ordered by lower bound.
func (r *RuleRepository) ListDistanceRewards(ctx context.Context) ([]domain.DistanceReward, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, vehicle_tier, min_distance, max_distance, cashback, water_bottles, tea, discount
		FROM distance_rewards ORDER BY min_distance`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var rewards []domain.DistanceReward
	for rows.Next() {
		var (
			dr      domain.DistanceReward
			tier    sql.NullString
			maxDist sql.NullFloat64
		)
		if err := rows.Scan(&dr.ID, &tier, &dr.MinDistance, &maxDist, &dr.Cashback, &dr.WaterBottles, &dr.Tea, &dr.Discount); err != nil {
			return nil, err
		}
		if tier.Valid {
			t := domain.VehicleTier(tier.String)
			dr.VehicleTier = &t
		}
		dr.MaxDistance = floatPtr(maxDist)
		rewards = append(rewards, dr)
	}
	return rewards, rows.Err()
}

// ActiveCancellationPolicy returns the newest active policy.
func (r *RuleRepository) ActiveCancellationPolicy(ctx context.Context) (*domain.CancellationPolicy, error) {
	var p domain.CancellationPolicy
	err := r.q.QueryRowContext(ctx, `
		SELECT id, free_cancellations, charge_amount, active
		FROM cancellation_policies WHERE active ORDER BY id DESC LIMIT 1`,
	).Scan(&p.ID, &p.FreeCancellations, &p.ChargeAmount, &p.Active)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// IncentiveRepository is a PostgreSQL implementation of repository.IncentiveRepository.
type IncentiveRepository struct {
	q Querier
}

// ListIncentives returns every incentive rule.
func (r *IncentiveRepository) ListIncentives(ctx context.Context) ([]domain.Incentive, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, kind, days, distance, max_distance, driver_incentive FROM incentives ORDER BY id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []domain.Incentive
	for rows.Next() {
		var (
			inc               domain.Incentive
			days              sql.NullInt64
			distance, maxDist sql.NullFloat64
		)
		if err := rows.Scan(&inc.ID, &inc.Kind, &days, &distance, &maxDist, &inc.DriverIncentive); err != nil {
			return nil, err
		}
		if days.Valid {
			d := int(days.Int64)
			inc.Days = &d
		}
		inc.Distance = floatPtr(distance)
		inc.MaxDistance = floatPtr(maxDist)
		out = append(out, inc)
	}
	return out, rows.Err()
}

// LockProgress creates the progress row when missing and locks it.
func (r *IncentiveRepository) LockProgress(ctx context.Context, driverID, incentiveID string) (*domain.IncentiveProgress, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO incentive_progress (driver_id, incentive_id) VALUES ($1, $2)
		ON CONFLICT (driver_id, incentive_id) DO NOTHING`, driverID, incentiveID)
	if err != nil {
		return nil, translate(err)
	}

	p := domain.IncentiveProgress{DriverID: driverID, IncentiveID: incentiveID}
	err = r.q.QueryRowContext(ctx, `
		SELECT rides_completed, travelled_distance, earned
		FROM incentive_progress WHERE driver_id = $1 AND incentive_id = $2 FOR UPDATE`,
		driverID, incentiveID,
	).Scan(&p.RidesCompleted, &p.TravelledDistance, &p.Earned)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// SaveProgress persists counters and the earned flag.
func (r *IncentiveRepository) SaveProgress(ctx context.Context, p *domain.IncentiveProgress) error {
	return mustAffect(r.q.ExecContext(ctx, `
		UPDATE incentive_progress SET rides_completed = $1, travelled_distance = $2, earned = $3
		WHERE driver_id = $4 AND incentive_id = $5`,
		p.RidesCompleted, p.TravelledDistance, p.Earned, p.DriverID, p.IncentiveID))
}

// ResetEarned starts a new period: earned flags and counters go back to zero.
func (r *IncentiveRepository) ResetEarned(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE incentive_progress SET earned = FALSE, rides_completed = 0, travelled_distance = 0
		WHERE earned OR rides_completed > 0`)
	if err != nil {
		return 0, translate(err)
	}
	return result.RowsAffected()
}
