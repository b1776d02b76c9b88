package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// Receipt builds the receipt of a completed ride.
func (s *PaymentService) Receipt(ctx context.Context, rideID string) (*domain.Receipt, error) {
	if rideID == "" {
		return nil, invalid("ride_id", "required")
	}
	repos := s.store.Repos()
	ride, err := repos.Rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, fmt.Errorf("%w: ride is %s", ErrInvalidTransition, ride.Status)
	}

	status := domain.PaymentStatusPending
	payment, err := repos.Payments.GetByRideID(ctx, rideID)
	switch {
	case err == nil:
		status = payment.Status
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	duration := ride.CompletedAt.Sub(ride.AcceptedAt)
	if ride.AcceptedAt.IsZero() || duration < 0 {
		duration = 0
	}

	return &domain.Receipt{
		ID:            "rcpt_" + ride.ID,
		RideID:        ride.ID,
		RiderID:       ride.RiderID,
		DriverID:      ride.DriverID,
		Pickup:        ride.Pickup,
		Drop:          ride.Drop,
		VehicleTier:   ride.VehicleTier,
		DistanceKm:    ride.DistanceKm,
		Fare:          ride.Fare,
		Reward:        ride.CustomerReward,
		PaymentType:   ride.PaymentType,
		PaymentStatus: status,
		Duration:      duration,
		CompletedAt:   ride.CompletedAt,
		IssuedAt:      s.now(),
	}, nil
}

// FormatReceipt renders a receipt as plain text for email or print.
func FormatReceipt(r *domain.Receipt) string {
	var b strings.Builder
	line := strings.Repeat("=", 37)
	rule := strings.Repeat("-", 37)

	fmt.Fprintf(&b, "%s\n%22s\n%s\n", line, "RIDE RECEIPT", line)
	fmt.Fprintf(&b, "Receipt: %s\nRide:    %s\nDate:    %s\n\n", r.ID, r.RideID, r.CompletedAt.Format("Jan 02, 2006 3:04 PM"))

	fmt.Fprintf(&b, "TRIP\n%s\n", rule)
	fmt.Fprintf(&b, "From:     %s\n", pointLabel(r.Pickup))
	fmt.Fprintf(&b, "To:       %s\n", pointLabel(r.Drop))
	fmt.Fprintf(&b, "Vehicle:  %s\n", r.VehicleTier)
	fmt.Fprintf(&b, "Distance: %.2f km\n", r.DistanceKm)
	fmt.Fprintf(&b, "Duration: %d min\n\n", int(r.Duration.Minutes()))

	fmt.Fprintf(&b, "FARE\n%s\n", rule)
	fmt.Fprintf(&b, "Base fare:  %8d\n", r.Fare.BaseFare)
	fmt.Fprintf(&b, "GST:        %8d\n", r.Fare.GSTAmount)
	fmt.Fprintf(&b, "%s\nTOTAL:      %8d\n", rule, r.Fare.TotalUserPays)
	if r.Reward.Cashback != nil && *r.Reward.Cashback > 0 {
		fmt.Fprintf(&b, "Cashback:   %8d\n", *r.Reward.Cashback)
	}

	fmt.Fprintf(&b, "\nPAYMENT\n%s\n", rule)
	fmt.Fprintf(&b, "Method: %s\nStatus: %s\n", r.PaymentType, r.PaymentStatus)
	fmt.Fprintf(&b, "%s\n", line)
	return b.String()
}
