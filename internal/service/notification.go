package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"ridecore/internal/domain"
	"ridecore/internal/observability"
)

// NotificationService builds ride notifications and hands them to a Notifier.
// Delivery failures are logged and counted, never returned.
type NotificationService struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(notifier Notifier, logger *slog.Logger) *NotificationService {
	return &NotificationService{notifier: notifier, logger: logger}
}

// RideRequested offers a new ride to nearby drivers.
func (s *NotificationService) RideRequested(ctx context.Context, ride *domain.Ride, drivers []domain.DriverRef) {
	tokens := make([]string, 0, len(drivers))
	for _, d := range drivers {
		if d.PushToken != "" {
			tokens = append(tokens, d.PushToken)
		}
	}
	body := fmt.Sprintf("Pickup %s, %.2f km, fare %d", pointLabel(ride.Pickup), ride.DistanceKm, ride.Fare.TotalUserPays)
	s.send(ctx, tokens, "New Ride Request", body, rideData(ride))
}

// RideRejected tells the rider a driver passed on the ride.
func (s *NotificationService) RideRejected(ctx context.Context, ride *domain.Ride, riderToken string) {
	s.send(ctx, tokenList(riderToken), "Ride Rejected", "A driver declined your ride. We are finding another one.", rideData(ride))
}

// RideAccepted tells the rider a driver is on the way.
func (s *NotificationService) RideAccepted(ctx context.Context, ride *domain.Ride, riderToken string) {
	body := fmt.Sprintf("Your driver is on the way. Share OTP %s at pickup.", ride.OTP)
	s.send(ctx, tokenList(riderToken), "Ride Accepted", body, rideData(ride))
}

// RideStatusChanged tells the rider about arrive, start and complete.
func (s *NotificationService) RideStatusChanged(ctx context.Context, ride *domain.Ride, riderToken string) {
	var title, body string
	switch ride.Status {
	case domain.RideStatusArrived:
		title, body = "Driver Arrived", "Your driver has arrived at the pickup point."
	case domain.RideStatusOngoing:
		title, body = "Ride Started", "Your ride has started."
	case domain.RideStatusCompleted:
		title, body = "Ride Completed", fmt.Sprintf("Your ride is complete. Total fare %d.", ride.Fare.TotalUserPays)
	default:
		return
	}
	s.send(ctx, tokenList(riderToken), title, body, rideData(ride))
}

// RideCancelled tells the counterparty a ride was cancelled.
func (s *NotificationService) RideCancelled(ctx context.Context, ride *domain.Ride, counterpartyToken string) {
	body := fmt.Sprintf("Ride %s was cancelled.", ride.BookingID)
	s.send(ctx, tokenList(counterpartyToken), "Ride Cancelled", body, rideData(ride))
}

func (s *NotificationService) send(ctx context.Context, tokens []string, title, body string, data map[string]string) {
	if s.notifier == nil || len(tokens) == 0 {
		return
	}
	res, err := s.notifier.Notify(ctx, tokens, title, body, data)
	if err != nil {
		observability.NotificationFailures.Add(float64(len(tokens)))
		s.logger.Warn("notification failed", "title", title, "tokens", len(tokens), "error", err)
		return
	}
	if res.FailureCount > 0 {
		observability.NotificationFailures.Add(float64(res.FailureCount))
		s.logger.Warn("notification partially delivered", "title", title, "success", res.SuccessCount, "failure", res.FailureCount)
	}
}

func tokenList(token string) []string {
	if token == "" {
		return nil
	}
	return []string{token}
}

func rideData(ride *domain.Ride) map[string]string {
	return map[string]string{
		"ride_id":      ride.ID,
		"booking_id":   ride.BookingID,
		"status":       string(ride.Status),
		"vehicle_tier": string(ride.VehicleTier),
		"pickup_lat":   strconv.FormatFloat(ride.Pickup.Lat, 'f', 6, 64),
		"pickup_lng":   strconv.FormatFloat(ride.Pickup.Lng, 'f', 6, 64),
		"total_fare":   strconv.FormatInt(ride.Fare.TotalUserPays, 10),
	}
}

func pointLabel(p domain.Point) string {
	if p.Text != "" {
		return p.Text
	}
	return fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lng)
}
