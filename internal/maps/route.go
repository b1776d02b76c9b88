// Package maps estimates road distance between two points.
package maps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"

	"ridecore/internal/domain"
	"ridecore/internal/geo"
)

// ErrNoRoute is returned when the routing API finds no route.
var ErrNoRoute = errors.New("no route found")

// RouteService computes driving distance with the Google Maps Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// DistanceKm returns the driving distance of the first route from → to.
func (s *RouteService) DistanceKm(ctx context.Context, from, to domain.Point) (float64, error) {
	routes, _, err := s.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, ErrNoRoute
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return geo.Round2(float64(meters) / 1000), nil
}

func latLng(p domain.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

// StraightLine measures great-circle distance. It never fails.
type StraightLine struct{}

// DistanceKm returns the haversine distance rounded to two decimals.
func (StraightLine) DistanceKm(_ context.Context, from, to domain.Point) (float64, error) {
	return geo.Round2(geo.Haversine(from.Lat, from.Lng, to.Lat, to.Lng)), nil
}

// Estimator is anything that can measure a trip.
type Estimator interface {
	DistanceKm(ctx context.Context, from, to domain.Point) (float64, error)
}

// Fallback asks Primary and falls back to straight-line distance on error.
type Fallback struct {
	Primary Estimator
	Logger  *slog.Logger
}

// DistanceKm implements Estimator.
func (f Fallback) DistanceKm(ctx context.Context, from, to domain.Point) (float64, error) {
	if f.Primary != nil {
		d, err := f.Primary.DistanceKm(ctx, from, to)
		if err == nil {
			return d, nil
		}
		if f.Logger != nil {
			f.Logger.WarnContext(ctx, "route distance unavailable; using straight line", "error", err)
		}
	}
	return StraightLine{}.DistanceKm(ctx, from, to)
}
