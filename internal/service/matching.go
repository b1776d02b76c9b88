package service

import (
	"context"

	"ridecore/internal/domain"
	"ridecore/internal/geo"
	"ridecore/internal/observability"
)

// MatchQuery selects drivers around a point.
type MatchQuery struct {
	Lat     float64
	Lng     float64
	Tier    domain.VehicleTier // empty or "any" matches every tier
	Exclude []string           // drivers that must not be offered the ride
}

func (q MatchQuery) validate() error {
	if !geo.ValidCoordinate(q.Lat, q.Lng) {
		return invalid("location", "latitude must be within [-90,90] and longitude within [-180,180]")
	}
	return nil
}

func (q MatchQuery) filter() geo.Filter {
	f := geo.Filter{Tier: q.Tier}
	if len(q.Exclude) > 0 {
		f.Exclude = make(map[string]struct{}, len(q.Exclude))
		for _, id := range q.Exclude {
			f.Exclude[id] = struct{}{}
		}
	}
	return f
}

// MatchingService answers proximity queries over a snapshot of the driver directory.
type MatchingService struct {
	directory DriverDirectory
	radiusKm  float64
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(directory DriverDirectory, radiusKm float64) *MatchingService {
	if radiusKm <= 0 {
		radiusKm = geo.DefaultRadiusKm
	}
	return &MatchingService{directory: directory, radiusKm: radiusKm}
}

// snapshot builds an index from the drivers currently dispatchable in tier.
func (s *MatchingService) snapshot(ctx context.Context, tier domain.VehicleTier) (*geo.Index, error) {
	if tier == domain.VehicleTierAny {
		tier = ""
	}
	drivers, err := s.directory.ListOnlineAvailableDrivers(ctx, tier)
	if err != nil {
		return nil, err
	}
	observability.MatchCandidates.Observe(float64(len(drivers)))

	candidates := make([]geo.Candidate, 0, len(drivers))
	for _, d := range drivers {
		candidates = append(candidates, geo.Candidate{Driver: d, Online: true, Available: true, Located: true})
	}
	return geo.NewIndexFrom(candidates), nil
}

// NearestAvailable returns the closest eligible driver. The bool is false when nobody qualifies.
func (s *MatchingService) NearestAvailable(ctx context.Context, q MatchQuery) (geo.Match, bool, error) {
	if err := q.validate(); err != nil {
		return geo.Match{}, false, err
	}
	idx, err := s.snapshot(ctx, q.Tier)
	if err != nil {
		return geo.Match{}, false, err
	}
	m, ok := idx.Nearest(q.Lat, q.Lng, q.filter())
	return m, ok, nil
}

// WithinRadius returns eligible drivers no further than radiusKm, closest first.
// A zero radius uses the configured search radius.
func (s *MatchingService) WithinRadius(ctx context.Context, q MatchQuery, radiusKm float64) ([]geo.Match, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if radiusKm < 0 {
		return nil, invalid("radius_km", "must not be negative")
	}
	if radiusKm == 0 {
		radiusKm = s.radiusKm
	}
	idx, err := s.snapshot(ctx, q.Tier)
	if err != nil {
		return nil, err
	}
	return idx.WithinRadius(q.Lat, q.Lng, radiusKm, q.filter()), nil
}

// GetNearestDriver returns the closest dispatchable driver or ErrNoDriverAvailable.
func (s *MatchingService) GetNearestDriver(ctx context.Context, lat, lng float64, tier domain.VehicleTier) (geo.Match, error) {
	m, ok, err := s.NearestAvailable(ctx, MatchQuery{Lat: lat, Lng: lng, Tier: tier})
	if err != nil {
		return geo.Match{}, err
	}
	if !ok {
		return geo.Match{}, ErrNoDriverAvailable
	}
	return m, nil
}
