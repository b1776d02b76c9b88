package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	driverLocationKey = "drivers:locations"
	driverSeenKey     = "drivers:located_at"
)

// DriverLocation represents a driver's live position.
type DriverLocation struct {
	DriverID  string    `json:"driver_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationStore mirrors driver positions into a Redis GEO set for live tracking.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD and records when it was seen.
func (s *LocationStore) UpdateLocation(ctx context.Context, loc DriverLocation) error {
	pipe := s.client.TxPipeline()
	pipe.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      loc.DriverID,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	})
	pipe.HSet(ctx, driverSeenKey, loc.DriverID, loc.UpdatedAt.UTC().UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

// GetLocation returns the last mirrored position of a driver, or ErrNoLocation.
func (s *LocationStore) GetLocation(ctx context.Context, driverID string) (*DriverLocation, error) {
	positions, err := s.client.GeoPos(ctx, driverLocationKey, driverID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, ErrNoLocation
	}

	loc := &DriverLocation{
		DriverID: driverID,
		Lat:      positions[0].Latitude,
		Lng:      positions[0].Longitude,
	}
	seen, err := s.client.HGet(ctx, driverSeenKey, driverID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if ms, perr := strconv.ParseInt(seen, 10, 64); perr == nil {
		loc.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return loc, nil
}

// FindNearbyDrivers returns mirrored positions within radiusKm, nearest first.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error) {
	results, err := s.client.GeoSearchLocation(ctx, driverLocationKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]DriverLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, DriverLocation{
			DriverID: r.Name,
			Lat:      r.Latitude,
			Lng:      r.Longitude,
		})
	}
	return locations, nil
}

// RemoveLocation removes a driver from the live set.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, driverLocationKey, driverID)
	pipe.HDel(ctx, driverSeenKey, driverID)
	_, err := pipe.Exec(ctx)
	return err
}
