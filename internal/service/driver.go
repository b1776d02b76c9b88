package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/geo"
	"ridecore/internal/ingest"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

const maxLiveRadiusKm = 50.0

// DriverService handles driver positions and availability.
type DriverService struct {
	store       repository.Store
	locations   redis.LocationStoreInterface
	broadcaster LocationBroadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewDriverService creates a new DriverService. locations and broadcaster may be nil.
func NewDriverService(
	store repository.Store,
	locations redis.LocationStoreInterface,
	broadcaster LocationBroadcaster,
	logger *slog.Logger,
) *DriverService {
	return &DriverService{
		store:       store,
		locations:   locations,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
	At       time.Time // report time; zero means now
}

func (r UpdateLocationRequest) validate() error {
	if r.DriverID == "" {
		return invalid("driver_id", "required")
	}
	if !geo.ValidCoordinate(r.Lat, r.Lng) {
		return invalid("location", "coordinates out of range")
	}
	return nil
}

// UpdateLocation stores the driver position, mirrors it to Redis for live
// tracking and pushes it to websocket subscribers. Last writer wins.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	if err := s.store.Repos().People.UpdateDriverLocation(ctx, req.DriverID, req.Lat, req.Lng, at); err != nil {
		return err
	}

	if s.locations != nil {
		loc := redis.DriverLocation{DriverID: req.DriverID, Lat: req.Lat, Lng: req.Lng, UpdatedAt: at}
		if err := s.locations.UpdateLocation(ctx, loc); err != nil {
			s.logger.Warn("live location mirror failed", "driver_id", req.DriverID, "error", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastLocation(req.DriverID, req.Lat, req.Lng)
	}
	return nil
}

// ApplyLocation applies a location message from the ingest consumer.
// Updates that can never succeed are reported as ingest.ErrInvalidMessage.
func (s *DriverService) ApplyLocation(ctx context.Context, u ingest.LocationUpdate) error {
	err := s.UpdateLocation(ctx, UpdateLocationRequest{DriverID: u.DriverID, Lat: u.Lat, Lng: u.Lng, At: u.At})
	if errors.Is(err, ErrValidation) || errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %v", ingest.ErrInvalidMessage, err)
	}
	return err
}

// SetStatusRequest toggles a driver online or available. Nil fields are left as they are.
type SetStatusRequest struct {
	DriverID  string
	Online    *bool
	Available *bool
}

// SetStatus updates the online and availability flags of a driver.
// Going offline also drops the live position.
func (s *DriverService) SetStatus(ctx context.Context, req SetStatusRequest) (*domain.Person, error) {
	if req.DriverID == "" {
		return nil, invalid("driver_id", "required")
	}
	if req.Online == nil && req.Available == nil {
		return nil, invalid("status", "online or available is required")
	}

	var person *domain.Person
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		person, err = r.People.GetByID(ctx, req.DriverID)
		if err != nil {
			return err
		}
		if !person.IsDriver() {
			return fmt.Errorf("%w: %s is not a driver", ErrForbidden, req.DriverID)
		}
		if req.Online != nil {
			if err := r.People.SetDriverOnline(ctx, req.DriverID, *req.Online); err != nil {
				return err
			}
			person.Driver.Online = *req.Online
		}
		if req.Available != nil {
			if err := r.People.SetDriverAvailability(ctx, req.DriverID, *req.Available); err != nil {
				return err
			}
			person.Driver.Available = *req.Available
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if req.Online != nil && !*req.Online && s.locations != nil {
		if err := s.locations.RemoveLocation(ctx, req.DriverID); err != nil {
			s.logger.Warn("live location removal failed", "driver_id", req.DriverID, "error", err)
		}
	}
	return person, nil
}

// LiveNearby lists mirrored driver positions within radiusKm of a point,
// nearest first. A non-positive radius means the default search radius.
func (s *DriverService) LiveNearby(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, invalid("location", "coordinates out of range")
	}
	if radiusKm <= 0 {
		radiusKm = geo.DefaultRadiusKm
	}
	if radiusKm > maxLiveRadiusKm {
		return nil, invalid("radius_km", fmt.Sprintf("at most %.0f", maxLiveRadiusKm))
	}
	if s.locations == nil {
		return nil, fmt.Errorf("%w: live tracking is not configured", ErrExternalService)
	}
	locs, err := s.locations.FindNearbyDrivers(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: live positions: %v", ErrExternalService, err)
	}
	return locs, nil
}

// GetLocation returns the freshest known position of a driver: the Redis
// mirror when present, the stored profile position otherwise.
func (s *DriverService) GetLocation(ctx context.Context, driverID string) (*redis.DriverLocation, error) {
	if driverID == "" {
		return nil, invalid("driver_id", "required")
	}
	if s.locations != nil {
		loc, err := s.locations.GetLocation(ctx, driverID)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, redis.ErrNoLocation) {
			s.logger.Warn("live location read failed", "driver_id", driverID, "error", err)
		}
	}

	person, err := s.store.Repos().People.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !person.IsDriver() || !person.Driver.HasPosition() {
		return nil, repository.ErrNotFound
	}
	return &redis.DriverLocation{
		DriverID:  driverID,
		Lat:       *person.Driver.Lat,
		Lng:       *person.Driver.Lng,
		UpdatedAt: person.Driver.LocatedAt,
	}, nil
}
