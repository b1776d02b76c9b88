package service

import (
	"context"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// PeopleService reads profiles and stores device tokens.
type PeopleService struct {
	people repository.PersonRepository
}

// NewPeopleService creates a new PeopleService.
func NewPeopleService(people repository.PersonRepository) *PeopleService {
	return &PeopleService{people: people}
}

// Get retrieves a person with the driver profile when one exists.
func (s *PeopleService) Get(ctx context.Context, id string) (*domain.Person, error) {
	if id == "" {
		return nil, invalid("id", "required")
	}
	return s.people.GetByID(ctx, id)
}

// UpdatePushToken stores the device token notifications are sent to.
func (s *PeopleService) UpdatePushToken(ctx context.Context, id, token string) error {
	if id == "" {
		return invalid("id", "required")
	}
	if token == "" {
		return invalid("push_token", "required")
	}
	return s.people.UpdatePushToken(ctx, id, token)
}
