package service

import (
	"errors"
	"fmt"

	"ridecore/internal/pricing"
	"ridecore/internal/repository"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when an event does not apply to the ride's current status.
	ErrInvalidTransition = errors.New("invalid ride transition")

	// ErrForbidden is returned when the actor may not perform the action on the ride.
	ErrForbidden = errors.New("actor not allowed for this ride")

	// ErrInsufficientBalance is returned when a non-rider wallet would go negative.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrNoDriverAvailable is returned when no driver can be matched.
	ErrNoDriverAvailable = errors.New("no driver available")

	// ErrNoFareRule is returned when no fare band covers the tier and distance.
	ErrNoFareRule = pricing.ErrNoFareRule

	// ErrConcurrencyTimeout is returned when a row lock could not be acquired in time.
	// The whole operation may be retried.
	ErrConcurrencyTimeout = errors.New("concurrency timeout, retry the operation")

	// ErrExternalService is returned when a gateway or notifier call fails.
	ErrExternalService = errors.New("external service failure")

	// ErrSignatureMismatch is returned when a payment callback signature does not verify.
	ErrSignatureMismatch = errors.New("payment signature mismatch")

	// ErrConfiguration is returned when required runtime configuration is missing.
	ErrConfiguration = errors.New("missing configuration")

	// ErrInvalidOTP is returned when the start code does not match.
	ErrInvalidOTP = errors.New("invalid otp")

	// ErrRideNotPaid is returned when refunding a ride that was never paid.
	ErrRideNotPaid = errors.New("ride not paid")

	// ErrRideBusy is returned when another request holds the ride lock.
	ErrRideBusy = errors.New("ride is being updated, retry")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// storeErr lifts repository lock failures into ErrConcurrencyTimeout.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrLockTimeout) && !errors.Is(err, ErrConcurrencyTimeout) {
		return fmt.Errorf("%w: %v", ErrConcurrencyTimeout, err)
	}
	return err
}
