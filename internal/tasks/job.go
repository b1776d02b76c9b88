// Package tasks runs deferred work. Jobs are plain data; a Pool drains a
// Queue and hands each due job to the handler registered for its kind.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names a job handler.
type Kind string

const (
	KindDispatchScheduledRide Kind = "dispatch_scheduled_ride"
	KindResetIncentives       Kind = "reset_incentives"
)

// Job is a unit of deferred work.
type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	RideID    string    `json:"ride_id,omitempty"`
	RunAt     time.Time `json:"run_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// NewJob builds a job of kind for rideID that becomes due at runAt.
func NewJob(kind Kind, rideID string, runAt time.Time) Job {
	return Job{
		ID:     uuid.NewString(),
		Kind:   kind,
		RideID: rideID,
		RunAt:  runAt.UTC(),
	}
}

// Queue stores jobs until they are due.
type Queue interface {
	// Enqueue stores job. Enqueueing a job ID twice replaces the first copy.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue removes and returns the earliest job with RunAt <= now.
	// The boolean is false when nothing is due.
	Dequeue(ctx context.Context, now time.Time) (Job, bool, error)
}
