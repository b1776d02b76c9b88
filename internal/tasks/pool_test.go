package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryQueue_DueOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()

	_ = q.Enqueue(ctx, Job{ID: "late", RunAt: base.Add(time.Hour)})
	_ = q.Enqueue(ctx, Job{ID: "early", RunAt: base.Add(-time.Minute)})
	_ = q.Enqueue(ctx, Job{ID: "now", RunAt: base})

	job, ok, _ := q.Dequeue(ctx, base)
	if !ok || job.ID != "early" {
		t.Fatalf("expected early job first, got %+v ok=%v", job, ok)
	}
	job, ok, _ = q.Dequeue(ctx, base)
	if !ok || job.ID != "now" {
		t.Fatalf("expected job due now, got %+v ok=%v", job, ok)
	}
	if _, ok, _ = q.Dequeue(ctx, base); ok {
		t.Fatal("future job must not be dequeued")
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 stored job, got %d", q.Len())
	}
}

func TestMemoryQueue_EnqueueReplacesSameID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Enqueue(ctx, Job{ID: "a", Attempts: 0})
	_ = q.Enqueue(ctx, Job{ID: "a", Attempts: 2})

	jobs := q.Snapshot()
	if len(jobs) != 1 || jobs[0].Attempts != 2 {
		t.Errorf("expected single replaced job, got %+v", jobs)
	}
}

func TestPool_DrainRunsHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewMemoryQueue()
	pool := NewPool(q, PoolConfig{MaxAttempts: 3}, quietLogger())
	pool.SetClock(c.now)

	var seen atomic.Int32
	pool.Handle(KindDispatchScheduledRide, func(_ context.Context, job Job) error {
		if job.RideID != "ride-1" {
			t.Errorf("unexpected ride id %q", job.RideID)
		}
		seen.Add(1)
		return nil
	})

	_ = q.Enqueue(ctx, NewJob(KindDispatchScheduledRide, "ride-1", c.t))
	_ = q.Enqueue(ctx, NewJob(KindDispatchScheduledRide, "ride-1", c.t.Add(time.Hour)))

	n, err := pool.Drain(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || seen.Load() != 1 {
		t.Errorf("expected exactly one due job to run, ran %d (handler %d)", n, seen.Load())
	}
}

func TestPool_RetriesWithBackoffThenDrops(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewMemoryQueue()
	pool := NewPool(q, PoolConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Minute}, quietLogger())
	pool.SetClock(c.now)

	var outcomes []Outcome
	pool.Observe(func(_ Kind, o Outcome) { outcomes = append(outcomes, o) })

	var calls atomic.Int32
	pool.Handle(KindResetIncentives, func(context.Context, Job) error {
		calls.Add(1)
		return errors.New("database unavailable")
	})

	_ = q.Enqueue(ctx, NewJob(KindResetIncentives, "", c.t))

	_, _ = pool.Drain(ctx)
	jobs := q.Snapshot()
	if len(jobs) != 1 || jobs[0].Attempts != 1 || !jobs[0].RunAt.Equal(c.t.Add(time.Second)) {
		t.Fatalf("expected retry in 1s, got %+v", jobs)
	}

	c.t = c.t.Add(time.Second)
	_, _ = pool.Drain(ctx)
	jobs = q.Snapshot()
	if len(jobs) != 1 || !jobs[0].RunAt.Equal(c.t.Add(2*time.Second)) {
		t.Fatalf("expected doubled backoff, got %+v", jobs)
	}

	c.t = c.t.Add(2 * time.Second)
	_, _ = pool.Drain(ctx)
	if q.Len() != 0 {
		t.Errorf("job should be dropped after max attempts, queue has %d", q.Len())
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 handler calls, got %d", calls.Load())
	}
	want := []Outcome{OutcomeRetry, OutcomeRetry, OutcomeDropped}
	if len(outcomes) != len(want) {
		t.Fatalf("expected outcomes %v, got %v", want, outcomes)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, want[i], outcomes[i])
		}
	}
}

func TestPool_UnknownKindIsDropped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue()
	pool := NewPool(q, PoolConfig{}, quietLogger())
	_ = q.Enqueue(ctx, Job{ID: "x", Kind: "mystery"})

	n, _ := pool.Drain(ctx)
	if n != 1 || q.Len() != 0 {
		t.Errorf("unknown job should be consumed and dropped: n=%d len=%d", n, q.Len())
	}
}

func TestPool_HandlerPanicBecomesRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue()
	pool := NewPool(q, PoolConfig{MaxAttempts: 2}, quietLogger())
	pool.Handle(KindDispatchScheduledRide, func(context.Context, Job) error { panic("boom") })
	_ = q.Enqueue(ctx, NewJob(KindDispatchScheduledRide, "r", time.Now().Add(-time.Second)))

	_, _ = pool.Drain(ctx)
	jobs := q.Snapshot()
	if len(jobs) != 1 || jobs[0].LastError == "" {
		t.Errorf("panic should be recorded as a failed attempt, got %+v", jobs)
	}
}
