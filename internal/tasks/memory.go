package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue. Jobs are lost on restart.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue stores job, replacing any job with the same ID.
func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.jobs {
		if q.jobs[i].ID == job.ID {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			break
		}
	}
	q.jobs = append(q.jobs, job)
	sort.SliceStable(q.jobs, func(i, j int) bool {
		return q.jobs[i].RunAt.Before(q.jobs[j].RunAt)
	})
	return nil
}

// Dequeue pops the earliest due job.
func (q *MemoryQueue) Dequeue(_ context.Context, now time.Time) (Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 || q.jobs[0].RunAt.After(now) {
		return Job{}, false, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true, nil
}

// Len returns the number of stored jobs, due or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot returns a copy of the stored jobs in due order.
func (q *MemoryQueue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}
