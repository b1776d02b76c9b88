package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler executes one job. Returning an error schedules a retry.
type Handler func(ctx context.Context, job Job) error

// Outcome is reported to an Observer after each job execution.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeRetry   Outcome = "retry"
	OutcomeDropped Outcome = "dropped"
)

// Observer receives job outcomes, typically to count them.
type Observer func(kind Kind, outcome Outcome)

// PoolConfig tunes a Pool.
type PoolConfig struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	return c
}

// Pool drains a Queue with a fixed number of workers.
type Pool struct {
	queue    Queue
	cfg      PoolConfig
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewPool creates a Pool over queue.
func NewPool(queue Queue, cfg PoolConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:    queue,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		handlers: make(map[Kind]Handler),
	}
}

// Handle registers h for kind, replacing any previous handler.
func (p *Pool) Handle(kind Kind, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

// Observe sets the outcome callback.
func (p *Pool) Observe(o Observer) {
	p.observer = o
}

// SetClock overrides the time source.
func (p *Pool) SetClock(now func() time.Time) {
	p.now = now
}

// Run starts the workers and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := p.Drain(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("job queue poll failed", "worker", worker, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain runs every job that is due now and returns how many ran.
func (p *Pool) Drain(ctx context.Context) (int, error) {
	n := 0
	for ctx.Err() == nil {
		job, ok, err := p.queue.Dequeue(ctx, p.now())
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		p.process(ctx, job)
		n++
	}
	return n, ctx.Err()
}

func (p *Pool) process(ctx context.Context, job Job) {
	p.mu.RLock()
	h, ok := p.handlers[job.Kind]
	p.mu.RUnlock()

	if !ok {
		p.logger.Error("no handler for job kind; dropping", "job_id", job.ID, "kind", job.Kind)
		p.report(job.Kind, OutcomeDropped)
		return
	}

	err := p.safeCall(ctx, h, job)
	if err == nil {
		p.report(job.Kind, OutcomeDone)
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= p.cfg.MaxAttempts {
		p.logger.Error("job failed permanently",
			"job_id", job.ID, "kind", job.Kind, "ride_id", job.RideID, "attempts", job.Attempts, "error", err)
		p.report(job.Kind, OutcomeDropped)
		return
	}

	job.RunAt = p.now().Add(p.backoff(job.Attempts))
	if qerr := p.queue.Enqueue(ctx, job); qerr != nil {
		p.logger.Error("failed to re-enqueue job", "job_id", job.ID, "kind", job.Kind, "error", qerr)
		p.report(job.Kind, OutcomeDropped)
		return
	}
	p.logger.Warn("job failed; retry scheduled",
		"job_id", job.ID, "kind", job.Kind, "attempts", job.Attempts, "run_at", job.RunAt, "error", err)
	p.report(job.Kind, OutcomeRetry)
}

func (p *Pool) safeCall(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (p *Pool) backoff(attempts int) time.Duration {
	d := p.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return d
}

func (p *Pool) report(kind Kind, outcome Outcome) {
	if p.observer != nil {
		p.observer(kind, outcome)
	}
}
