// Package throttle bounds how many tasks may run at once against one upstream
// host. Waiting tasks are admitted strictly in arrival order.
package throttle

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/tournament-scraper/internal/metrics"
)

// Config describes one throttle.
type Config struct {
	// Name labels metrics and log lines.
	Name string
	// MaxConcurrent is the number of tasks allowed to run at once.
	MaxConcurrent int
	// Timeout bounds each task once it has been admitted. Zero disables it.
	// Tasks must stop their work when the context they receive ends, otherwise
	// the slot is freed while the work is still running.
	Timeout time.Duration
	// RequestsPerSecond additionally paces task starts. Zero disables pacing.
	RequestsPerSecond float64
	// Burst is the limiter burst when RequestsPerSecond is set.
	Burst int
}

// Stats is a point-in-time view of a throttle.
type Stats struct {
	Name          string
	Active        int64
	Queued        int64
	MaxConcurrent int
}

// Throttle is a FIFO concurrency gate. The zero value is not usable; call New.
type Throttle struct {
	cfg     Config
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	active  atomic.Int64
	queued  atomic.Int64
}

// New builds a Throttle. MaxConcurrent below one is treated as one.
func New(cfg Config) *Throttle {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	t := &Throttle{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t
}

// Name returns the configured name.
func (t *Throttle) Name() string {
	return t.cfg.Name
}

// Do waits for a slot, runs task and returns its error. A task that fails or
// times out releases its slot like any other. If ctx ends while the task is
// still queued, the task never runs.
func (t *Throttle) Do(ctx context.Context, task func(ctx context.Context) error) error {
	t.queued.Add(1)
	t.publish()
	err := t.sem.Acquire(ctx, 1)
	t.queued.Add(-1)
	if err != nil {
		t.publish()
		return fmt.Errorf("throttle %s: waiting for slot: %w", t.cfg.Name, err)
	}
	t.active.Add(1)
	t.publish()
	defer func() {
		t.active.Add(-1)
		t.sem.Release(1)
		t.publish()
	}()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("throttle %s: rate limit wait: %w", t.cfg.Name, err)
		}
	}

	taskCtx := ctx
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}
	return task(taskCtx)
}

// Stats reports the current occupancy.
func (t *Throttle) Stats() Stats {
	return Stats{
		Name:          t.cfg.Name,
		Active:        t.active.Load(),
		Queued:        t.queued.Load(),
		MaxConcurrent: t.cfg.MaxConcurrent,
	}
}

func (t *Throttle) publish() {
	metrics.SetThrottle(t.cfg.Name, t.active.Load(), t.queued.Load())
}
