// Package dispatch runs side effects (notifications, learning signals) off the
// request path. A failed side effect is retried and logged but never reaches
// the caller whose state change triggered it.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
)

// ErrStarted is returned when Start is called twice.
var ErrStarted = errors.New("dispatch: queue already started")

// Dispatcher accepts fire-and-forget jobs.
type Dispatcher interface {
	Dispatch(name string, fn func(ctx context.Context) error)
}

// Inline runs each job immediately on the caller's goroutine and logs failures.
// Useful for tests and short-lived CLI invocations.
type Inline struct{}

// Dispatch implements Dispatcher.
func (Inline) Dispatch(name string, fn func(ctx context.Context) error) {
	if err := safeRun(context.Background(), fn); err != nil {
		logging.For("dispatch").WithField("job", name).WithError(err).Warn("side effect failed")
	}
}

// QueueConfig tunes a Queue.
type QueueConfig struct {
	Workers        int
	Buffer         int
	MaxRetries     int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Started   bool   `json:"started"`
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
	InFlight  int64  `json:"in_flight"`
	Enqueued  uint64 `json:"enqueued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Retried   uint64 `json:"retried"`
	Dropped   uint64 `json:"dropped"`
}

type job struct {
	name string
	run  func(context.Context) error
}

// Queue is a bounded worker pool with per-job retries.
type Queue struct {
	cfg  QueueConfig
	jobs chan job
	log  *logrus.Entry

	mu       sync.Mutex
	started  bool
	stopping bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// pending counts jobs accepted into the buffer and not yet finished.
	pending   atomic.Int64
	inFlight  atomic.Int64
	enqueued  atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	retried   atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueue creates a stopped queue.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &Queue{
		cfg:  cfg,
		jobs: make(chan job, cfg.Buffer),
		log:  logging.For("dispatch"),
	}
}

// Start launches the workers. Jobs dispatched before Start wait in the buffer.
func (q *Queue) Start(parent context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return ErrStarted
	}
	ctx, cancel := context.WithCancel(parent)
	q.cancel = cancel
	q.started = true
	q.stopping = false

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.log.WithField("workers", q.cfg.Workers).Debug("dispatch queue started")
	return nil
}

// Dispatch enqueues a job without blocking. When the buffer is full or the
// queue is shutting down the job is dropped and logged.
func (q *Queue) Dispatch(name string, fn func(ctx context.Context) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopping {
		q.dropped.Add(1)
		q.log.WithField("job", name).Warn("queue stopping, side effect dropped")
		return
	}

	q.pending.Add(1)
	select {
	case q.jobs <- job{name: name, run: fn}:
		q.enqueued.Add(1)
	default:
		q.pending.Add(-1)
		q.dropped.Add(1)
		q.log.WithField("job", name).Warn("queue full, side effect dropped")
	}
}

// Stats returns current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	return Stats{
		Started:   started,
		Depth:     len(q.jobs),
		Capacity:  cap(q.jobs),
		InFlight:  q.inFlight.Load(),
		Enqueued:  q.enqueued.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Retried:   q.retried.Load(),
		Dropped:   q.dropped.Load(),
	}
}

// Stop refuses new jobs, waits up to timeout for queued and running jobs to
// finish, then cancels the workers. A zero timeout waits indefinitely. Jobs
// still buffered when the timeout fires are counted as dropped.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.stopping = true
	cancel := q.cancel
	q.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	timedOut := false
drain:
	for q.pending.Load() > 0 {
		select {
		case <-deadline:
			timedOut = true
			break drain
		case <-ticker.C:
		}
	}

	cancel()
	q.wg.Wait()
	leftover := q.discardBuffered()

	q.mu.Lock()
	q.started = false
	q.stopping = false
	q.mu.Unlock()

	if timedOut {
		return fmt.Errorf("dispatch: stop timed out after %s with %d queued", timeout, leftover)
	}
	return nil
}

// discardBuffered empties the buffer once the workers are gone.
func (q *Queue) discardBuffered() int {
	n := 0
	for {
		select {
		case j := <-q.jobs:
			n++
			q.pending.Add(-1)
			q.dropped.Add(1)
			q.log.WithField("job", j.name).Warn("queue stopped, side effect dropped")
		default:
			return n
		}
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			q.inFlight.Add(1)
			q.runWithRetry(ctx, j)
			q.inFlight.Add(-1)
			q.pending.Add(-1)
		}
	}
}

func (q *Queue) runWithRetry(ctx context.Context, j job) {
	log := q.log.WithField("job", j.name)
	for attempt := 1; ; attempt++ {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if q.cfg.AttemptTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, q.cfg.AttemptTimeout)
		}
		err := safeRun(runCtx, j.run)
		cancel()
		if err == nil {
			q.completed.Add(1)
			return
		}

		log = log.WithField("attempt", attempt)
		if ctx.Err() != nil || attempt > q.cfg.MaxRetries {
			q.failed.Add(1)
			log.WithError(err).Error("side effect failed")
			return
		}
		q.retried.Add(1)
		log.WithError(err).Warn("side effect failed, retrying")

		if q.cfg.RetryDelay > 0 {
			timer := time.NewTimer(q.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				q.failed.Add(1)
				return
			case <-timer.C:
			}
		}
	}
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
