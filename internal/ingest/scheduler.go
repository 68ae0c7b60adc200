package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Task is one unit of scheduled work, typically a batch of records.
type Task func(ctx context.Context) error

// Yielder is called between tasks. It may pause, and it is the only place
// where cancellation is observed.
type Yielder interface {
	Yield(ctx context.Context) error
}

// YieldFunc adapts a function to Yielder.
type YieldFunc func(ctx context.Context) error

func (f YieldFunc) Yield(ctx context.Context) error { return f(ctx) }

// DelayYielder spaces tasks at least delay apart using a token bucket.
type DelayYielder struct {
	lim *rate.Limiter
}

// NewDelayYielder returns a yielder that paces tasks delay apart. A
// non-positive delay never waits.
func NewDelayYielder(delay time.Duration) *DelayYielder {
	if delay <= 0 {
		return &DelayYielder{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	lim := rate.NewLimiter(rate.Every(delay), 1)
	lim.Allow() // drain the initial token so the first yield waits too
	return &DelayYielder{lim: lim}
}

func (y *DelayYielder) Yield(ctx context.Context) error {
	return y.lim.Wait(ctx)
}

// Scheduler runs queued tasks in FIFO order, yielding between them. Tasks
// are never interrupted: a cancelled context stops the run at the next
// yield point.
type Scheduler struct {
	queue   []Task
	yielder Yielder
}

// NewScheduler returns an empty scheduler. A nil yielder never pauses.
func NewScheduler(y Yielder) *Scheduler {
	if y == nil {
		y = NewDelayYielder(0)
	}
	return &Scheduler{yielder: y}
}

// Enqueue appends t to the queue.
func (s *Scheduler) Enqueue(t Task) { s.queue = append(s.queue, t) }

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int { return len(s.queue) }

// Run drains the queue and returns how many tasks completed. It stops at the
// first task error, or when the context is done at a yield point; pending
// tasks stay queued.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	done := 0
	for len(s.queue) > 0 {
		if done > 0 {
			if err := ctx.Err(); err != nil {
				return done, err
			}
			if err := s.yielder.Yield(ctx); err != nil {
				return done, err
			}
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		if err := t(ctx); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
