// Package scheduler runs an agent's queue of named states, one per step.
//
// A state is a function returning true when it is finished. The head of
// the queue runs on every Step until it finishes; a finished state is
// popped and the next one runs on the following Step. A state may queue
// further states while it runs.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the period between steps when none is configured.
const DefaultInterval = 5000 * time.Millisecond

// StateFunc runs one step of a state. It returns true when the state is
// done and should be removed from the queue.
type StateFunc func(ctx context.Context) bool

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry struct {
	id       uint64
	name     string
	fn       StateFunc
	notAfter time.Time
}

// Scheduler is a FIFO of named states. It is safe for concurrent use.
type Scheduler struct {
	mu       sync.Mutex
	queue    []entry
	nextID   uint64
	interval time.Duration
	clock    Clock
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the step period reported by Interval. Non-positive
// values keep DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces the wall clock used for delayed states.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: DefaultInterval,
		clock:    systemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured step period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// QueueState appends a state to the queue.
func (s *Scheduler) QueueState(name string, fn StateFunc) {
	s.QueueStateDelay(name, fn, 0)
}

// QueueStateDelay appends a state that will not run before delay has
// elapsed. Steps that reach it early leave it in place and do nothing.
func (s *Scheduler) QueueStateDelay(name string, fn StateFunc, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := entry{id: s.nextID, name: name, fn: fn}
	if delay > 0 {
		e.notAfter = s.clock.Now().Add(delay)
	}
	s.queue = append(s.queue, e)
	s.logger.Debug("state queued", "state", name, "depth", len(s.queue))
}

// Clear drops every queued state.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		s.logger.Debug("queue cleared", "dropped", len(s.queue))
	}
	s.queue = nil
}

// Idle reports whether the queue is empty.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0
}

// Current returns the name of the state at the head of the queue.
func (s *Scheduler) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	return s.queue[0].name, true
}

// Pending returns the names of every queued state, head first.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.queue))
	for i, e := range s.queue {
		names[i] = e.name
	}
	return names
}

// Step runs the head state once. It returns the name of the state that ran
// and false when nothing ran. The state function is called without the
// scheduler lock held, so it may queue or clear states. A finished state is
// popped only if it is still at the head; a state that cleared the queue
// is not popped twice.
func (s *Scheduler) Step(ctx context.Context) (string, bool) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return "", false
	}
	head := s.queue[0]
	if !head.notAfter.IsZero() && s.clock.Now().Before(head.notAfter) {
		s.mu.Unlock()
		return "", false
	}
	s.mu.Unlock()

	done := head.fn(ctx)
	if !done {
		return head.name, true
	}

	s.mu.Lock()
	if len(s.queue) > 0 && s.queue[0].id == head.id {
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()
	s.logger.Debug("state finished", "state", head.name)
	return head.name, true
}
