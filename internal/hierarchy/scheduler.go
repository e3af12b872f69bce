package hierarchy

import (
	"context"
	"sync"

	"github.com/go-hierarchy/provider/internal/logger"
)

// QueryExecutor is the relational query executor collaborator contract of
// spec.md ยง6.1. Implementations run a query and return up to limit+1 rows
// (limit == 0 means unbounded) so the scheduler can detect a row-limit
// overrun without needing a true streaming iterator.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, q Query, limit int) ([]Row, error)
}

// DefaultQueryConcurrency is the scheduler's default bounded concurrency
// (spec.md ยง4.1).
const DefaultQueryConcurrency = 10

// SharedResult is a multicast, replayable handle on one query's result: the
// query executes at most once no matter how many subscribers attach to it
// (spec.md ยง4.1).
type SharedResult struct {
	query Query
	limit int

	mu              sync.Mutex
	subscriberCount int
	started         bool
	cancelled       bool
	rows            []Row
	err             error
	done            chan struct{}
}

// Subscribe registers interest in this result and returns an unsubscribe
// function. The first subscriber is registered by Scheduler.Schedule
// itself; additional callers may Subscribe to share the same in-flight or
// completed execution.
func (r *SharedResult) Subscribe() func() {
	r.mu.Lock()
	r.subscriberCount++
	r.mu.Unlock()
	unsubscribed := false
	return func() {
		if unsubscribed {
			return
		}
		unsubscribed = true
		r.mu.Lock()
		r.subscriberCount--
		r.mu.Unlock()
	}
}

// Wait blocks until the query has completed (or ctx is done) and returns
// its rows or error. Safe to call from multiple subscribers concurrently.
func (r *SharedResult) Wait(ctx context.Context) ([]Row, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return nil, context.Canceled
	}
	return r.rows, r.err
}

// Scheduler runs query definitions with bounded concurrency, sharing
// results across subscribers and preserving FIFO dispatch order
// (spec.md ยง4.1, ยง5).
type Scheduler struct {
	executor    QueryExecutor
	concurrency int
	logger      *logger.Logger

	mu          sync.Mutex
	queue       []*SharedResult
	activeCount int
}

// NewScheduler creates a Scheduler bounded to `concurrency` simultaneous
// query executions (0 or negative selects DefaultQueryConcurrency).
func NewScheduler(executor QueryExecutor, concurrency int, log *logger.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultQueryConcurrency
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Scheduler{executor: executor, concurrency: concurrency, logger: log}
}

// Schedule enqueues a query for execution and returns its SharedResult
// along with an unsubscribe function for the caller's own interest in it.
// If the caller unsubscribes before a concurrency slot is granted, the
// executor is never invoked (spec.md ยง4.1 "Cancellation").
func (s *Scheduler) Schedule(q Query, limit int) (*SharedResult, func()) {
	r := &SharedResult{query: q, limit: limit, done: make(chan struct{})}
	unsubscribe := r.Subscribe()

	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.dispatchLocked()
	s.mu.Unlock()

	return r, unsubscribe
}

// dispatchLocked must be called with s.mu held. It pops ready work off the
// FIFO queue while concurrency slots remain, skipping (cancelling) entries
// whose last subscriber has already gone away.
func (s *Scheduler) dispatchLocked() {
	for s.activeCount < s.concurrency && len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]

		next.mu.Lock()
		if next.subscriberCount == 0 {
			next.cancelled = true
			next.mu.Unlock()
			close(next.done)
			s.logger.Debug("cancelled query before dispatch: no remaining subscribers")
			continue
		}
		next.started = true
		next.mu.Unlock()

		s.activeCount++
		go s.run(next)
	}
}

func (s *Scheduler) run(r *SharedResult) {
	defer func() {
		s.mu.Lock()
		s.activeCount--
		s.dispatchLocked()
		s.mu.Unlock()
	}()

	rows, err := s.executor.ExecuteQuery(context.Background(), r.query, r.limit)

	r.mu.Lock()
	r.rows = rows
	r.err = err
	r.mu.Unlock()
	close(r.done)
}

// Pending returns the number of queries currently waiting for a
// concurrency slot. Exposed for tests that assert on scheduling order.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Active returns the number of queries currently executing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount
}
