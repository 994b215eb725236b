// Package queue buffers leaderboard refresh jobs between the request that
// changed backend state and the workers that re-fetch it.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/session"
	"github.com/okian/arena/pkg/metrics"
)

const defaultCapacity = 256

// Job asks for the tree of one event to be fetched again with the
// credentials of the session that triggered it.
type Job struct {
	EventID    leaderboard.ID
	Session    *session.Session
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns the channel jobs are delivered on. It is closed when
	// the queue is closed and drained.
	Dequeue() <-chan Job

	// Len returns the number of waiting jobs.
	Len() int

	// Close stops accepting jobs.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateRefreshQueueSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordRefreshEnqueue("closed")
		return false
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}

	select {
	case q.jobs <- j:
		metrics.RecordRefreshEnqueue("queued")
		metrics.UpdateRefreshQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordRefreshEnqueue("cancelled")
		return false
	default:
		metrics.RecordRefreshEnqueue("full")
		return false
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len() int {
	n := len(q.jobs)
	metrics.UpdateRefreshQueueSize(n)
	return n
}

// Close implements Queue.Close. Pending jobs are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
