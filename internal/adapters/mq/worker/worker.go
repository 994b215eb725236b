// Package worker runs the goroutines that re-fetch leaderboard trees after
// backend state changed.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	defaultWorkerCount = 2
	defaultJobTimeout  = 30 * time.Second
	poolShutdownWait   = 10 * time.Second
)

// Refresher performs one refresh job.
type Refresher interface {
	Refresh(ctx context.Context, j queue.Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan queue.Job
}

// Worker processes refresh jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	refresher  Refresher
	name       string
	jobTimeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, r Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		refresher:  r,
		name:       "refresh-worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run implements Worker.Run.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	metrics.AddRefreshWorkers(1)
	defer metrics.AddRefreshWorkers(-1)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Warn(ctx, "refresh failed", logger.Error(err))
			}
		}
	}
}

// Shutdown implements Worker.Shutdown.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := w.refresher.Refresh(ctx, job)
	ms := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordRefreshJob("failed", ms)
		metrics.RecordErrorByType("refresh_error", "low")
		return fmt.Errorf("refresh event %s: %w", job.EventID, err)
	}

	metrics.RecordRefreshJob("refreshed", ms)
	w.logger.Debug(ctx, "tree refreshed",
		logger.String("event", job.EventID.String()),
		logger.Duration("queued_for", start.Sub(job.EnqueuedAt)),
	)
	return nil
}

// Pool manages a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates count workers. opts apply to every worker.
func NewPool(count int, q Queue, r Refresher, opts ...Option) *Pool {
	if count < 1 {
		count = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, count),
		queue:   q,
	}
	for i := range p.workers {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("refresh-worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, r, workerOpts...)
	}
	p.logger = p.workers[0].logger
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, signals every worker and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownWait)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
