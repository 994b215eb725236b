// Package verify confirms a pending payment by polling the backend until
// the gateway's asynchronous confirmation shows up.
package verify

import (
	"context"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/pending"
	"github.com/okian/arena/internal/session"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// DefaultInterval is the background polling period.
const DefaultInterval = 30 * time.Second

// State of a verification.
type State string

// Verification states. Success is terminal.
const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Attempt triggers, used for metrics and logs.
const (
	triggerInitial  = "initial"
	triggerInterval = "interval"
	triggerManual   = "manual"
)

// Order is what the backend returns once a payment is confirmed.
type Order struct {
	ID      string         `json:"order_id"`
	Details map[string]any `json:"details,omitempty"`
}

// Verifier asks the backend whether reference has been paid. Any error
// means "not confirmed yet".
type Verifier interface {
	VerifyPayment(ctx context.Context, reference string) (Order, error)
}

// Snapshot is a copy of the poller state.
type Snapshot struct {
	Reference string `json:"reference"`
	State     State  `json:"state"`
	Order     *Order `json:"order,omitempty"`
	Retrying  bool   `json:"retrying"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// Poller drives one verification. It never gives up on its own; it stops
// on success or when the context passed to Run ends.
type Poller struct {
	verifier  Verifier
	sess      *session.Session
	reference string

	interval   time.Duration
	logger     logger.Logger
	guard      pending.Guard
	onChange   func(Snapshot)
	errMessage func(error) string

	mu       sync.Mutex
	state    State
	order    *Order
	retrying bool
	attempts int
	lastErr  error
	running  bool
	runCtx   context.Context
	done     chan struct{}
}

// New creates a poller in the loading state.
func New(verifier Verifier, sess *session.Session, reference string, opts ...Option) *Poller {
	p := &Poller{
		verifier:   verifier,
		sess:       sess,
		reference:  reference,
		interval:   DefaultInterval,
		logger:     logger.Nop(),
		errMessage: func(err error) string { return err.Error() },
		state:      StateLoading,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.guard == nil {
		p.guard = pending.New()
	}
	p.logger = p.logger.With(logger.String("reference", reference))
	return p
}

// Run verifies immediately and then every interval until success or until
// ctx is done. Requests share ctx, so cancelling it aborts any in-flight
// call and its result is never applied. Run returns nil on success and
// ctx.Err() on teardown.
func (p *Poller) Run(ctx context.Context) error {
	if p.reference == "" || p.sess.Token() == "" {
		return ErrMissingCredentials
	}

	p.mu.Lock()
	if p.state == StateSuccess {
		p.mu.Unlock()
		return nil
	}
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.runCtx = ctx
	p.mu.Unlock()

	metrics.AddVerificationSessions(1)
	defer func() {
		metrics.AddVerificationSessions(-1)
		p.mu.Lock()
		p.running = false
		p.runCtx = nil
		p.mu.Unlock()
	}()

	_ = p.attempt(ctx, triggerInitial)
	if p.succeeded() {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug(context.Background(), "verification stopped", logger.Error(ctx.Err()))
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.C:
			// A manual retry may have succeeded since the last tick.
			if p.succeeded() {
				return nil
			}
			_ = p.attempt(ctx, triggerInterval)
			if p.succeeded() {
				return nil
			}
		}
	}
}

// Retry issues one immediate verification while in the error state and
// returns its outcome. Only one manual retry per reference may be in flight.
func (p *Poller) Retry(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateError || p.runCtx == nil {
		p.mu.Unlock()
		return ErrRetryUnavailable
	}
	runCtx := p.runCtx
	p.mu.Unlock()

	key := "verify:" + p.reference
	if !p.guard.TryAcquire(ctx, key) {
		return ErrRetryInFlight
	}
	defer p.guard.Release(ctx, key)

	p.setRetrying(true)
	defer p.setRetrying(false)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	return p.attempt(reqCtx, triggerManual)
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Done is closed once the payment is confirmed.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) snapshotLocked() Snapshot {
	s := Snapshot{
		Reference: p.reference,
		State:     p.state,
		Retrying:  p.retrying,
		Attempts:  p.attempts,
	}
	if p.order != nil {
		o := *p.order
		s.Order = &o
	}
	if p.lastErr != nil {
		s.LastError = p.errMessage(p.lastErr)
	}
	return s
}

func (p *Poller) succeeded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateSuccess
}

func (p *Poller) setRetrying(v bool) {
	p.mu.Lock()
	p.retrying = v
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
}

// attempt performs one request and applies its result unless ctx ended
// meanwhile or the payment was already confirmed.
func (p *Poller) attempt(ctx context.Context, trigger string) error {
	order, err := p.verifier.VerifyPayment(ctx, p.reference)

	p.mu.Lock()
	p.attempts++
	if ctx.Err() != nil {
		p.mu.Unlock()
		return ctx.Err()
	}
	if p.state == StateSuccess {
		p.mu.Unlock()
		return nil
	}

	if err != nil {
		transition := p.state != StateError
		p.state = StateError
		p.lastErr = err
		snap := p.snapshotLocked()
		p.mu.Unlock()

		metrics.RecordVerificationAttempt(trigger, "error")
		if transition {
			metrics.RecordVerificationTransition(string(StateError))
		}
		p.logger.Warn(ctx, "payment not verified yet",
			logger.String("trigger", trigger),
			logger.Int("attempts", snap.Attempts),
			logger.Error(err),
		)
		p.notify(snap)
		return err
	}

	p.state = StateSuccess
	p.order = &order
	p.lastErr = nil
	close(p.done)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	metrics.RecordVerificationAttempt(trigger, "success")
	metrics.RecordVerificationTransition(string(StateSuccess))
	p.logger.Info(ctx, "payment verified",
		logger.String("trigger", trigger),
		logger.String("order", order.ID),
	)
	p.notify(snap)
	return nil
}

func (p *Poller) notify(s Snapshot) {
	if p.onChange != nil {
		p.onChange(s)
	}
}
