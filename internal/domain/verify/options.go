package verify

import (
	"time"

	"github.com/okian/arena/internal/domain/pending"
	"github.com/okian/arena/pkg/logger"
)

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the background polling period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithGuard shares a pending guard between pollers so that manual retries
// for one reference never overlap.
func WithGuard(g pending.Guard) Option {
	return func(p *Poller) {
		if g != nil {
			p.guard = g
		}
	}
}

// WithOnChange registers a callback invoked after every state change. It
// runs on the goroutine that made the change and must not block.
func WithOnChange(fn func(Snapshot)) Option {
	return func(p *Poller) {
		p.onChange = fn
	}
}

// WithErrorMessage sets how errors are rendered in snapshots.
func WithErrorMessage(fn func(error) string) Option {
	return func(p *Poller) {
		if fn != nil {
			p.errMessage = fn
		}
	}
}
