package scores

import (
	"context"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/pending"
	"github.com/okian/arena/pkg/logger"
)

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithGuard shares a pending guard so two editors cannot save the same
// match at once.
func WithGuard(g pending.Guard) Option {
	return func(e *Editor) {
		if g != nil {
			e.guard = g
		}
	}
}

// WithOnSaved is called after a successful save so the caller can re-fetch.
func WithOnSaved(fn func(ctx context.Context, matchID leaderboard.ID)) Option {
	return func(e *Editor) {
		e.onSaved = fn
	}
}
