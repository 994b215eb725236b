// Package repository caches fetched leaderboard trees between requests.
package repository

import (
	"context"

	"github.com/okian/arena/internal/domain/leaderboard"
)

// Key names one cached tree: an event as seen by one viewer. Viewer is a
// session fingerprint, so a tree fetched with one token is never served to
// another.
type Key struct {
	EventID leaderboard.ID
	Viewer  string
}

// Store keeps leaderboard trees keyed by event and viewer.
type Store interface {
	// Get returns the cached tree for key, or ErrNotFound when it is
	// absent or expired.
	Get(ctx context.Context, key Key) (*leaderboard.Tree, error)
	// Put caches tree for key, replacing any previous entry.
	Put(ctx context.Context, key Key, tree *leaderboard.Tree) error
	// Invalidate drops one event for every viewer.
	Invalidate(ctx context.Context, eventID leaderboard.ID)
	// InvalidateAll drops every event.
	InvalidateAll(ctx context.Context)
	// Count returns the number of live entries.
	Count(ctx context.Context) int
}
