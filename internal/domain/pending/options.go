package pending

// Option applies a configuration option to the in-memory guard.
type Option func(*inMemoryGuard)

// WithMaxInFlight caps how many distinct keys may be held at once.
// If n <= 0 the guard is unbounded.
func WithMaxInFlight(n int) Option {
	return func(g *inMemoryGuard) {
		g.maxInFlight = n
	}
}
