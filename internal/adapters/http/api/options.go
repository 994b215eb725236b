package api

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arena/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Empty keeps the default "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithLogger sets the logger used by long-lived handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRoutes registers extra routes, e.g. the API docs, on the root router.
func WithRoutes(register func(chi.Router)) Option {
	return func(s *Server) {
		if register != nil {
			s.extra = append(s.extra, register)
		}
	}
}

// WithClock overrides the time source used for session expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}
