// Package api is the BFF HTTP surface: leaderboard views, score edits and
// payment verification streams on top of the service layer.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/scores"
	"github.com/okian/arena/internal/domain/verify"
	"github.com/okian/arena/internal/session"
	"github.com/okian/arena/pkg/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	Events(ctx context.Context, sess *session.Session) ([]leaderboard.Event, error)
	Leaderboard(ctx context.Context, sess *session.Session, eventID leaderboard.ID, f service.Filter) (leaderboard.View, error)
	SaveScores(ctx context.Context, sess *session.Session, req service.SaveRequest) (scores.Ack, error)
	NewPoller(sess *session.Session, reference string, opts ...verify.Option) (*verify.Poller, error)
}

// Server wires HTTP routes for the BFF.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	resultsHandler     *ResultsHandler
	verifyHandler      *VerifyHandler

	allowedOrigins []string
	extra          []func(chi.Router)
	logger         logger.Logger
	now            func() time.Time
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		allowedOrigins: []string{"*"},
		logger:         logger.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.eventsHandler = NewEventsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps)
	s.resultsHandler = NewResultsHandler(deps)
	s.verifyHandler = NewVerifyHandler(deps, s.logger)
	return s
}

// Routes returns the root handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(s.now))

		r.Route("/api", func(r chi.Router) {
			r.Get("/events", s.eventsHandler.HandleListEvents)
			r.Get("/events/{eventID}/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
			r.Post("/matches/{matchID}/results", s.resultsHandler.HandleSaveResults)
		})
		r.Get("/ws/verify/{reference}", s.verifyHandler.ServeWS)
	})

	for _, register := range s.extra {
		register(r)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// readJSON decodes a single JSON document from the request body.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain a single JSON value", ErrBadRequest)
	}
	return nil
}
