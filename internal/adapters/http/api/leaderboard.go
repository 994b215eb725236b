package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arena/internal/adapters/backend"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/leaderboard"
)

// LeaderboardHandler serves assembled leaderboard views.
type LeaderboardHandler struct {
	deps Dependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /api/events/{eventID}/leaderboard.
//
// Query: stage, group (ids) and match ("overall" or a match id). A tree
// that cannot be fetched yields a 200 not_found view carrying a user
// message, unless the session is rejected or the query is invalid.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(chi.URLParam(r, "eventID"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing event id")
		return
	}

	q := r.URL.Query()
	filter := service.Filter{
		Stage: leaderboard.ID(strings.TrimSpace(q.Get("stage"))),
		Group: leaderboard.ID(strings.TrimSpace(q.Get("group"))),
		Match: strings.TrimSpace(q.Get("match")),
	}

	view, err := h.deps.Leaderboard(r.Context(), SessionFromContext(r.Context()), leaderboard.ID(eventID), filter)
	if err != nil {
		status, _, _ := errorStatus(err)
		if view.Status != leaderboard.StatusNotFound || status == http.StatusUnauthorized ||
			status == http.StatusBadRequest || errors.Is(err, service.ErrNotStarted) {
			respondError(w, err)
			return
		}
		view.Error = backend.Message(err)
	}
	writeJSON(w, http.StatusOK, view)
}
