package api

import (
	"net/http"

	"github.com/okian/arena/internal/domain/leaderboard"
)

// EventsHandler lists events.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type eventsResponse struct {
	Events []leaderboard.Event `json:"events"`
}

// HandleListEvents handles GET /api/events.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.Events(r.Context(), SessionFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	if events == nil {
		events = []leaderboard.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}
