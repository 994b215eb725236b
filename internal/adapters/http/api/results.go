package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/scores"
)

// ResultsHandler accepts corrected match results.
type ResultsHandler struct {
	deps Dependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps Dependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// resultsRequest is the body of POST /api/matches/{matchID}/results.
// Cells may be strings or numbers; they are parsed leniently on save.
type resultsRequest struct {
	EventID leaderboard.ID       `json:"event_id,omitempty"`
	Rows    []scores.EditableRow `json:"rows"`
}

type resultsResponse struct {
	Message string `json:"message"`
}

// HandleSaveResults handles POST /api/matches/{matchID}/results.
func (h *ResultsHandler) HandleSaveResults(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimSpace(chi.URLParam(r, "matchID"))
	if matchID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing match id")
		return
	}

	var req resultsRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "rows must not be empty")
		return
	}

	ack, err := h.deps.SaveScores(r.Context(), SessionFromContext(r.Context()), service.SaveRequest{
		EventID: req.EventID,
		MatchID: leaderboard.ID(matchID),
		Rows:    req.Rows,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse{Message: ack.Message})
}
