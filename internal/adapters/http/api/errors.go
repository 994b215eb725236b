package api

import (
	"errors"
	"net/http"

	"github.com/okian/arena/internal/adapters/backend"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/scores"
	"github.com/okian/arena/internal/domain/verify"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest      = "bad_request"
	codeUnauthorized    = "unauthorized"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeUnavailable     = "unavailable"
	codeBackendRejected = "backend_rejected"
	codeBackendError    = "backend_error"
	codeInternal        = "internal"
)

// errorStatus maps a service error to its HTTP status, code and the
// message shown to users.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized, backend.Message(err)
	case errors.Is(err, verify.ErrMissingCredentials):
		return http.StatusUnauthorized, codeUnauthorized, "Sign in to verify a payment."
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrBadRequest),
		errors.Is(err, scores.ErrBadAssignment),
		errors.Is(err, scores.ErrUnknownField),
		errors.Is(err, scores.ErrRowOutOfRange),
		errors.Is(err, leaderboard.ErrUnknownStage),
		errors.Is(err, leaderboard.ErrUnknownGroup):
		return http.StatusBadRequest, codeBadRequest, err.Error()
	case errors.Is(err, service.ErrMatchNotFound):
		return http.StatusNotFound, codeNotFound, err.Error()
	case errors.Is(err, scores.ErrSaveInFlight),
		errors.Is(err, verify.ErrRetryInFlight):
		return http.StatusConflict, codeConflict, err.Error()
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, codeUnavailable, err.Error()
	case backend.IsClientError(err):
		return http.StatusBadGateway, codeBackendRejected, backend.Message(err)
	case backend.StatusOf(err) != 0, errors.Is(err, backend.ErrTransport), errors.Is(err, backend.ErrDecode):
		return http.StatusBadGateway, codeBackendError, backend.Message(err)
	default:
		return http.StatusInternalServerError, codeInternal, backend.DefaultMessage
	}
}

func respondError(w http.ResponseWriter, err error) {
	status, code, msg := errorStatus(err)
	writeError(w, status, code, msg)
}
