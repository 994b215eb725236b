package scores

import "errors"

var (
	ErrClosed        = errors.New("scores: editor is closed")
	ErrRowOutOfRange = errors.New("scores: row index out of range")
	ErrUnknownField  = errors.New("scores: unknown field")
	// ErrSaveInFlight is returned when a save for the same match has not
	// finished yet. No request is made.
	ErrSaveInFlight  = errors.New("scores: save already in progress")
	ErrBadAssignment = errors.New("scores: malformed assignment")
)
