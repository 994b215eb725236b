package leaderboard

import "errors"

// Sentinel errors.
var (
	ErrNoTree        = errors.New("leaderboard: no tree loaded")
	ErrUnknownStage  = errors.New("leaderboard: unknown stage")
	ErrUnknownGroup  = errors.New("leaderboard: unknown group")
	ErrSuperseded    = errors.New("leaderboard: selection superseded by a newer event")
	ErrNoEventLister = errors.New("leaderboard: no event lister configured")
)
