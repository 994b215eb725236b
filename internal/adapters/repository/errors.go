package repository

import "errors"

// Sentinel errors for the tree cache.
var (
	ErrNotFound = errors.New("leaderboard tree not cached")
	ErrNilTree  = errors.New("nil leaderboard tree")
)
