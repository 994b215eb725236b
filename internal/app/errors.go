package service

import "errors"

var (
	ErrNotStarted    = errors.New("service: not started")
	ErrNoBackend     = errors.New("service: no backend client configured")
	ErrBadRequest    = errors.New("service: bad request")
	ErrMatchNotFound = errors.New("service: match not found")
)
