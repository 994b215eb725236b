package verify

import "errors"

var (
	// ErrMissingCredentials is returned by Run when the session token or
	// the payment reference is empty. No request is made.
	ErrMissingCredentials = errors.New("verify: missing session token or payment reference")
	// ErrAlreadyRunning is returned when Run is called twice concurrently.
	ErrAlreadyRunning = errors.New("verify: poller already running")
	// ErrRetryUnavailable is returned when Retry is called outside the
	// error state or after the poller stopped.
	ErrRetryUnavailable = errors.New("verify: retry is only available after a failed attempt")
	// ErrRetryInFlight is returned while another manual retry for the same
	// reference is pending.
	ErrRetryInFlight = errors.New("verify: retry already in progress")
)
