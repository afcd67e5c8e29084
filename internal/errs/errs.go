package errs

import "errors"

// Sentinel error kinds. Callers classify failures with errors.Is; the API
// layer maps each kind to an HTTP status.
var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a create collided with an existing unique key.
	ErrConflict = errors.New("already exists")

	// ErrValidation means the input was malformed or incomplete.
	ErrValidation = errors.New("invalid input")

	// ErrRateLimited means the upstream kept returning 429 until the retry
	// budget was exhausted.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrBadGateway means the upstream answered with a non-success response.
	ErrBadGateway = errors.New("upstream error response")

	// ErrUnavailable means the upstream could not be reached at all.
	ErrUnavailable = errors.New("upstream unavailable")
)
