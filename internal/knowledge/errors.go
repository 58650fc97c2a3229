package knowledge

import "errors"

// Sentinel errors shared across the retrieval and resolution services.
// Check with errors.Is().
//
// Store failures (connection loss, constraint violations) are returned as
// wrapped pgx errors instead: they are fatal for the current request only
// and carry no cross-request meaning.
var (
	// ErrNotFound indicates the referenced entry or pending question does
	// not exist, or a pending question was already consumed by a terminal
	// transition.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates empty or otherwise unusable caller input.
	// No state was changed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indicates the embedding or generation provider
	// failed. The condition is retryable by the caller; no partial writes
	// occur before it is raised.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrAlreadyResolved indicates an attempt to transition a pending
	// question that already reached a terminal status.
	ErrAlreadyResolved = errors.New("pending question already resolved")
)
