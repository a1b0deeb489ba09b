// Package apperr defines the sentinel errors of the publish workflow
// failure taxonomy. Callers classify failures with errors.Is and surface
// the wrapped reason text verbatim.
package apperr

import "errors"

var (
	// ErrNoProfile is returned when a mutating operation is invoked
	// without an acting identity. No network call is made.
	ErrNoProfile = errors.New("profile null")

	// ErrAuthFailed covers challenge fetch, signing, and verification
	// failures during credential refresh.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUploadFailed covers media storage transport failures.
	ErrUploadFailed = errors.New("upload failed")

	// ErrSubmitRejected is returned when the relay rejects a post with a
	// structured reason.
	ErrSubmitRejected = errors.New("submission rejected")

	// ErrInFlight is returned when a submit is invoked on a task whose
	// previous attempt is still pending.
	ErrInFlight = errors.New("submission already in flight")

	// ErrNotFound is returned when a requested profile or record does not
	// exist.
	ErrNotFound = errors.New("not found")
)
