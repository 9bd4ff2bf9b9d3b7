// Package repository defines error types that are reused across the
// persistence layer and the domain services built on top of it. These
// sentinel values allow higher layers such as handlers to distinguish
// between different failure scenarios and translate them into HTTP
// responses.
package repository

import "errors"

// ErrNotFound is returned when a record does not exist. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a version-checked write observes a
// stale version token. The caller must re-read and retry or surface
// the conflict. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("version conflict")

// ErrLocked is returned when an assignment write targets an item that
// belongs to an ISSUED custody receipt. The custody must be returned
// before the item can be reassigned. Handlers should translate this
// into an HTTP 409 response.
var ErrLocked = errors.New("item locked by issued receipt")

// ErrInvalidTransition is returned when an accountability item is
// asked to move along an edge the state machine does not define.
// This indicates a caller bug or a race and is never silently
// ignored. Handlers should translate this into an HTTP 409 response.
var ErrInvalidTransition = errors.New("invalid item transition")

// ErrNotEligible is returned when a serial-number submission matches
// no item in an active session, or matches an item that is already
// pending or accounted for. It is a user input error and is surfaced
// verbatim to the submitting actor. Handlers should translate this
// into an HTTP 422 response.
var ErrNotEligible = errors.New("serial not eligible for verification")

// ErrSessionConflict is returned when a session is started for a
// scope that already has an ACTIVE session. Handlers should translate
// this into an HTTP 409 response.
var ErrSessionConflict = errors.New("an active session already exists for this scope")

// ErrSessionClosed is returned when a write races the completion or
// cancellation of its session and arrives after the session left
// ACTIVE. Handlers should translate this into an HTTP 410 response.
var ErrSessionClosed = errors.New("session has ended")

// ErrVerificationsPending is returned when a session completion is
// requested while items are still VERIFICATION_PENDING. Pending
// confirmations must be confirmed or rejected first. Handlers should
// translate this into an HTTP 409 response.
var ErrVerificationsPending = errors.New("verifications pending confirmation")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they are not authorized to drive, such as a holder
// verifying an item snapshotted to someone else. Handlers should
// translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
