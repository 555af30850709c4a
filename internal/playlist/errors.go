package playlist

import (
	"errors"
	"fmt"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by repositories when a playlist does not exist.
	ErrNotFound = errors.New("playlist not found")

	// ErrInsufficientTracks is returned when fewer candidates than the minimum are available.
	ErrInsufficientTracks = errors.New("insufficient tracks")

	// ErrPersistence wraps local storage failures.
	ErrPersistence = errors.New("persistence error")
)

// Kind classifies an error for callers that need to react to it.
type Kind string

const (
	KindInvalidEmotion     Kind = "InvalidEmotion"
	KindInsufficientTracks Kind = "InsufficientTracks"
	KindNotAuthenticated   Kind = "NotAuthenticated"
	KindUpstream           Kind = "UpstreamError"
	KindPersistence        Kind = "PersistenceError"
	KindNotFound           Kind = "NotFound"
	KindInternal           Kind = "Internal"

	// Request-level kinds, never produced by KindOf.
	KindInvalidRequest Kind = "InvalidRequest"
	KindUnavailable    Kind = "Unavailable"
)

// KindOf classifies any error chain produced by this package or its collaborators.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	// checked first: a stored row that fails to decode is a storage fault, not bad input
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, emotion.ErrInvalidEmotion), errors.Is(err, emotion.ErrUnknownCategory):
		return KindInvalidEmotion
	case errors.Is(err, ErrInsufficientTracks), errors.Is(err, catalog.ErrInsufficientCandidates):
		return KindInsufficientTracks
	case errors.Is(err, catalog.ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, catalog.ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Error is a structured, user-facing error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsError converts any error into a structured Error.
// Internal and persistence failures get a generic message so storage details are not exposed.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	kind := KindOf(err)
	msg := err.Error()
	switch kind {
	case KindPersistence:
		msg = "a database error occurred"
	case KindInternal:
		msg = "an unexpected error occurred"
	}
	return &Error{Kind: kind, Message: msg}
}
