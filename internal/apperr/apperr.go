// Package apperr defines the shared error taxonomy surfaced by the core
// components so that the HTTP boundary can map a single family of errors
// to status codes instead of every package inventing its own.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one of the error categories shared across the engine.
type Kind string

const (
	BadInput         Kind = "bad_input"
	NotAllowed       Kind = "not_allowed"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	DeadlineExpired  Kind = "deadline_expired"
	DateClosed       Kind = "date_closed"
	OutOfHorizon     Kind = "out_of_horizon"
	UserAbsent       Kind = "user_absent"
	CapacityExceeded Kind = "capacity_exceeded"
	AccountLocked    Kind = "account_locked"
	Storage          Kind = "storage"
)

// Error is a tagged error carrying a Kind and a short, localisable reason.
type Error struct {
	Kind    Kind
	Reason  string
	Cause   error
	RetryAt time.Time // only meaningful for AccountLocked
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a reason string.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Locked builds an AccountLocked error carrying the retry-after instant.
func Locked(retryAt time.Time) *Error {
	return &Error{Kind: AccountLocked, Reason: "account temporarily locked", RetryAt: retryAt}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Storage for untagged
// errors so the HTTP layer always has something to map to a status code.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}
