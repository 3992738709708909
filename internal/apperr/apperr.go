// Package apperr defines the closed set of error kinds returned by the
// services and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	// Internal is any unexpected persistence or framework failure.
	Internal Kind = iota
	// Validation covers missing, empty or malformed input.
	Validation
	// Unauthenticated means the bearer token is missing, invalid or expired.
	Unauthenticated
	// Forbidden is returned when the resource exists but the action is not allowed
	// (editing a system message).
	Forbidden
	// NotFound covers both absent resources and resources owned by someone else.
	NotFound
	// Duplicate is a unique constraint violation (email already registered).
	Duplicate
	// Upstream is an external collaborator failure (quote provider).
	Upstream
	// RateLimited is returned by the auth route limiter.
	RateLimited
)

var kindNames = map[Kind]string{
	Internal:        "internal",
	Validation:      "validation",
	Unauthenticated: "unauthenticated",
	Forbidden:       "forbidden",
	NotFound:        "not_found",
	Duplicate:       "duplicate",
	Upstream:        "upstream",
	RateLimited:     "rate_limited",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// HTTPStatus returns the status code a handler answers with for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation, Duplicate:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Upstream:
		return http.StatusBadGateway
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a message that is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Invalid returns a Validation error with msg.
func Invalid(msg string) *Error { return New(Validation, msg) }

// NotFoundf returns a NotFound error with msg.
func NotFoundf(msg string) *Error { return New(NotFound, msg) }

// KindOf reports the kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client facing message for err. Internal errors never
// leak their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "Server error"
}
