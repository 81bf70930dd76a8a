// Package apperr defines the error taxonomy shared by the HTTP adapter and
// the worker pipeline: validation, authorization, rate-limiting, transient
// infrastructure failures, permanent processing failures, and consistency
// violations. Workers use Kind to decide whether a failure is retryable;
// the HTTP adapter uses it to pick a status code.
package apperr

import "errors"

// Kind classifies an error for retry and status-code decisions.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindRateLimited   Kind = "rate_limited"
	KindTransient     Kind = "transient"
	KindPermanent     Kind = "permanent"
	KindConsistency   Kind = "consistency"
)

// Error wraps a cause with a Kind and a human-readable message.
type Error struct {
	Kind         Kind
	Message      string
	Cause        error
	RetryAfterMS int64 // set only for KindRateLimited; 0 means unknown
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindTransient for
// unclassified errors so that unexpected infrastructure failures are
// retried rather than silently dead-lettered.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// NewRateLimited builds a KindRateLimited error carrying the substrate's
// computed retry delay so the HTTP adapter can surface a Retry-After header.
func NewRateLimited(message string, retryAfterMS int64) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfterMS: retryAfterMS}
}

// RetryAfterMS extracts the retry delay carried by a KindRateLimited error,
// or 0 if err isn't one or carries no delay.
func RetryAfterMS(err error) int64 {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfterMS
	}
	return 0
}

// Retryable reports whether a job that failed with err should be retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient:
		return true
	default:
		return false
	}
}
