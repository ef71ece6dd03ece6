// Package apperr provides the typed errors returned by services.
// The HTTP layer maps each Kind to a status code and response label.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindInternal is the default for unexpected failures.
	KindInternal Kind = iota
	// KindValidation indicates bad, missing or duplicate input.
	KindValidation
	// KindUnauthorized indicates missing or wrong credentials.
	KindUnauthorized
	// KindForbidden indicates an authenticated caller that is not permitted.
	KindForbidden
	// KindNotFound indicates a referenced entity is absent.
	KindNotFound
	// KindTooManyRequests indicates the caller hit a rate limit.
	KindTooManyRequests
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string              // Operation that failed (optional)
	Err     error               // Underlying error (optional)
	Fields  map[string][]string // Field-level validation detail (optional)
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Label is the short "status" string placed in error bodies. Credential
// failures keep the "Bad request" label existing clients match on.
func (e *Error) Label() string {
	switch e.Kind {
	case KindValidation, KindUnauthorized:
		return "Bad request"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Not found"
	case KindTooManyRequests:
		return "Too many requests"
	default:
		return "Internal server error"
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the failing operation and returns the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithFields attaches field-level errors and returns the error.
func (e *Error) WithFields(fields map[string][]string) *Error {
	e.Fields = fields
	return e
}

func Validation(message string) *Error { return New(KindValidation, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func TooManyRequests(message string) *Error { return New(KindTooManyRequests, message) }

func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// GetKind extracts the kind from anywhere in err's chain.
// Errors that are not an *Error are KindInternal.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && GetKind(err) == kind
}
