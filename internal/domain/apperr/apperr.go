// Package apperr defines the error taxonomy shared by the relay service and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUpstream
	KindForbidden
	KindBadRequest
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindTooLarge:
		return "too_large"
	default:
		return "internal"
	}
}

// Error is a classified failure. Detail is the caller-facing error value; it may be a
// string or raw JSON relayed from the provider.
type Error struct {
	Kind   Kind
	Status int
	Detail any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed caller input.
func Validation(detail string, err error) *Error {
	return &Error{Kind: KindValidation, Detail: detail, Err: err}
}

// BadRequest reports a malformed webhook payload or handshake request.
func BadRequest(detail string) *Error {
	return &Error{Kind: KindBadRequest, Detail: detail}
}

// Forbidden reports a credential mismatch.
func Forbidden(detail string) *Error {
	return &Error{Kind: KindForbidden, Detail: detail}
}

// TooLarge reports a request body over the configured limit.
func TooLarge(detail string, err error) *Error {
	return &Error{Kind: KindTooLarge, Detail: detail, Err: err}
}

// Upstream reports a provider failure. A zero status means the provider gave none.
func Upstream(status int, detail any, err error) *Error {
	return &Error{Kind: KindUpstream, Status: status, Detail: detail, Err: err}
}

// Internal wraps an unexpected failure. Its detail is never shown to callers.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
