package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Pairing session outcomes; expired and wrong-code are kept apart for UX.
	CodeSessionExpired Code = "SESSION_EXPIRED"
	CodeSessionInvalid Code = "SESSION_INVALID"
)

// Metadata is how a code surfaces over HTTP. Dependency and internal
// failures never expose their message; only codes with DetailsAllowed carry
// details to the client.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func entry(status int, retryable bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:     entry(http.StatusBadRequest, false, "validation failed", true),
	CodeUnauthorized:   entry(http.StatusUnauthorized, false, "authentication required", false),
	CodeForbidden:      entry(http.StatusForbidden, false, "not allowed", false),
	CodeNotFound:       entry(http.StatusNotFound, false, "resource not found", false),
	CodeConflict:       entry(http.StatusConflict, false, "conflict detected", false),
	CodeStateConflict:  entry(http.StatusUnprocessableEntity, false, "state transition disallowed", true),
	CodeSessionExpired: entry(http.StatusGone, false, "session expired", false),
	CodeSessionInvalid: entry(http.StatusBadRequest, false, "session verification failed", false),
	CodeRateLimit:      entry(http.StatusTooManyRequests, true, "rate limit exceeded", false),
	CodeInternal:       entry(http.StatusInternalServerError, true, "internal server error", false),
	CodeDependency:     entry(http.StatusServiceUnavailable, true, "dependency unavailable", true),
}

// MetadataFor falls back to the internal error entry for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
