// Package errors provides the typed error taxonomy shared by the RecoRead client.
//
// Usage:
//
//	// In the HTTP adapter - map responses to typed errors
//	if resp.StatusCode == http.StatusConflict && isDelete {
//	    return errors.BlockingDependency(backendMessage)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrBlockingDependency) {
//	    fmt.Println(errors.Message(err))
//	    return
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeRateLimited:
//	        showCooldown()
//	    case errors.CodeUnauthorized:
//	        redirectToLogin()
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the client.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeBlockingDependency Code = "BLOCKING_DEPENDENCY"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Default user-facing messages.
const (
	MsgGeneric            = "Unexpected error"
	MsgRateLimit          = "Rate limit exceeded. Please wait 10s and try again."
	MsgSearchRateLimit    = "We're hitting the search rate limit. Please wait a moment and try again."
	MsgSummaryCooldown    = "Please wait ~10 seconds before generating another summary."
	MsgBlockingDependency = "Cannot delete book because it has related data (e.g., reading history). Remove related records first."
	MsgSessionExpired     = "Your session expired. Please sign in again."
	MsgSummaryTooLong     = "Your text is too long. Try a shorter passage or split it into parts."
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeBlockingDependency:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus maps a backend HTTP status to an error code.
// DELETE conflicts are refined to CodeBlockingDependency by the caller.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// Error is a domain error with a code, message, and optional details.
//
// Message is the best user-facing text known when the error was built;
// BackendMessage and BackendError hold the structured fields of the
// response body when the backend sent one.
type Error struct {
	Code           Code   `json:"code"`
	Message        string `json:"message"`
	Details        any    `json:"details,omitempty"`
	Status         int    `json:"-"`
	BackendMessage string `json:"-"`
	BackendError   string `json:"-"`

	// RetryAfter is how long to wait before retrying a rate-limited call, when known.
	RetryAfter time.Duration `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.cause == nil:
		return e.Message
	case e.Message == "":
		return e.cause.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrBlockingDependency = &Error{Code: CodeBlockingDependency, Message: MsgBlockingDependency}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: MsgRateLimit}
	ErrUnavailable        = &Error{Code: CodeUnavailable, Message: "service unavailable"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// BlockingDependency creates a deletion-refused error.
// An empty msg falls back to MsgBlockingDependency.
func BlockingDependency(msg string) *Error {
	if msg == "" {
		msg = MsgBlockingDependency
	}
	return &Error{Code: CodeBlockingDependency, Message: msg}
}

// RateLimited creates a rate limit error.
func RateLimited(msg string) *Error {
	if msg == "" {
		msg = MsgRateLimit
	}
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Message derives the displayable text for err.
//
// Precedence: the backend's structured "message" field, then its "error"
// field, then the transport or underlying error text, then MsgGeneric.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		if domainErr.BackendMessage != "" {
			return domainErr.BackendMessage
		}
		if domainErr.BackendError != "" {
			return domainErr.BackendError
		}
		if domainErr.Message != "" {
			return domainErr.Message
		}
		if domainErr.cause != nil && domainErr.cause.Error() != "" {
			return domainErr.cause.Error()
		}
		return MsgGeneric
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgGeneric
}

// CodeOf returns the code of the first domain error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
