// Package apperr defines the admission and dispatch failure kinds surfaced to
// HTTP callers. Every failure carries a stable machine-readable code; the
// underlying cause is kept for logs and never rendered into a response.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for HTTP status mapping
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindValidationFailed
	KindNotFound
	KindQueueDisabled
	KindQueueUnavailable
	KindJobSubmissionFailed
)

// Stable error codes
const (
	CodeAPIKeyMissing    = "API_KEY_MISSING"
	CodeAPIKeyInvalid    = "API_KEY_INVALID"
	CodeSignatureMissing = "SIGNATURE_MISSING"
	CodeSignatureInvalid = "SIGNATURE_INVALID"
	CodeSignatureExpired = "SIGNATURE_EXPIRED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeQueueDisabled    = "QUEUE_DISABLED"
	CodeQueueUnavailable = "QUEUE_UNAVAILABLE"
	CodeJobNotFound      = "JOB_NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindNotFound:
		return "NotFound"
	case KindQueueDisabled:
		return "QueueDisabled"
	case KindQueueUnavailable:
		return "QueueUnavailable"
	case KindJobSubmissionFailed:
		return "JobSubmissionFailed"
	default:
		return "Internal"
	}
}

// HTTPStatus returns the response status for the kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindQueueDisabled, KindQueueUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Violation is a single rejected request field
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error is a classified failure. Message is safe to return to callers.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Violations []Violation
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func ValidationFailed(violations []Violation) *Error {
	return &Error{
		Kind:       KindValidationFailed,
		Code:       CodeValidationFailed,
		Message:    "Request validation failed",
		Violations: violations,
	}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func QueueDisabled(queue string, err error) *Error {
	return &Error{
		Kind:    KindQueueDisabled,
		Code:    CodeQueueDisabled,
		Message: fmt.Sprintf("Queue system is disabled; %q jobs are not accepted", queue),
		Err:     err,
	}
}

func QueueUnavailable(queue string, err error) *Error {
	return &Error{
		Kind:    KindQueueUnavailable,
		Code:    CodeQueueUnavailable,
		Message: fmt.Sprintf("Queue %q is unavailable", queue),
		Err:     err,
	}
}

// JobSubmissionFailed wraps a broker failure under an operation-specific code
func JobSubmissionFailed(code string, err error) *Error {
	return &Error{
		Kind:    KindJobSubmissionFailed,
		Code:    code,
		Message: "Failed to submit job",
		Err:     err,
	}
}

func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}
