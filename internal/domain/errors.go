package domain

import (
	"errors"
	"fmt"
)

// Error codes. Callers branch on these, never on message text.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeAlreadyFinished = "ALREADY_FINISHED"
	CodeTransient       = "TRANSIENT"
	CodeInFlight        = "IN_FLIGHT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

// ErrConflict reports that the action was already recorded for its window.
func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

// ErrAlreadyFinished reports a completion or cancel against an instance that
// is no longer active.
func ErrAlreadyFinished(msg string) *AppError {
	return &AppError{Code: CodeAlreadyFinished, Message: msg, Status: 409}
}

// ErrTransient wraps a retryable store failure (network, timeout, 5xx).
func ErrTransient(msg string, cause error) *AppError {
	return &AppError{Code: CodeTransient, Message: msg, Status: 503, Cause: cause}
}

func ErrInFlight(key string) *AppError {
	return &AppError{Code: CodeInFlight, Message: fmt.Sprintf("submission already in flight for %s", key), Status: 409}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: 403}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// CodeOf returns the AppError code anywhere in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func IsConflict(err error) bool        { return IsCode(err, CodeConflict) }
func IsValidation(err error) bool      { return IsCode(err, CodeValidation) }
func IsAlreadyFinished(err error) bool { return IsCode(err, CodeAlreadyFinished) }

// IsTransient treats any error without a domain code as transient: the
// caller cannot know whether it reached the store.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	code := CodeOf(err)
	return code == "" || code == CodeTransient || code == CodeInternal
}

// NewAppError rebuilds an AppError from a wire code (used by HTTP clients).
func NewAppError(code, message string, status int) *AppError {
	if code == "" {
		code = CodeInternal
	}
	return &AppError{Code: code, Message: message, Status: status}
}
