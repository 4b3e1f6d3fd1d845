package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AppError represents a structured dispatch error
type AppError struct {
	Code    int    // Business error code
	Message string // Human-readable message
	Backend string // Backend that produced the error, empty for pre-dispatch failures
	Err     error  // Underlying error (if any)
	Details string // Additional details
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := fmt.Sprintf("[%d]", e.Code)
	if e.Backend != "" {
		prefix = fmt.Sprintf("[%s][%d]", e.Backend, e.Code)
	}
	if e.Err != nil {
		if e.Details != "" {
			return fmt.Sprintf("%s %s: %s: %v", prefix, e.Message, e.Details, e.Err)
		}
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s %s: %s", prefix, e.Message, e.Details)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	return GetHTTPStatus(e.Code)
}

// Kind returns the classification for this error
func (e *AppError) Kind() Kind {
	return GetKind(e.Code)
}

// WithBackend returns a copy of the error attributed to backend
func (e *AppError) WithBackend(backend string) *AppError {
	c := *e
	c.Backend = backend
	return &c
}

// New creates a new AppError with the given code
func New(code int, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: detail,
	}
}

// Newf creates a new AppError with formatted details
func Newf(code int, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// Already classified errors keep their code
	var appErr *AppError
	if errors.As(err, &appErr) {
		if len(details) > 0 && details[0] != "" {
			c := *appErr
			c.Details = details[0]
			return &c
		}
		return appErr
	}

	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}

	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Err:     err,
		Details: detail,
	}
}

// Wrapf wraps an error with formatted details
func Wrapf(err error, code int, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is checks if err is an AppError with the given code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ExtractCode extracts the error code from an error
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if IsTimeout(err) {
		return ErrTimeout
	}
	return ErrUnknown
}

// ExtractBackend returns the backend an error is attributed to
func ExtractBackend(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Backend
	}
	return ""
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
