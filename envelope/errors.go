package envelope

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType is the taxonomy of terminal invocation failures.
type ErrorType string

const (
	// TypeValidation means the input was rejected before any upstream call.
	TypeValidation ErrorType = "validation_error"
	// TypeDataMissing means the upstream answered without usable data.
	TypeDataMissing ErrorType = "data_missing"
	// TypeUpstream means the upstream call failed or returned an error status.
	TypeUpstream ErrorType = "upstream_error"
	// TypeTimeout means the upstream call or a cache round-trip exceeded its deadline.
	TypeTimeout ErrorType = "timeout"
	// TypeUnknown covers anything else, including recovered panics.
	TypeUnknown ErrorType = "unknown_error"
)

// Error is a typed invocation failure.
type Error struct {
	Type     ErrorType
	Category string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Category != "" {
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Type, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf returns a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Type: TypeValidation, Message: fmt.Sprintf(format, args...)}
}

// DataMissingf returns a data-missing error.
func DataMissingf(format string, args ...any) *Error {
	return &Error{Type: TypeDataMissing, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps err as an upstream failure.
func Upstream(err error, format string, args ...any) *Error {
	return &Error{Type: TypeUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

// Timeoutf returns a timeout error.
func Timeoutf(format string, args ...any) *Error {
	return &Error{Type: TypeTimeout, Message: fmt.Sprintf(format, args...), Err: context.DeadlineExceeded}
}

// TypeOf maps any error into the taxonomy. It returns "" for nil.
//
// Typed errors keep their type. Deadline errors, including resilience timeouts
// which wrap context.DeadlineExceeded, become TypeTimeout. Everything else is
// TypeUnknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TypeTimeout
	}
	return TypeUnknown
}

// Normalize returns err as an *Error bound to category.
func Normalize(category string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Category == "" {
			out.Category = category
		}
		if out.Message == "" && out.Err != nil {
			out.Message = out.Err.Error()
		}
		return &out
	}
	return &Error{
		Type:     TypeOf(err),
		Category: category,
		Message:  err.Error(),
		Err:      err,
	}
}

// Retryable reports whether a retry could plausibly change the outcome.
// Only upstream failures qualify.
func Retryable(err error) bool {
	return TypeOf(err) == TypeUpstream
}
