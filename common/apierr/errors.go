// Package apierr implements the typed error taxonomy every component in
// visionserve raises: a single wrapped *Error carrying a stable upper-snake
// code, a human message, optional structured details, and an optional
// retry-after hint. The Request Coordinator is the only place that turns an
// *Error into a client-facing envelope (§4.8); every other component just
// returns one.
package apierr

import (
	"errors"
	"fmt"
)

// Code is one of the taxonomy's stable, upper-snake-case error codes.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeVisionService      Code = "VISION_SERVICE_ERROR"
	CodeStorage            Code = "STORAGE_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTimeout            Code = "TIMEOUT_ERROR"
	CodeCache              Code = "CACHE_ERROR"
	CodeProcessing         Code = "PROCESSING_ERROR"
)

// Error is the single concrete type behind every taxonomy kind.
type Error struct {
	Code              Code
	Message           string
	Details           map[string]any
	RetryAfterSeconds *int
	cause             error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// WithDetails attaches structured diagnostic fields and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsTransient reports whether the error's code belongs to the retry-eligible
// set a batch or client retry policy should act on (§4.7).
func (e *Error) IsTransient() bool {
	switch e.Code {
	case CodeServiceUnavailable, CodeTimeout, CodeVisionService, CodeStorage:
		return true
	default:
		return false
	}
}

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Validation wraps a malformed-input / out-of-range-parameter / unsupported-
// format failure.
func Validation(message string, cause error) *Error {
	return newError(CodeValidation, message, cause)
}

// NotFound wraps an unknown image_hash or cache key lookup.
func NotFound(message string, cause error) *Error {
	return newError(CodeNotFound, message, cause)
}

// RateLimitExceeded wraps a decision handed down by the (externally owned)
// rate-limit collaborator.
func RateLimitExceeded(retryAfterSeconds int) *Error {
	e := newError(CodeRateLimitExceeded, "rate limit exceeded", nil)
	e.RetryAfterSeconds = &retryAfterSeconds
	return e
}

// VisionService wraps a transient upstream vision-provider failure.
func VisionService(message string, retryAfterSeconds *int, cause error) *Error {
	e := newError(CodeVisionService, message, cause)
	e.RetryAfterSeconds = retryAfterSeconds
	return e
}

// Storage wraps an object-store failure.
func Storage(message string, cause error) *Error {
	return newError(CodeStorage, message, cause)
}

// ServiceUnavailable wraps a circuit-open or required-collaborator-down
// condition; retryAfterSeconds is the hint callers should surface instead
// of blocking the request (§4.3).
func ServiceUnavailable(message string, retryAfterSeconds int) *Error {
	e := newError(CodeServiceUnavailable, message, nil)
	e.RetryAfterSeconds = &retryAfterSeconds
	return e
}

// Timeout wraps an operation that exceeded its deadline.
func Timeout(message string, cause error) *Error {
	return newError(CodeTimeout, message, cause)
}

// Cache wraps a cache-layer failure. On the lookup and write paths it is
// never fatal: callers log and swallow it, proceeding as if the lookup had
// been a MISS (§4.4, §7). InvalidateVersion returns it to its caller.
func Cache(message string, cause error) *Error {
	return newError(CodeCache, message, cause)
}

// Processing wraps a catch-all internal transform failure; operation/context
// should be set in Details for diagnostics.
func Processing(operation, context string, cause error) *Error {
	return newError(CodeProcessing, fmt.Sprintf("processing failed during %s", operation), cause).
		WithDetails(map[string]any{"operation": operation, "context": context})
}

// As extracts an *Error from err via errors.As, for call sites that need to
// branch on Code without importing errors directly.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
