package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a request failure for the caller. The kind survives
// retry wrapping unchanged so that "timed out after retries" stays
// distinguishable from "network error after retries".
type ErrorKind string

const (
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindNetwork         ErrorKind = "network"
	ErrKindRateLimited     ErrorKind = "rate_limited"
	ErrKindInvalidResponse ErrorKind = "invalid_response"
	ErrKindConfiguration   ErrorKind = "configuration"
	ErrKindUnknown         ErrorKind = "unknown"
)

// RequestError is the classified error surfaced by the story service and its
// collaborators. StatusCode is non-zero only for network failures that carry
// an HTTP status.
type RequestError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewTimeoutError reports a bounded call that hit its wall-clock deadline.
func NewTimeoutError(err error) *RequestError {
	return &RequestError{
		Kind:      ErrKindTimeout,
		Message:   "request timed out",
		Retryable: true,
		Err:       err,
	}
}

// NewNetworkError reports a transport fault or a non-2xx upstream status.
// statusCode may be zero when the failure happened below HTTP.
func NewNetworkError(message string, statusCode int, err error) *RequestError {
	return &RequestError{
		Kind:       ErrKindNetwork,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  true,
		Err:        err,
	}
}

// NewRateLimitedError reports a rejection by the client-side request budget.
func NewRateLimitedError() *RequestError {
	return &RequestError{
		Kind:    ErrKindRateLimited,
		Message: "rate limit exceeded, please try again later",
	}
}

// NewInvalidResponseError reports upstream output that failed envelope or
// choice validation. Never retryable: resending the same request would most
// likely reproduce the same malformed output.
func NewInvalidResponseError(message string) *RequestError {
	return &RequestError{
		Kind:    ErrKindInvalidResponse,
		Message: message,
	}
}

// NewConfigurationError reports a missing or invalid client configuration,
// e.g. an absent API key.
func NewConfigurationError(message string) *RequestError {
	return &RequestError{
		Kind:    ErrKindConfiguration,
		Message: message,
	}
}

// NewUnknownError wraps an unclassified failure.
func NewUnknownError(err error) *RequestError {
	return &RequestError{
		Kind:    ErrKindUnknown,
		Message: "an unknown error occurred",
		Err:     err,
	}
}

// KindOf extracts the classification of err, or ErrKindUnknown when err does
// not carry a RequestError anywhere in its chain.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ErrKindUnknown
}
