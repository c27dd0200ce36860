package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider call failures for retry decisions.
type Kind string

const (
	// KindRateLimited: provider throttled the request (HTTP 429). Retryable.
	KindRateLimited Kind = "rate_limited"
	// KindUnauthorized: bad or missing credentials (HTTP 401/403). Not retryable.
	KindUnauthorized Kind = "unauthorized"
	// KindNotFound: the requested resource does not exist (HTTP 404). Not retryable.
	KindNotFound Kind = "not_found"
	// KindBadRequest: malformed request, any other 4xx. Not retryable.
	KindBadRequest Kind = "bad_request"
	// KindTransient: network failure or provider 5xx. Retryable.
	KindTransient Kind = "transient"
)

// Error is the failure type returned by all provider clients.
type Error struct {
	Kind     Kind
	Provider string // provider name for logs and metrics
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a provider error with the given kind and cause.
func NewError(providerName string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Provider: providerName, Cause: cause}
}

// FromStatus maps an HTTP status code to a provider error.
// 2xx codes map to nil.
func FromStatus(providerName string, status int) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return NewError(providerName, KindRateLimited, fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(providerName, KindUnauthorized, fmt.Errorf("status %d", status))
	case status == http.StatusNotFound:
		return NewError(providerName, KindNotFound, fmt.Errorf("status %d", status))
	case status >= 500:
		return NewError(providerName, KindTransient, fmt.Errorf("status %d", status))
	default:
		return NewError(providerName, KindBadRequest, fmt.Errorf("status %d", status))
	}
}

// Retryable reports whether the error is worth retrying with backoff.
// Only rate limits and transient failures qualify; auth failures, missing
// resources and malformed requests fail immediately.
func Retryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindRateLimited || pe.Kind == KindTransient
	}
	return false
}

// KindOf extracts the failure kind, or empty string for non-provider errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
