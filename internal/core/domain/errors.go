package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across jobs.
var (
	ErrNotFound        = errors.New("not found")
	ErrJobRunning      = errors.New("job already running")
	ErrUnknownJob      = errors.New("unknown job")
	ErrBudgetExhausted = errors.New("provider call budget exhausted")
)

// ProviderErrorKind classifies failures of external map/geocoding providers.
type ProviderErrorKind int

const (
	ProviderUnknown ProviderErrorKind = iota
	// ProviderQuotaExceeded covers HTTP 429 and OVER_QUERY_LIMIT. Retry the same unit of work.
	ProviderQuotaExceeded
	// ProviderInvalidRequest covers INVALID_REQUEST, REQUEST_DENIED and 4xx. Skip the item.
	ProviderInvalidRequest
	// ProviderNotFound covers ZERO_RESULTS / NOT_FOUND.
	ProviderNotFound
	// ProviderNetwork covers transport failures and 5xx.
	ProviderNetwork
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderQuotaExceeded:
		return "quota_exceeded"
	case ProviderInvalidRequest:
		return "invalid_request"
	case ProviderNotFound:
		return "not_found"
	case ProviderNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// ProviderError is returned by provider adapters.
type ProviderError struct {
	Kind    ProviderErrorKind
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError.
func NewProviderError(kind ProviderErrorKind, msg string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Message: msg, Err: err}
}

func providerKind(err error) (ProviderErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return ProviderUnknown, false
}

// IsQuotaExceeded reports whether err is a rate-limit / quota response.
func IsQuotaExceeded(err error) bool {
	k, ok := providerKind(err)
	return ok && k == ProviderQuotaExceeded
}

// IsInvalidRequest reports whether the provider rejected the request.
func IsInvalidRequest(err error) bool {
	k, ok := providerKind(err)
	return ok && k == ProviderInvalidRequest
}

// IsProviderNotFound reports whether the provider had no result.
func IsProviderNotFound(err error) bool {
	k, ok := providerKind(err)
	return ok && k == ProviderNotFound
}

// IsNetworkFailure reports whether err came from the transport or a 5xx.
func IsNetworkFailure(err error) bool {
	k, ok := providerKind(err)
	return ok && k == ProviderNetwork
}

// ClassifyHTTPStatus maps a non-200 HTTP status to a ProviderError.
func ClassifyHTTPStatus(statusCode int) *ProviderError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewProviderError(ProviderQuotaExceeded, "rate limit reached (HTTP 429)", nil)
	case statusCode == http.StatusNotFound:
		return NewProviderError(ProviderNotFound, "resource not found (HTTP 404)", nil)
	case statusCode >= 500:
		return NewProviderError(ProviderNetwork, fmt.Sprintf("provider unavailable (HTTP %d)", statusCode), nil)
	case statusCode >= 400:
		return NewProviderError(ProviderInvalidRequest, fmt.Sprintf("request rejected (HTTP %d)", statusCode), nil)
	default:
		return NewProviderError(ProviderUnknown, fmt.Sprintf("unexpected HTTP %d", statusCode), nil)
	}
}

// ClassifyStatus maps a provider body status to a ProviderError. It returns nil for OK.
func ClassifyStatus(status, message string) *ProviderError {
	msg := "provider status " + status
	if message != "" {
		msg += ": " + message
	}
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return NewProviderError(ProviderNotFound, msg, nil)
	case "OVER_QUERY_LIMIT", "RESOURCE_EXHAUSTED":
		return NewProviderError(ProviderQuotaExceeded, msg, nil)
	case "INVALID_REQUEST", "REQUEST_DENIED":
		return NewProviderError(ProviderInvalidRequest, msg, nil)
	case "UNKNOWN_ERROR":
		return NewProviderError(ProviderNetwork, msg, nil)
	default:
		return NewProviderError(ProviderUnknown, msg, nil)
	}
}
