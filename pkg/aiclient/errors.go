package aiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Provider error codes. Rate-limit and auth failures need distinct handling
// upstream, so they carry their own codes rather than collapsing into a
// generic API error.
const (
	ErrCodeRateLimited = "rate_limited"
	ErrCodeAuth        = "auth"
	ErrCodeTimeout     = "timeout"
	ErrCodeAPI         = "api_error"
)

// ProviderError is a typed AI provider failure.
type ProviderError struct {
	Code       string
	Message    string
	StatusCode int
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// NewProviderError builds a typed error from an HTTP status, reading the
// Retry-After header when the provider sends one.
func NewProviderError(statusCode int, message string, header http.Header) *ProviderError {
	err := &ProviderError{
		Message:    message,
		StatusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		err.Code = ErrCodeRateLimited
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err.Code = ErrCodeAuth
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		err.Code = ErrCodeTimeout
	default:
		err.Code = ErrCodeAPI
	}

	if header != nil {
		if seconds, parseErr := strconv.Atoi(header.Get("Retry-After")); parseErr == nil && seconds > 0 {
			err.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	return err
}

// IsRateLimited reports whether err is a provider rate-limit failure.
func IsRateLimited(err error) bool {
	var providerErr *ProviderError

	return errors.As(err, &providerErr) && providerErr.Code == ErrCodeRateLimited
}

// IsAuthError reports whether err is a provider authentication failure.
func IsAuthError(err error) bool {
	var providerErr *ProviderError

	return errors.As(err, &providerErr) && providerErr.Code == ErrCodeAuth
}

// IsTimeout reports whether err is a provider timeout, including an
// assistant run that exhausted its polling budget.
func IsTimeout(err error) bool {
	var providerErr *ProviderError

	return errors.As(err, &providerErr) && providerErr.Code == ErrCodeTimeout
}
