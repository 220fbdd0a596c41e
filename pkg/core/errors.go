package core

import (
	"errors"
	"fmt"
)

// Error is the typed error shared by the orchestrator and its providers.
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Param         string    `json:"param,omitempty"`
	Code          string    `json:"code,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
	RetryAfter    *int      `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// Configuration errors are fatal to session start.
	ErrCredentialMissing ErrorType = "credential_missing"
	ErrCaptureDenied     ErrorType = "capture_denied"
	ErrAdapterConnect    ErrorType = "adapter_connect"
	ErrInvalidRequest    ErrorType = "invalid_request_error"

	// Provider errors.
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"

	// Shutdown-path errors.
	ErrSummaryInvalid ErrorType = "summary_invalid"
)

// NewCredentialMissingError reports a provider credential that is not configured.
func NewCredentialMissingError(name string) *Error {
	return &Error{
		Type:    ErrCredentialMissing,
		Message: fmt.Sprintf("%s credential is not configured", name),
		Param:   name,
	}
}

// NewCaptureDeniedError reports that the capture surface is unavailable or refused access.
func NewCaptureDeniedError(surface string, underlying error) *Error {
	e := &Error{
		Type:    ErrCaptureDenied,
		Message: "audio capture is not available",
		Param:   surface,
	}
	if underlying != nil {
		e.Message = fmt.Sprintf("audio capture is not available: %v", underlying)
		e.ProviderError = underlying
	}
	return e
}

// NewAdapterConnectError reports a provider stream that could not be brought up.
func NewAdapterConnectError(origin string, underlying error) *Error {
	return &Error{
		Type:          ErrAdapterConnect,
		Message:       fmt.Sprintf("%s stream connect failed: %v", origin, underlying),
		Param:         origin,
		ProviderError: underlying,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, retryAfter int) *Error {
	return &Error{
		Type:       ErrRateLimit,
		Message:    message,
		RetryAfter: &retryAfter,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// NewProviderError creates a provider-specific error.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:          ErrProvider,
		Message:       fmt.Sprintf("%s: %v", provider, underlying),
		ProviderError: underlying,
	}
}

// NewSummaryInvalidError reports a summary response that failed validation.
func NewSummaryInvalidError(underlying error) *Error {
	return &Error{
		Type:          ErrSummaryInvalid,
		Message:       fmt.Sprintf("summary failed validation: %v", underlying),
		ProviderError: underlying,
	}
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

// IsConfig reports whether the error belongs to the configuration class.
func (e *Error) IsConfig() bool {
	switch e.Type {
	case ErrCredentialMissing, ErrCaptureDenied, ErrAdapterConnect, ErrInvalidRequest:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}

// IsConfigError reports whether err carries a configuration-class *Error.
func IsConfigError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.IsConfig()
}

// TypeOf returns the ErrorType of err, or "" when err is not a *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}
