package chat

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-agrivoice/internal/httpc"
)

// Sentinel errors for common error conditions.
var (
	// ErrRetrievalFailed matches every retrieval failure returned by this package.
	ErrRetrievalFailed = errors.New("chat: retrieval failed")

	// ErrEmptyMessage is returned for a blank request.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrEmptyResponse is returned when the backend answers without content.
	ErrEmptyResponse = errors.New("chat: empty response")

	// ErrNoBaseURL is returned when no endpoint is configured.
	ErrNoBaseURL = errors.New("chat: base URL required")

	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("chat: API key required")

	// ErrNotConnected is returned by WSClient when the socket is gone.
	ErrNotConnected = errors.New("chat: not connected")
)

// APIError represents an error response from a chat backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chat [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("chat [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return httpc.Retryable(e.StatusCode)
}

// Is makes every APIError match ErrRetrievalFailed.
func (e *APIError) Is(target error) bool {
	return target == ErrRetrievalFailed
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("chat [%s]: %v", e.Provider, e.Err)
}

// Unwrap exposes both the cause and ErrRetrievalFailed.
func (e *ProviderError) Unwrap() []error {
	return []error{ErrRetrievalFailed, e.Err}
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
