package review

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is. Every error Review returns matches one of them,
// except context cancellation.
var (
	ErrAuth            = errors.New("authentication error")
	ErrNetwork         = errors.New("network error")
	ErrRateLimit       = errors.New("rate limited")
	ErrProvider        = errors.New("provider error")
	ErrUnknownProvider = errors.New("unknown provider")
)

// AuthError is a missing or rejected credential.
type AuthError struct {
	Provider ProviderID
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication error: %s", e.Provider, e.Message)
}

func (e *AuthError) Unwrap() error { return ErrAuth }

// RateLimitError is a throttling response. RetryAfter is zero when the
// provider did not say.
type RateLimitError struct {
	Provider   ProviderID
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimit }

// NetworkError is a transport failure or a transient gateway/server status.
type NetworkError struct {
	Provider   ProviderID
	StatusCode int // 0 when the request never got a response.
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: server unavailable (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

// UnknownProviderError is a provider name outside the supported set. It is a
// configuration error: config.Options.Validate reports the same condition as
// *config.ConfigError wrapping this type, before any request is built.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q (choose anthropic or gemini)", e.Name)
}

func (e *UnknownProviderError) Unwrap() error { return ErrUnknownProvider }

// ProviderError is an error envelope or an unusable response body. Message
// is the provider's own text, unmodified.
type ProviderError struct {
	Provider   ProviderID
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrProvider }

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimit)
}
