package review

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProviderID names an LLM vendor.
type ProviderID string

const (
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
)

// Providers lists the supported provider identifiers.
func Providers() []ProviderID {
	return []ProviderID{ProviderAnthropic, ProviderGemini}
}

// ParseProvider maps a user-supplied name to a ProviderID.
func ParseProvider(name string) (ProviderID, error) {
	switch id := ProviderID(strings.ToLower(strings.TrimSpace(name))); id {
	case ProviderAnthropic, ProviderGemini:
		return id, nil
	default:
		return "", &UnknownProviderError{Name: name}
	}
}

// EnvVar is the environment variable holding the provider's API key.
func EnvVar(id ProviderID) string {
	switch id {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel is the model used when a request leaves Model empty.
func DefaultModel(id ProviderID) string {
	switch id {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20240620"
	case ProviderGemini:
		return "gemini-1.5-pro-002"
	default:
		return ""
	}
}

// Completion is the text a provider produced plus token usage.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider turns a Request into an HTTP request and a response body back
// into a Completion. Each vendor implements both halves independently.
type Provider interface {
	ID() ProviderID
	BuildRequest(ctx context.Context, req Request, model string) (*http.Request, error)
	ParseResponse(status int, header http.Header, body []byte) (Completion, error)
}

// statusError classifies a non-2xx status. message is the provider's error
// text (or the raw body when no envelope could be decoded).
func statusError(id ProviderID, status int, header http.Header, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: id, Message: message}
	case status == http.StatusTooManyRequests || status == 529:
		return &RateLimitError{Provider: id, StatusCode: status, RetryAfter: retryAfter(header), Message: message}
	case status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return &NetworkError{Provider: id, StatusCode: status, Message: message}
	default:
		return &ProviderError{Provider: id, StatusCode: status, Message: message}
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After")))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// rawMessage is the fallback error text when no envelope decodes.
func rawMessage(status int, body []byte) string {
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(status)
}
