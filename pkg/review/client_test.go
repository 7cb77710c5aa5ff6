package review

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/drengskapur/repocoder/pkg/payload"
)

// countingDoer fails the test if it is ever asked to send a request.
type countingDoer struct {
	calls atomic.Int32
}

func (d *countingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return nil, errors.New("unexpected request")
}

// blockingDoer waits for the request context to end.
type blockingDoer struct{}

func (blockingDoer) Do(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Options{
		HTTPClient:       server.Client(),
		MaxAttempts:      3,
		Backoff:          time.Millisecond,
		AnthropicBaseURL: server.URL,
		GeminiBaseURL:    server.URL,
	})
	return client, &calls
}

func testRequest(t *testing.T, provider ProviderID) Request {
	t.Helper()
	req, err := NewRequest(payload.ActionCodeReview, provider, "", "test-key", payload.Payload{Text: "File Path: a.go\nCode:\npackage a\n\n"})
	require.NoError(t, err)
	return req
}

func TestReviewAnthropicSuccess(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-5-sonnet-20240620", body.Model)
		assert.Equal(t, 4096, body.MaxTokens)
		require.NotNil(t, body.Temperature)
		assert.InDelta(t, 0.1, *body.Temperature, 1e-9)
		assert.Equal(t, payload.SystemPrompt, body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Contains(t, body.Messages[0].Content, "Please review the following code")
		assert.Contains(t, body.Messages[0].Content, "File Path: a.go")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"type":"message","content":[{"type":"text","text":"Looks "},{"type":"text","text":"good"}],"usage":{"input_tokens":12,"output_tokens":3}}`)
	})

	resp, err := client.Review(context.Background(), testRequest(t, ProviderAnthropic))
	require.NoError(t, err)
	assert.Equal(t, "Looks good", resp.Text)
	assert.Equal(t, ProviderAnthropic, resp.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20240620", resp.Model)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
	assert.Equal(t, 1, resp.Attempts)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReviewGeminiSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-exp:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.SystemInstruction)
		assert.Equal(t, payload.SystemPrompt, body.SystemInstruction.Parts[0].Text)
		require.Len(t, body.Contents, 1)
		assert.Contains(t, body.Contents[0].Parts[0].Text, "File Path: a.go")
		require.NotNil(t, body.GenerationConfig)
		assert.Equal(t, 8192, body.GenerationConfig.MaxOutputTokens)

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"No changes required"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":40,"candidatesTokenCount":4}}`)
	})

	req := testRequest(t, ProviderGemini)
	req.Model = "models/gemini-exp"
	resp, err := client.Review(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "No changes required", resp.Text)
	assert.Equal(t, 40, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
}

func TestReviewMissingAPIKeyMakesNoRequest(t *testing.T) {
	for _, provider := range Providers() {
		t.Run(string(provider), func(t *testing.T) {
			doer := &countingDoer{}
			client := NewClient(Options{HTTPClient: doer})

			req := testRequest(t, provider)
			req.APIKey = ""
			_, err := client.Review(context.Background(), req)

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.ErrorIs(t, err, ErrAuth)
			assert.Contains(t, err.Error(), EnvVar(provider))
			assert.EqualValues(t, 0, doer.calls.Load())
		})
	}
}

func TestReviewErrorEnvelopeIsProviderError(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 250000 tokens > 200000 maximum"}}`)
	})

	_, err := client.Review(context.Background(), testRequest(t, ProviderAnthropic))
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "prompt is too long: 250000 tokens > 200000 maximum", providerErr.Message)
	assert.ErrorIs(t, err, ErrProvider)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReviewRetriesRateLimit(t *testing.T) {
	var attempt atomic.Int32
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`)
	})

	resp, err := client.Review(context.Background(), testRequest(t, ProviderAnthropic))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, resp.Attempts)
	assert.EqualValues(t, 3, calls.Load())
}

func TestReviewServerErrorExhaustsAttempts(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "upstream unavailable")
	})

	_, err := client.Review(context.Background(), testRequest(t, ProviderGemini))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	var networkErr *NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, http.StatusServiceUnavailable, networkErr.StatusCode)
	assert.Equal(t, "upstream unavailable", networkErr.Message)
	assert.EqualValues(t, 3, calls.Load())
}

func TestReviewDoesNotRetryNonTransientErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderID
		status   int
		body     string
		target   error
	}{
		{"anthropic unauthorized", ProviderAnthropic, http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, ErrAuth},
		{"gemini bad key", ProviderGemini, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, ErrAuth},
		{"gemini forbidden", ProviderGemini, http.StatusForbidden, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`, ErrAuth},
		{"bad request", ProviderAnthropic, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`, ErrProvider},
		{"not found", ProviderGemini, http.StatusNotFound, `not found`, ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Review(context.Background(), testRequest(t, tt.provider))
			assert.ErrorIs(t, err, tt.target)
			assert.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestReviewGeminiBlockedPrompt(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})

	_, err := client.Review(context.Background(), testRequest(t, ProviderGemini))
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Contains(t, providerErr.Message, "SAFETY")
}

func TestReviewEmptyContentIsProviderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"message","content":[],"usage":{"input_tokens":5,"output_tokens":0}}`)
	})

	_, err := client.Review(context.Background(), testRequest(t, ProviderAnthropic))
	assert.ErrorIs(t, err, ErrProvider)
}

func TestReviewCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Review(ctx, testRequest(t, ProviderAnthropic))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReviewRetriesSlowAttempt(t *testing.T) {
	var attempt atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer server.Close()

	client := NewClient(Options{
		HTTPClient:       server.Client(),
		Timeout:          50 * time.Millisecond,
		MaxAttempts:      3,
		Backoff:          time.Millisecond,
		AnthropicBaseURL: server.URL,
	})

	resp, err := client.Review(context.Background(), testRequest(t, ProviderAnthropic))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, resp.Attempts)
}

func TestReviewSlowAttemptsExhaustAsNetworkError(t *testing.T) {
	client := NewClient(Options{
		HTTPClient:  &blockingDoer{},
		Timeout:     10 * time.Millisecond,
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
	})

	_, err := client.Review(context.Background(), testRequest(t, ProviderGemini))
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "attempt timed out")
}

func TestReviewUnknownProviderMakesNoRequest(t *testing.T) {
	doer := &countingDoer{}
	client := NewClient(Options{HTTPClient: doer})

	req := testRequest(t, ProviderAnthropic)
	req.Provider = ProviderID("openai")
	_, err := client.Review(context.Background(), req)

	var providerErr *UnknownProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "openai", providerErr.Name)
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.EqualValues(t, 0, doer.calls.Load())
}

func TestReviewLogsRetries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var attempt atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(529)
			return
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"ok"}]}`)
	}))
	defer server.Close()

	client := NewClient(Options{
		HTTPClient:       server.Client(),
		Backoff:          time.Millisecond,
		AnthropicBaseURL: server.URL,
		Logger:           zap.New(core),
	})
	_, err := client.Review(context.Background(), testRequest(t, ProviderAnthropic))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Retrying provider request").Len())
}

func TestStatusErrorRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	err := statusError(ProviderAnthropic, http.StatusTooManyRequests, header, "busy")

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 7*time.Second, rateErr.RetryAfter)

	header.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	err = statusError(ProviderAnthropic, http.StatusTooManyRequests, header, "busy")
	require.ErrorAs(t, err, &rateErr)
	assert.Zero(t, rateErr.RetryAfter)
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderID
		wantErr bool
	}{
		{"anthropic", ProviderAnthropic, false},
		{" Gemini ", ProviderGemini, false},
		{"openai", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRequestValidation(t *testing.T) {
	_, err := NewRequest("fix", ProviderAnthropic, "", "k", payload.Payload{})
	require.Error(t, err)

	_, err = NewRequest(payload.ActionCodeReview, ProviderID("openai"), "", "k", payload.Payload{})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	req, err := NewRequest("  Add docstrings everywhere  ", ProviderGemini, " m ", " k ", payload.Payload{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Add docstrings everywhere", req.Action)
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, "k", req.APIKey)
	assert.True(t, strings.HasPrefix(req.UserPrompt(), "Action: Add docstrings everywhere\n"))
}
