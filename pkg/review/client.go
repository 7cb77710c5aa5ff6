// Package review sends an assembled payload and an action to an LLM provider
// and extracts the textual completion.
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drengskapur/repocoder/pkg/payload"
)

const (
	defaultTimeout     = 5 * time.Minute
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	maxResponseBytes   = 32 << 20
)

// Request is one review call. It is built once and not modified afterwards.
type Request struct {
	Action   string
	Provider ProviderID
	Model    string // Empty selects DefaultModel(Provider).
	APIKey   string
	Payload  string
}

// NewRequest validates the action and provider and returns a Request.
func NewRequest(action string, provider ProviderID, model, apiKey string, p payload.Payload) (Request, error) {
	if err := payload.ValidateAction(action); err != nil {
		return Request{}, err
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return Request{}, err
	}
	return Request{
		Action:   strings.TrimSpace(action),
		Provider: provider,
		Model:    strings.TrimSpace(model),
		APIKey:   strings.TrimSpace(apiKey),
		Payload:  p.Text,
	}, nil
}

// SystemPrompt and UserPrompt are what every provider sends.
func (r Request) SystemPrompt() string { return payload.SystemPrompt }

func (r Request) UserPrompt() string { return payload.Prompt(r.Action, r.Payload) }

// Response is the provider's completion plus metadata.
type Response struct {
	Text         string
	Provider     ProviderID
	Model        string
	InputTokens  int
	OutputTokens int
	Attempts     int
}

// Doer is the part of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure a Client. Zero values select defaults.
type Options struct {
	HTTPClient       Doer
	Timeout          time.Duration // Bounds each attempt; an attempt that runs out is retried.
	MaxAttempts      int
	Backoff          time.Duration
	AnthropicBaseURL string
	GeminiBaseURL    string
	Logger           *zap.Logger
}

// Client dispatches review requests to the selected provider.
type Client struct {
	http        Doer
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	providers   map[ProviderID]Provider
	logger      *zap.Logger
}

// NewClient builds a Client.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	doer := opts.HTTPClient
	if doer == nil {
		doer = &http.Client{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	return &Client{
		http:        doer,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		providers: map[ProviderID]Provider{
			ProviderAnthropic: newAnthropic(opts.AnthropicBaseURL),
			ProviderGemini:    newGemini(opts.GeminiBaseURL),
		},
		logger: logger,
	}
}

// Review sends req and returns the provider's completion. An unknown provider
// fails with *UnknownProviderError and a missing API key with *AuthError,
// both before any request is made.
func (c *Client) Review(ctx context.Context, req Request) (Response, error) {
	provider, ok := c.providers[req.Provider]
	if !ok {
		return Response{}, &UnknownProviderError{Name: string(req.Provider)}
	}
	if req.APIKey == "" {
		return Response{}, &AuthError{
			Provider: req.Provider,
			Message:  fmt.Sprintf("API key not provided: pass --api-key or set %s", EnvVar(req.Provider)),
		}
	}

	model := req.Model
	if model == "" {
		model = DefaultModel(req.Provider)
	}

	logger := c.logger.With(zap.String("provider", string(req.Provider)), zap.String("model", model))
	logger.Info("Sending review request",
		zap.String("action", req.Action),
		zap.Int("payloadChars", len(req.Payload)))

	var completion Completion
	attempts, err := retryWithBackoff(ctx, c.maxAttempts, c.backoff, logger, func(attempt int) error {
		var err error
		completion, err = c.roundTrip(ctx, provider, req, model)
		return err
	})
	if err != nil {
		logger.Error("Review request failed", zap.Int("attempts", attempts), zap.Error(err))
		return Response{}, err
	}

	logger.Info("Review response received",
		zap.Int("attempts", attempts),
		zap.Int("inputTokens", completion.InputTokens),
		zap.Int("outputTokens", completion.OutputTokens))

	return Response{
		Text:         completion.Text,
		Provider:     req.Provider,
		Model:        model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		Attempts:     attempts,
	}, nil
}

func (c *Client) roundTrip(ctx context.Context, provider Provider, req Request, model string) (Completion, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := provider.BuildRequest(attemptCtx, req, model)
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Completion{}, ctxErr
		}
		return Completion{}, &NetworkError{Provider: provider.ID(), Err: c.attemptErr(attemptCtx, err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Completion{}, ctxErr
		}
		return Completion{}, &NetworkError{Provider: provider.ID(), Err: fmt.Errorf("reading response: %w", c.attemptErr(attemptCtx, err))}
	}

	c.logger.Debug("Provider responded",
		zap.String("provider", string(provider.ID())),
		zap.Int("status", httpResp.StatusCode),
		zap.Int("bodyBytes", len(body)))

	return provider.ParseResponse(httpResp.StatusCode, httpResp.Header, body)
}

// attemptErr names the per-attempt deadline when it caused err.
func (c *Client) attemptErr(attemptCtx context.Context, err error) error {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("attempt timed out after %s: %w", c.timeout, err)
	}
	return err
}
