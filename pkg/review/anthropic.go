package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
	anthropicMaxTokens  = 4096
	anthropicTemp       = 0.1
)

type anthropic struct {
	baseURL string
}

func newAnthropic(baseURL string) *anthropic {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &anthropic{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *anthropic) ID() ProviderID { return ProviderAnthropic }

func (a *anthropic) BuildRequest(ctx context.Context, req Request, model string) (*http.Request, error) {
	temperature := anthropicTemp
	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: &temperature,
		System:      req.SystemPrompt(),
		Messages: []anthropicMessage{
			{Role: "user", Content: req.UserPrompt()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	return httpReq, nil
}

func (a *anthropic) ParseResponse(status int, header http.Header, body []byte) (Completion, error) {
	var result anthropicResponse
	decodeErr := json.Unmarshal(body, &result)

	if !isSuccess(status) {
		message := rawMessage(status, body)
		if decodeErr == nil && result.Error != nil && result.Error.Message != "" {
			message = result.Error.Message
		}
		return Completion{}, statusError(ProviderAnthropic, status, header, message)
	}

	if decodeErr != nil {
		return Completion{}, &ProviderError{Provider: ProviderAnthropic, StatusCode: status, Message: fmt.Sprintf("parsing response: %v", decodeErr)}
	}
	if result.Type == "error" || result.Error != nil {
		message := "unknown error"
		if result.Error != nil {
			message = result.Error.Message
		}
		return Completion{}, &ProviderError{Provider: ProviderAnthropic, StatusCode: status, Message: message}
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, &ProviderError{Provider: ProviderAnthropic, StatusCode: status, Message: "no text content in response"}
	}

	return Completion{
		Text:         text.String(),
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Type    string           `json:"type"`
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
	Error   *anthropicError  `json:"error,omitempty"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
