package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	geminiBaseURL         = "https://generativelanguage.googleapis.com"
	geminiMaxOutputTokens = 8192
	geminiTemp            = 0.1
)

type gemini struct {
	baseURL string
}

func newGemini(baseURL string) *gemini {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &gemini{baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *gemini) ID() ProviderID { return ProviderGemini }

func (g *gemini) BuildRequest(ctx context.Context, req Request, model string) (*http.Request, error) {
	temperature := geminiTemp
	body, err := json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt()}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt()}}},
		},
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens:  geminiMaxOutputTokens,
			Temperature:      &temperature,
			ResponseMIMEType: "text/plain",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	model = strings.TrimPrefix(model, "models/")
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.APIKey)
	return httpReq, nil
}

func (g *gemini) ParseResponse(status int, header http.Header, body []byte) (Completion, error) {
	var result geminiResponse
	decodeErr := json.Unmarshal(body, &result)

	if !isSuccess(status) {
		message := rawMessage(status, body)
		if decodeErr == nil && result.Error != nil && result.Error.Message != "" {
			message = result.Error.Message
			// Gemini reports a bad key as 400 INVALID_ARGUMENT.
			if status == http.StatusBadRequest && strings.Contains(message, "API key") {
				return Completion{}, &AuthError{Provider: ProviderGemini, Message: message}
			}
		}
		return Completion{}, statusError(ProviderGemini, status, header, message)
	}

	if decodeErr != nil {
		return Completion{}, &ProviderError{Provider: ProviderGemini, StatusCode: status, Message: fmt.Sprintf("parsing response: %v", decodeErr)}
	}
	if result.Error != nil {
		return Completion{}, &ProviderError{Provider: ProviderGemini, StatusCode: status, Message: result.Error.Message}
	}
	if len(result.Candidates) == 0 {
		message := "no candidates in response"
		if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			message = "prompt blocked: " + result.PromptFeedback.BlockReason
		}
		return Completion{}, &ProviderError{Provider: ProviderGemini, StatusCode: status, Message: message}
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		message := "no text content in response"
		if reason := result.Candidates[0].FinishReason; reason != "" {
			message += " (finish reason " + reason + ")"
		}
		return Completion{}, &ProviderError{Provider: ProviderGemini, StatusCode: status, Message: message}
	}

	return Completion{
		Text:         text.String(),
		InputTokens:  result.UsageMetadata.PromptTokenCount,
		OutputTokens: result.UsageMetadata.CandidatesTokenCount,
	}, nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *geminiFeedback   `json:"promptFeedback,omitempty"`
	UsageMetadata  geminiUsage       `json:"usageMetadata"`
	Error          *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
