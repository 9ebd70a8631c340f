package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pdf-translator/internal/logger"
)

// OpenAIService talks to an OpenAI-compatible chat completions endpoint
// over plain HTTP.
type OpenAIService struct {
	apiKey  string
	baseURL string
	model   string
	langIn  string
	langOut string
	client  *http.Client
}

// NewOpenAIService creates a service for an OpenAI-compatible API.
func NewOpenAIService(cfg Config) *OpenAIService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	langIn, langOut := cfg.langPair()
	return &OpenAIService{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		langIn:  langIn,
		langOut: langOut,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name identifies the service in logs and results.
func (s *OpenAIService) Name() string { return "openai" }

// ChatCompletionRequest represents the request body for OpenAI chat completions API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message represents a message in the chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from OpenAI chat completions API.
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the chat completion response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError represents an error response from the OpenAI API.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Translate sends the text through the chat completions API.
func (s *OpenAIService) Translate(ctx context.Context, text string) (string, error) {
	logger.Debug("calling chat completions API",
		logger.String("model", s.model),
		logger.Int("textLen", len(text)),
		logger.String("baseURL", s.baseURL))

	reqBody := ChatCompletionRequest{
		Model: s.model,
		Messages: []Message{
			{Role: "system", Content: buildSystemPrompt(s.langIn, s.langOut)},
			{Role: "user", Content: buildUserPrompt(s.langIn, s.langOut, text)},
		},
		Temperature: 0.3, // Lower temperature for more consistent translations
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &RequestError{Message: "failed to marshal request body", Details: err.Error()}
	}

	apiURL := normalizeAPIURL(s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", &RequestError{StatusCode: 400, Message: "failed to create HTTP request", Details: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Error("API request failed", err)
		return "", &RequestError{Message: "API request failed", Details: err.Error()}
	}
	defer resp.Body.Close()

	logger.Debug("API response received", logger.Int("statusCode", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Message: "failed to read API response", Details: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", handleAPIHTTPError(resp.StatusCode, body)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &RequestError{Message: "failed to parse API response", Details: err.Error()}
	}
	if chatResp.Error != nil {
		return "", &RequestError{Message: "API returned error", Details: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 {
		return "", &RequestError{Message: "API returned no choices"}
	}
	return chatResp.Choices[0].Message.Content, nil
}

// normalizeAPIURL ensures the API URL ends with /chat/completions
func normalizeAPIURL(url string) string {
	if url == "" {
		return "https://api.openai.com/v1/chat/completions"
	}

	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

// handleAPIHTTPError creates a RequestError from an HTTP error status.
func handleAPIHTTPError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	errorDetails := ""
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		errorDetails = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return &RequestError{StatusCode: statusCode, Message: "API authentication failed", Details: "invalid API key or unauthorized access"}
	case http.StatusTooManyRequests:
		return &RequestError{StatusCode: statusCode, Message: "API rate limit exceeded", Details: errorDetails}
	case http.StatusBadRequest:
		return &RequestError{StatusCode: statusCode, Message: "invalid API request", Details: errorDetails}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &RequestError{StatusCode: statusCode, Message: "API server error", Details: fmt.Sprintf("status %d: %s", statusCode, errorDetails)}
	default:
		return &RequestError{StatusCode: statusCode, Message: "API request failed", Details: fmt.Sprintf("status %d: %s", statusCode, errorDetails)}
	}
}
