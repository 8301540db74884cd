// Package translator provides GPT-based HTML text translation through the
// OpenAI chat completions API.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// DefaultModel is the default OpenAI model to use for translation
	DefaultModel = "gpt-4o"
	// DefaultTimeout is the default HTTP client timeout for API calls
	DefaultTimeout = 120 * time.Second
	// DefaultTemperature keeps translations close to the source text
	DefaultTemperature = 0.3
	// OpenAIAPIURL is the OpenAI chat completions API endpoint
	OpenAIAPIURL = "https://api.openai.com/v1/chat/completions"
)

// Engine translates HTML documents using the OpenAI API. It preserves markup
// and translates only natural-language text.
type Engine struct {
	apiKey string
	client *http.Client
	model  string
	apiURL string
}

// NewEngine creates a new Engine with the specified API key and default model.
func NewEngine(apiKey string) *Engine {
	return NewEngineWithConfig(apiKey, "", "", 0)
}

// NewEngineWithConfig creates a new Engine with full configuration.
func NewEngineWithConfig(apiKey, model, apiURL string, timeout time.Duration) *Engine {
	if model == "" {
		model = DefaultModel
	}
	if apiURL == "" {
		apiURL = OpenAIAPIURL
	} else {
		apiURL = normalizeAPIURL(apiURL)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		model:  model,
		apiURL: apiURL,
	}
}

// normalizeAPIURL ensures the API URL ends with /chat/completions
func normalizeAPIURL(url string) string {
	url = strings.TrimSuffix(url, "/")

	if strings.HasSuffix(url, "/chat/completions") {
		logger.Debug("API URL already complete", logger.String("url", url))
		return url
	}

	result := url + "/chat/completions"
	logger.Debug("API URL normalized", logger.String("original", url), logger.String("normalized", result))
	return result
}

// SetAPIURL sets the API URL (useful for testing with mock servers).
func (e *Engine) SetAPIURL(url string) {
	e.apiURL = url
}

// GetModel returns the model used by the engine.
func (e *Engine) GetModel() string {
	return e.model
}

// ChatCompletionRequest is the request body for the chat completions API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a message in the chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from the chat completions API.
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

// languageName maps common language codes to their English names for prompts.
func languageName(code string) string {
	switch strings.ToLower(code) {
	case "zh", "zh-cn", "zh-hans":
		return "Chinese"
	case "en", "en-us":
		return "English"
	case "ja", "jp":
		return "Japanese"
	case "ko", "kor":
		return "Korean"
	case "fr", "fra":
		return "French"
	case "es", "spa":
		return "Spanish"
	case "de":
		return "German"
	case "ru":
		return "Russian"
	default:
		return code
	}
}

func buildHTMLPrompt(html, from, to string) string {
	return fmt.Sprintf(
		"Please translate the following HTML content from %s to %s. "+
			"Keep the HTML structure and any existing %s text as is. "+
			"Only translate the %s text into %s. "+
			"Preserve all HTML tags, attributes, and formatting:\n\n%s",
		languageName(from), languageName(to), languageName(to), languageName(from), languageName(to), html)
}

// TranslateHTML translates the natural-language text in an HTML document while
// preserving its markup. from and to are language codes such as "zh" and "en".
func (e *Engine) TranslateHTML(ctx context.Context, html, from, to string) (string, error) {
	if e.apiKey == "" {
		return "", types.NewAppError(types.ErrCredentialMissing, "OpenAI API key is not configured", nil)
	}
	if strings.TrimSpace(html) == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "HTML content is empty", nil)
	}

	logger.Info("translating HTML content",
		logger.String("model", e.model),
		logger.String("from", from),
		logger.String("to", to),
		logger.Int("contentLength", len(html)))

	reqBody := ChatCompletionRequest{
		Model: e.model,
		Messages: []Message{
			{Role: "user", Content: buildHTMLPrompt(html, from, to)},
		},
		Temperature: DefaultTemperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		logger.Error("failed to marshal request body", err)
		return "", types.NewAppError(types.ErrInternal, "failed to marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		logger.Error("failed to create HTTP request", err)
		return "", types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		logger.Error("API request failed", err)
		return "", types.NewAppError(types.ErrServiceUnavailable, "API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("failed to read API response", err)
		return "", types.NewAppError(types.ErrServiceUnavailable, "failed to read API response", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error("API returned error status", nil, logger.Int("statusCode", resp.StatusCode))
		return "", handleAPIHTTPError(resp.StatusCode, body)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		logger.Error("failed to parse API response", err)
		return "", types.NewAppError(types.ErrService, "failed to parse API response", err)
	}

	if chatResp.Error != nil {
		logger.Error("API returned error in response", nil, logger.String("errorMessage", chatResp.Error.Message))
		return "", types.NewAppErrorWithDetails(types.ErrService, "API returned error", chatResp.Error.Message, nil)
	}

	if len(chatResp.Choices) == 0 {
		logger.Error("API returned no choices", nil)
		return "", types.NewAppError(types.ErrEmptyResponse, "API returned no choices", nil)
	}

	if chatResp.Choices[0].FinishReason == "length" {
		logger.Warn("translation output was truncated due to length limit",
			logger.Int("completionTokens", chatResp.Usage.CompletionTokens),
			logger.Int("inputLength", len(html)))
	}

	translated := stripHTMLFences(chatResp.Choices[0].Message.Content)
	if strings.TrimSpace(translated) == "" {
		return "", types.NewAppError(types.ErrEmptyResponse, "API returned empty translation", nil)
	}

	logger.Info("HTML translation complete",
		logger.Int("originalLength", len(html)),
		logger.Int("translatedLength", len(translated)),
		logger.Int("tokensUsed", chatResp.Usage.TotalTokens))
	return translated, nil
}

var htmlFenceRe = regexp.MustCompile("(?s)^```(?:html)?\\s*\\n(.*)\\n```\\s*$")

// stripHTMLFences removes a wrapping markdown code block if the model added one.
func stripHTMLFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if m := htmlFenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

// handleAPIHTTPError maps a chat completions HTTP error to an AppError.
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
		return types.NewAppErrorWithDetails(
			types.ErrCredentialMissing,
			"API authentication failed",
			"invalid API key or unauthorized access",
			nil,
		)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(
			types.ErrServiceUnavailable,
			"API rate limit exceeded",
			errorDetails,
			nil,
		)
	case http.StatusBadRequest:
		return types.NewAppErrorWithDetails(
			types.ErrService,
			"invalid API request",
			errorDetails,
			nil,
		)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(
			types.ErrServiceUnavailable,
			"API server error",
			fmt.Sprintf("status %d: %s", statusCode, errorDetails),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrService,
			"API returned unexpected status",
			fmt.Sprintf("status %d: %s", statusCode, errorDetails),
			nil,
		)
	}
}
