package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"doc-translator/internal/types"
)

func chatResponse(content, finishReason string) map[string]interface{} {
	return map[string]interface{}{
		"id":    "chatcmpl-test",
		"model": "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

func TestTranslateHTML(t *testing.T) {
	const input = `<html><body><p>你好世界</p></body></html>`
	const output = `<html><body><p>Hello world</p></body></html>`

	var gotReq ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse(output, "stop"))
	}))
	defer srv.Close()

	engine := NewEngine("sk-test")
	engine.SetAPIURL(srv.URL)

	got, err := engine.TranslateHTML(context.Background(), input, "zh", "en")
	if err != nil {
		t.Fatalf("TranslateHTML failed: %v", err)
	}
	if got != output {
		t.Errorf("TranslateHTML = %q, want %q", got, output)
	}

	if gotReq.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", gotReq.Model, DefaultModel)
	}
	if gotReq.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", gotReq.Temperature, DefaultTemperature)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("Unexpected messages: %+v", gotReq.Messages)
	}
	prompt := gotReq.Messages[0].Content
	if !strings.Contains(prompt, "from Chinese to English") {
		t.Errorf("Prompt missing translation direction: %q", prompt)
	}
	if !strings.Contains(prompt, input) {
		t.Error("Prompt does not embed the HTML content")
	}
}

func TestTranslateHTMLStripsFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse("```html\n<p>Hello</p>\n```", "stop"))
	}))
	defer srv.Close()

	engine := NewEngine("sk-test")
	engine.SetAPIURL(srv.URL)

	got, err := engine.TranslateHTML(context.Background(), "<p>你好</p>", "zh", "en")
	if err != nil {
		t.Fatalf("TranslateHTML failed: %v", err)
	}
	if got != "<p>Hello</p>" {
		t.Errorf("TranslateHTML = %q, want fences stripped", got)
	}
}

func TestTranslateHTMLErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		wantCode types.ErrorCode
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     map[string]interface{}{"error": map[string]string{"message": "bad key"}},
			wantCode: types.ErrCredentialMissing,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     map[string]interface{}{"error": map[string]string{"message": "slow down"}},
			wantCode: types.ErrServiceUnavailable,
		},
		{
			name:     "bad request",
			status:   http.StatusBadRequest,
			body:     map[string]interface{}{"error": map[string]string{"message": "bad input"}},
			wantCode: types.ErrService,
		},
		{
			name:     "server error",
			status:   http.StatusBadGateway,
			body:     map[string]interface{}{},
			wantCode: types.ErrServiceUnavailable,
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			body:     map[string]interface{}{"choices": []interface{}{}},
			wantCode: types.ErrEmptyResponse,
		},
		{
			name:     "empty content",
			status:   http.StatusOK,
			body:     chatResponse("   ", "stop"),
			wantCode: types.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			engine := NewEngine("sk-test")
			engine.SetAPIURL(srv.URL)

			_, err := engine.TranslateHTML(context.Background(), "<p>hi</p>", "zh", "en")
			if err == nil {
				t.Fatal("Expected an error")
			}
			if got := types.ErrorCategory(err); got != tt.wantCode {
				t.Errorf("Error category = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestTranslateHTMLMissingKey(t *testing.T) {
	engine := NewEngine("")
	_, err := engine.TranslateHTML(context.Background(), "<p>hi</p>", "zh", "en")
	if got := types.ErrorCategory(err); got != types.ErrCredentialMissing {
		t.Errorf("Error category = %v, want CREDENTIAL_MISSING", got)
	}
}

func TestTranslateHTMLEmptyInput(t *testing.T) {
	engine := NewEngine("sk-test")
	_, err := engine.TranslateHTML(context.Background(), "  \n ", "zh", "en")
	if got := types.ErrorCategory(err); got != types.ErrInvalidInput {
		t.Errorf("Error category = %v, want INVALID_INPUT", got)
	}
}

func TestNormalizeAPIURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/chat/completions", "https://api.openai.com/v1/chat/completions"},
		{"https://proxy.example.com", "https://proxy.example.com/chat/completions"},
	}
	for _, tt := range tests {
		if got := normalizeAPIURL(tt.in); got != tt.want {
			t.Errorf("normalizeAPIURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"zh", "Chinese"},
		{"zh-CN", "Chinese"},
		{"en", "English"},
		{"ja", "Japanese"},
		{"xx", "xx"},
	}
	for _, tt := range tests {
		if got := languageName(tt.code); got != tt.want {
			t.Errorf("languageName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
