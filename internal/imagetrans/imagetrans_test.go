package imagetrans

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"doc-translator/internal/types"
)

func newTokenServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Token request method = %s, want POST", r.Method)
		}
		q := r.URL.Query()
		if q.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", q.Get("grant_type"))
		}
		if q.Get("client_id") == "" || q.Get("client_secret") == "" {
			t.Error("Token request missing client credentials")
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": token})
	}))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	for _, tt := range []struct{ api, secret string }{
		{"", ""},
		{"key", ""},
		{"", "secret"},
	} {
		_, err := NewClient(tt.api, tt.secret)
		if err == nil {
			t.Errorf("NewClient(%q, %q) should fail", tt.api, tt.secret)
		}
		if got := types.ErrorCategory(err); got != types.ErrCredentialMissing {
			t.Errorf("Error category = %v, want CREDENTIAL_MISSING", got)
		}
	}
}

func TestTranslateFullFlow(t *testing.T) {
	tokenSrv := newTokenServer(t, "tok-123")
	defer tokenSrv.Close()

	pasted := base64.StdEncoding.EncodeToString([]byte("translated-jpeg"))
	transSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "tok-123" {
			t.Errorf("access_token = %q, want tok-123", got)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("v"); got != "3" {
			t.Errorf("v = %q, want 3", got)
		}
		if got := r.FormValue("paste"); got != "1" {
			t.Errorf("paste = %q, want 1", got)
		}
		if got := r.FormValue("from"); got != "en" {
			t.Errorf("from = %q, want en", got)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("Missing image part: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"error_code": 0,
			"data": map[string]interface{}{
				"from":     "en",
				"to":       "zh",
				"sumSrc":   "Hello world",
				"sumDst":   "你好世界",
				"pasteImg": pasted,
				"content": []map[string]interface{}{
					{"src": "Hello", "dst": "你好", "rect": "10 20 100 30", "lineCount": 1},
					{"src": "world", "dst": "世界", "rect": "not a rect", "lineCount": 1},
				},
			},
		})
	}))
	defer transSrv.Close()

	client, err := NewClient("api-key", "secret-key")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.SetEndpoints(tokenSrv.URL, transSrv.URL)

	result, err := client.Translate(context.Background(), &Request{
		ImageData: []byte("fake-jpeg-bytes"),
		From:      "en",
		To:        "zh",
		Paste:     true,
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if result.From != "en" || result.To != "zh" {
		t.Errorf("Direction = %s -> %s, want en -> zh", result.From, result.To)
	}
	if result.Summary.SourceText != "Hello world" || result.Summary.TargetText != "你好世界" {
		t.Errorf("Unexpected summary: %+v", result.Summary)
	}
	if len(result.Regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(result.Regions))
	}

	first := result.Regions[0]
	if first.BoundingBox != (types.Rect{Left: 10, Top: 20, Width: 100, Height: 30}) {
		t.Errorf("Unexpected bounding box: %+v", first.BoundingBox)
	}
	if first.BlockIndex != 0 {
		t.Errorf("BlockIndex = %d, want 0", first.BlockIndex)
	}
	// Malformed rect falls back to the zero rect, block is still kept
	if result.Regions[1].BoundingBox != (types.Rect{}) {
		t.Errorf("Malformed rect should parse as zero rect, got %+v", result.Regions[1].BoundingBox)
	}

	if string(result.PasteImage) != "translated-jpeg" {
		t.Errorf("PasteImage = %q, want decoded jpeg bytes", result.PasteImage)
	}
}

func TestTranslateServiceError(t *testing.T) {
	tokenSrv := newTokenServer(t, "tok")
	defer tokenSrv.Close()

	transSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error_code": "52003",
			"error_msg":  "UNAUTHORIZED USER",
		})
	}))
	defer transSrv.Close()

	client, _ := NewClient("k", "s")
	client.SetEndpoints(tokenSrv.URL, transSrv.URL)

	_, err := client.Translate(context.Background(), &Request{ImageData: []byte("img"), From: "en", To: "zh"})
	if err == nil {
		t.Fatal("Expected error for an error_code response")
	}
	if got := types.ErrorCategory(err); got != types.ErrService {
		t.Errorf("Error category = %v, want SERVICE_ERROR", got)
	}
}

func TestTranslateNoData(t *testing.T) {
	tokenSrv := newTokenServer(t, "tok")
	defer tokenSrv.Close()

	transSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"error_code": 0})
	}))
	defer transSrv.Close()

	client, _ := NewClient("k", "s")
	client.SetEndpoints(tokenSrv.URL, transSrv.URL)

	_, err := client.Translate(context.Background(), &Request{ImageData: []byte("img"), From: "en", To: "zh"})
	if got := types.ErrorCategory(err); got != types.ErrNoData {
		t.Errorf("Error category = %v, want NO_DATA", got)
	}
}

func TestTranslateTokenFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "unknown client id",
		})
	}))
	defer tokenSrv.Close()

	client, _ := NewClient("k", "s")
	client.SetEndpoints(tokenSrv.URL, "http://unused.invalid")

	_, err := client.Translate(context.Background(), &Request{ImageData: []byte("img"), From: "en", To: "zh"})
	if got := types.ErrorCategory(err); got != types.ErrTokenAcquisition {
		t.Errorf("Error category = %v, want TOKEN_ACQUISITION_FAILED", got)
	}
}

func TestTranslateEmptyImage(t *testing.T) {
	client, _ := NewClient("k", "s")
	_, err := client.Translate(context.Background(), &Request{From: "en", To: "zh"})
	if got := types.ErrorCategory(err); got != types.ErrInvalidInput {
		t.Errorf("Error category = %v, want INVALID_INPUT", got)
	}
}

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"absent", "", true},
		{"null", "null", true},
		{"int zero", "0", true},
		{"int nonzero", "52003", false},
		{"string zero", `"0"`, true},
		{"string success", `"success"`, true},
		{"string SUCCESS", `"SUCCESS"`, true},
		{"string nonzero", `"52003"`, false},
		{"string padded zero", `" 0 "`, true},
		{"string garbage", `"oops"`, false},
		{"object", `{"x":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			if got := isSuccess(raw); got != tt.want {
				t.Errorf("isSuccess(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseRect(t *testing.T) {
	tests := []struct {
		in   string
		want types.Rect
	}{
		{"10 20 30 40", types.Rect{Left: 10, Top: 20, Width: 30, Height: 40}},
		{"  5 6 7 8  ", types.Rect{Left: 5, Top: 6, Width: 7, Height: 8}},
		{"1 2 3", types.Rect{}},
		{"a b c d", types.Rect{}},
		{"", types.Rect{}},
		{"10 20 30 40 50", types.Rect{Left: 10, Top: 20, Width: 30, Height: 40}},
	}
	for _, tt := range tests {
		if got := parseRect(tt.in); got != tt.want {
			t.Errorf("parseRect(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"en-US", "en"},
		{"zh-CN", "zh"},
		{"ja", "jp"},
		{"ko-KR", "kor"},
		{"fr", "fra"},
		{"es-MX", "spa"},
		{"auto", "auto"},
		{"", "auto"},
		{"not-a-lang!", "not-a-lang!"},
	}
	for _, tt := range tests {
		if got := NormalizeLang(tt.in); got != tt.want {
			t.Errorf("NormalizeLang(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
