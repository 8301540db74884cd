// Package imagetrans translates text inside images through the Baidu picture
// translation service. The flow is two HTTP calls: an OAuth client-credentials
// token exchange, then a multipart upload of the image to the pictrans endpoint.
package imagetrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// DefaultTokenEndpoint is the Baidu OAuth token exchange endpoint.
	DefaultTokenEndpoint = "https://aip.baidubce.com/oauth/2.0/token"
	// DefaultTransEndpoint is the Baidu picture translation endpoint.
	DefaultTransEndpoint = "https://aip.baidubce.com/file/2.0/mt/pictrans/v1"

	// tokenTimeout bounds the token exchange call.
	tokenTimeout = 10 * time.Second
	// translateTimeout bounds the translation submission.
	translateTimeout = 30 * time.Second
)

// Request describes one image translation submission.
type Request struct {
	ImageData []byte
	From      string
	To        string
	// Paste requests a rendered image with translations pasted over the
	// original text regions.
	Paste bool
}

// Result is the parsed outcome of a successful translation.
type Result struct {
	From    string
	To      string
	Summary types.RegionSummary
	Regions []types.TranslatedRegion
	// PasteImage is the rendered translated image, nil when not requested
	// or not returned by the service.
	PasteImage []byte
}

// Client talks to the Baidu picture translation service.
type Client struct {
	apiKey        string
	secretKey     string
	tokenEndpoint string
	transEndpoint string
	httpClient    *http.Client
	accessToken   string
}

// NewClient creates a Client. Both credential halves are required.
func NewClient(apiKey, secretKey string) (*Client, error) {
	if apiKey == "" || secretKey == "" {
		return nil, types.NewAppError(types.ErrCredentialMissing,
			"Baidu translation credentials are not configured", nil)
	}
	return &Client{
		apiKey:        apiKey,
		secretKey:     secretKey,
		tokenEndpoint: DefaultTokenEndpoint,
		transEndpoint: DefaultTransEndpoint,
		httpClient:    &http.Client{},
	}, nil
}

// SetEndpoints overrides the service endpoints. Used by tests.
func (c *Client) SetEndpoints(tokenEndpoint, transEndpoint string) {
	c.tokenEndpoint = tokenEndpoint
	c.transEndpoint = transEndpoint
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// fetchAccessToken performs the client-credentials exchange and caches the token.
func (c *Client) fetchAccessToken(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", c.apiKey)
	q.Set("client_secret", c.secretKey)
	tokenURL := c.tokenEndpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, nil)
	if err != nil {
		return types.NewAppError(types.ErrTokenAcquisition, "failed to build token request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("token exchange request failed", err)
		return types.NewAppError(types.ErrTokenAcquisition, "token exchange request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(types.ErrTokenAcquisition, "failed to read token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.NewAppErrorWithDetails(types.ErrTokenAcquisition,
			"token exchange returned non-200 status",
			fmt.Sprintf("status=%d body=%s", resp.StatusCode, truncate(string(body), 200)), nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return types.NewAppError(types.ErrTokenAcquisition, "failed to parse token response", err)
	}
	if tr.AccessToken == "" {
		return types.NewAppErrorWithDetails(types.ErrTokenAcquisition,
			"token response did not contain an access token",
			tr.ErrorDescription, nil)
	}

	c.accessToken = tr.AccessToken
	logger.Info("access token acquired", logger.Int("tokenLength", len(tr.AccessToken)))
	return nil
}

// apiResponse mirrors the pictrans JSON envelope. ErrorCode is kept raw
// because the service has returned it as a number, a string, or omitted it
// entirely.
type apiResponse struct {
	ErrorCode json.RawMessage `json:"error_code"`
	ErrorMsg  string          `json:"error_msg"`
	Data      *apiData        `json:"data"`
}

type apiData struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	SumSrc   string       `json:"sumSrc"`
	SumDst   string       `json:"sumDst"`
	PasteImg string       `json:"pasteImg"`
	Content  []apiContent `json:"content"`
}

type apiContent struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Rect      string `json:"rect"`
	LineCount int    `json:"lineCount"`
}

// Translate submits the image and returns the parsed result. The access token
// is fetched once per client on first use and never refreshed; callers that
// need a fresh token construct a new client.
func (c *Client) Translate(ctx context.Context, req *Request) (*Result, error) {
	if len(req.ImageData) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "image data is empty", nil)
	}

	if c.accessToken == "" {
		if err := c.fetchAccessToken(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info("submitting image translation",
		logger.String("from", req.From),
		logger.String("to", req.To),
		logger.Bool("paste", req.Paste),
		logger.Int("imageBytes", len(req.ImageData)))

	resp, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.parseResponse(resp)
}

func (c *Client) submit(ctx context.Context, req *Request) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, translateTimeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "image.jpg")
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to build multipart body", err)
	}
	if _, err := part.Write(req.ImageData); err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to write image part", err)
	}

	paste := "0"
	if req.Paste {
		paste = "1"
	}
	fields := map[string]string{
		"from":  req.From,
		"to":    req.To,
		"v":     "3",
		"paste": paste,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, types.NewAppError(types.ErrInternal, "failed to write form field", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to finalize multipart body", err)
	}

	apiURL := c.transEndpoint + "?access_token=" + url.QueryEscape(c.accessToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &buf)
	if err != nil {
		return nil, types.NewAppError(types.ErrService, "failed to build translation request", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Error("translation request failed", err)
		return nil, types.NewAppError(types.ErrServiceUnavailable, "translation request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrService, "failed to read translation response", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, types.NewAppErrorWithDetails(types.ErrService,
			"translation service returned non-200 status",
			fmt.Sprintf("status=%d body=%s", httpResp.StatusCode, truncate(string(body), 200)), nil)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.NewAppError(types.ErrService, "failed to parse translation response", err)
	}
	return &resp, nil
}

func (c *Client) parseResponse(resp *apiResponse) (*Result, error) {
	if !isSuccess(resp.ErrorCode) {
		return nil, types.NewAppErrorWithDetails(types.ErrService,
			"translation service reported an error",
			fmt.Sprintf("code=%s msg=%s", string(resp.ErrorCode), resp.ErrorMsg), nil)
	}
	if resp.Data == nil {
		return nil, types.NewAppError(types.ErrNoData, "translation response contained no data", nil)
	}

	result := &Result{
		From: resp.Data.From,
		To:   resp.Data.To,
		Summary: types.RegionSummary{
			SourceText: resp.Data.SumSrc,
			TargetText: resp.Data.SumDst,
		},
	}

	for i, block := range resp.Data.Content {
		result.Regions = append(result.Regions, types.TranslatedRegion{
			SourceText:     block.Src,
			TranslatedText: block.Dst,
			BoundingBox:    parseRect(block.Rect),
			BlockIndex:     i,
		})
	}

	if resp.Data.PasteImg != "" {
		img, err := base64.StdEncoding.DecodeString(resp.Data.PasteImg)
		if err != nil {
			logger.Warn("pasted image payload is not valid base64", logger.Err(err))
		} else {
			result.PasteImage = img
		}
	}

	logger.Info("image translation complete",
		logger.String("direction", result.From+" -> "+result.To),
		logger.Int("blocks", len(result.Regions)),
		logger.Bool("hasPasteImage", result.PasteImage != nil))
	return result, nil
}

// isSuccess normalizes the service's inconsistent error_code field. An absent
// field, a zero number, the string "0", or the string "success" all count as
// success; anything else is a best-effort integer comparison against zero.
func isSuccess(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}

	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt == 0
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "0" || strings.EqualFold(asString, "success") {
			return true
		}
		n, err := strconv.Atoi(strings.TrimSpace(asString))
		return err == nil && n == 0
	}

	return false
}

// parseRect parses the "left top width height" rect string. Malformed input
// yields a zero rect rather than an error so one bad block cannot fail the
// whole response.
func parseRect(s string) types.Rect {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 4 {
		return types.Rect{}
	}

	vals := make([]int, 4)
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return types.Rect{}
		}
		vals[i] = n
	}
	return types.Rect{Left: vals[0], Top: vals[1], Width: vals[2], Height: vals[3]}
}

// NormalizeLang maps a BCP 47 language tag to the service's language code.
// "auto" passes through for source-language detection; unrecognized tags are
// returned lowercased as-is.
func NormalizeLang(code string) string {
	if code == "" || strings.EqualFold(code, "auto") {
		return "auto"
	}

	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()

	switch base.String() {
	case "ja":
		return "jp"
	case "ko":
		return "kor"
	case "fr":
		return "fra"
	case "es":
		return "spa"
	case "ar":
		return "ara"
	case "vi":
		return "vie"
	default:
		return base.String()
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
