// Package vision transcribes poster images into self-contained LaTeX documents
// using a multimodal chat model.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// SystemPrompt frames the model as a LaTeX layout generator.
const SystemPrompt = "You are a helpful assistant that outputs complete LaTeX code for poster layout recreation."

// DefaultPosterPrompt instructs the model to reproduce a poster as a single
// self-contained LaTeX file.
const DefaultPosterPrompt = `
Upload a poster image and generate "directly compilable LaTeX code" that faithfully reproduces the layout of the poster, including all poster information. The requirements are as follows:

Layout Reproduction:
Analyze each image individually and accurately reproduce its geometric layout and content distribution. Do not omit any poster information. For guest photos, preserve the original geometric structure (e.g., horizontal row, triangular layout, etc.) by using rectangular boxes as placeholders with the word "Photo" centered inside. Ensure that each photo placeholder is immediately followed by the corresponding guest's name and title (and any additional provided information) in a clearly arranged manner. Arrange these photo blocks in a visually balanced way, ensuring minimal but sufficient spacing.

Text and Typography:
Translate all content into English, including the title, event time, agenda table, guest information, and placeholder descriptions. The title's font size should be slightly larger than the body text to maintain visual hierarchy (use \large or \Large, but not \huge or \Huge). Keep the overall layout compact by avoiding excessive vertical skips. Bold guest names and titles moderately. The body text and agenda table must remain clear and easy to read.

Complete Page Layout:
Ensure that all content fits within the page boundaries without overflowing. Keep margins and line spacing balanced so that the final design is neither too cramped nor too sparse. Avoid large empty spaces and big gaps between sections. Ensure the poster retains a single-page layout if possible.

Image and Text Alignment:
Ensure that guest photos and their corresponding names/titles are strictly aligned. Even if some guest descriptions are longer, maintain a neat and well-aligned overall appearance.

Table Formatting:
Use reasonable column widths and clear lines for the agenda table. To avoid odd line breaks, you can use packages such as tabularx or array if needed. All table content must be in English, with accurate times and topics. Avoid splitting rows across lines and ensure consistent horizontal and vertical alignment.

Additional Table Formatting Precautions:
When formatting tables, ensure that multi-line content within any table cell is enclosed in braces (e.g., { ... }) or placed inside a minipage. This prevents the line break command (\\) used within a cell from being mistaken as the end of a row, avoiding extra alignment tab errors.

Placeholder Consistency:
Use rectangular boxes for guest photos, with the word "Photo" centered inside, and if a QR code is present, use a rectangular box labeled "QR Code" centered inside. Absolutely do not use "Image" or any other text label for these placeholders. Each placeholder must read "Photo" to indicate a person's picture. Keep placeholders sized appropriately so they align well with the text.

Strict No-External-Files Policy:
The generated LaTeX code must be 100% self-contained. It must NOT under any circumstances reference external files.
- Absolutely forbid the use of the \includegraphics command.
- All visual elements, including placeholders for photos and QR codes, must be drawn using native LaTeX commands.
- For a photo placeholder, you MUST use a '\fbox' or '\framebox' containing the word "Photo". For example: '\fbox{\parbox[c][1.5cm][c]{2.5cm}{\centering Photo}}'. Do not use any other method.
- The final output must compile without needing any external image files like .jpg, .png, etc. The entire PDF must be generated from this single .tex file alone.

Special Character Escaping:
Ensure that all special characters, especially the ampersand (&) within any text, are properly escaped (for example, replace any "&" with "\&") so that the generated LaTeX code compiles without errors.

Style Restrictions:
Do not use any color commands (such as \textcolor, \color, or \usepackage{xcolor}) in the generated LaTeX code. Additionally, do not use the commands \huge or \Huge anywhere in the code; if emphasis is needed, only use \large or \Large. This is to ensure the layout remains compact, elegant, and adheres strictly to the design guidelines.

Only return the raw LaTeX code. Do not enclose it in triple backticks, markdown, or any additional formatting. The output should start with \documentclass and end with \end{document} exactly, with no extra characters or quotes.

Output Requirement:
Output complete LaTeX source code that the user can compile directly without any modifications. The layout must be compact and aesthetically pleasing, while also exuding a sense of grandeur and elegance. Ensure refined margins, minimal whitespace, and balanced spacing so that the final design is both tight and visually imposing.
`

// ImageReader abstracts artifact access for transcription input.
type ImageReader interface {
	ReadBytes(path string) ([]byte, error)
}

// Transcriber converts poster images into LaTeX source via a multimodal model.
type Transcriber struct {
	chatModel model.BaseChatModel
	reader    ImageReader
	prompt    string
}

// Config holds the settings needed to build a Transcriber.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Prompt  string
	Reader  ImageReader
}

// NewTranscriber creates a Transcriber backed by an OpenAI-compatible chat model.
func NewTranscriber(ctx context.Context, cfg *Config) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppError(types.ErrCredentialMissing, "OpenAI API key is not configured", nil)
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrService, "failed to create chat model", err)
	}

	return NewTranscriberWithModel(chatModel, cfg.Reader, cfg.Prompt), nil
}

// NewTranscriberWithModel creates a Transcriber with a pre-built chat model.
func NewTranscriberWithModel(chatModel model.BaseChatModel, reader ImageReader, prompt string) *Transcriber {
	if prompt == "" {
		prompt = DefaultPosterPrompt
	}
	return &Transcriber{
		chatModel: chatModel,
		reader:    reader,
		prompt:    prompt,
	}
}

// TranscribePoster sends the poster image to the model and returns the
// extracted LaTeX source. An empty or markup-free model reply yields
// EMPTY_RESPONSE so callers can fail the job without invoking the compiler.
func (t *Transcriber) TranscribePoster(ctx context.Context, imagePath string) (string, error) {
	data, err := t.reader.ReadBytes(imagePath)
	if err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeTypeFor(imagePath), base64.StdEncoding.EncodeToString(data))

	logger.Info("transcribing poster image",
		logger.String("image", imagePath),
		logger.Int("bytes", len(data)))

	messages := []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage(t.prompt),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type:     schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{URL: dataURL},
				},
			},
		},
	}

	response, err := t.chatModel.Generate(ctx, messages)
	if err != nil {
		logger.Error("poster transcription request failed", err, logger.String("image", imagePath))
		return "", types.NewAppError(types.ErrService, "poster transcription request failed", err)
	}

	latex := ExtractLaTeX(response.Content)
	if latex == "" {
		logger.Warn("model returned no usable markup", logger.String("image", imagePath))
		return "", types.NewAppError(types.ErrEmptyResponse, "model returned no usable LaTeX markup", nil)
	}

	logger.Info("poster transcription complete",
		logger.String("image", imagePath),
		logger.Int("markupLength", len(latex)))
	return latex, nil
}

var (
	fenceOpenRe  = regexp.MustCompile("(?m)^```(latex)?\\s*")
	fenceCloseRe = regexp.MustCompile("(?m)```\\s*$")
)

// ExtractLaTeX strips markdown code fences from a model reply and returns the
// span from \documentclass through \end{document}. When no \documentclass is
// present the whole de-fenced reply is returned as-is; when \end{document} is
// missing the span runs to the end of the text. Verbose replies degrade to
// usable markup instead of an empty result.
func ExtractLaTeX(raw string) string {
	cleaned := fenceOpenRe.ReplaceAllString(raw, "")
	cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, `\documentclass`)
	if start < 0 {
		return cleaned
	}
	const endMarker = `\end{document}`
	end := strings.LastIndex(cleaned, endMarker)
	if end < start {
		return cleaned[start:]
	}
	return cleaned[start : end+len(endMarker)]
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/png"
	}
}
