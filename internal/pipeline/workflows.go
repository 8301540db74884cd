package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"doc-translator/internal/compiler"
	"doc-translator/internal/imagetrans"
	"doc-translator/internal/logger"
	"doc-translator/internal/snapshot"
	"doc-translator/internal/store"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
	"doc-translator/internal/vision"
)

// Transcriber turns a poster image into LaTeX source.
type Transcriber interface {
	TranscribePoster(ctx context.Context, imagePath string) (string, error)
}

// DocumentCompiler compiles LaTeX source into a PDF.
type DocumentCompiler interface {
	CompileSource(ctx context.Context, latex, texPath string) (*types.CompileResult, error)
}

// PosterWorkflow reconstructs a poster image as a compiled LaTeX document.
type PosterWorkflow struct {
	transcriber Transcriber
	compiler    DocumentCompiler
	artifacts   *store.Store
}

// NewPosterWorkflow wires the poster pipeline.
func NewPosterWorkflow(transcriber Transcriber, comp DocumentCompiler, artifacts *store.Store) *PosterWorkflow {
	return &PosterWorkflow{transcriber: transcriber, compiler: comp, artifacts: artifacts}
}

// Run transcribes the poster and compiles the result. An empty transcription
// fails the item before the compiler is ever invoked.
func (w *PosterWorkflow) Run(ctx context.Context, imagePath string) (*types.JobResult, error) {
	latex, err := w.transcriber.TranscribePoster(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	texPath := w.artifacts.AllocatePath(store.KindPosterOutput, "poster.tex")
	ReportStatus(ctx, types.StatusCompiling)
	compileResult, err := w.compiler.CompileSource(ctx, latex, texPath)
	if err != nil {
		return nil, err
	}

	return &types.JobResult{
		DocumentPath: compileResult.PDFPath,
		MarkupPath:   compileResult.TexPath,
	}, nil
}

// ImageTranslator performs one image translation call.
type ImageTranslator interface {
	Translate(ctx context.Context, req *imagetrans.Request) (*imagetrans.Result, error)
}

// ImageWorkflow translates text regions inside an image.
type ImageWorkflow struct {
	// newClient builds a fresh translator per item so a stale cached
	// token from one item cannot poison the next
	newClient func() (ImageTranslator, error)
	artifacts *store.Store
	from      string
	to        string
	paste     bool
}

// NewImageWorkflow wires the image translation pipeline.
func NewImageWorkflow(newClient func() (ImageTranslator, error), artifacts *store.Store, from, to string, paste bool) *ImageWorkflow {
	return &ImageWorkflow{
		newClient: newClient,
		artifacts: artifacts,
		from:      imagetrans.NormalizeLang(from),
		to:        imagetrans.NormalizeLang(to),
		paste:     paste,
	}
}

// allowedImageExtensions are the upload formats the translation service accepts.
var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tiff": true,
}

// Run submits the image for translation and persists the rendered result
// when the service returns one.
func (w *ImageWorkflow) Run(ctx context.Context, imagePath string) (*types.JobResult, error) {
	ext := strings.ToLower(filepath.Ext(imagePath))
	if !allowedImageExtensions[ext] {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"unsupported image format", ext, nil)
	}

	data, err := w.artifacts.ReadBytes(imagePath)
	if err != nil {
		if types.ErrorCategory(err) == types.ErrNotFound {
			return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
				"source image could not be read", imagePath, err)
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"image file is empty", imagePath, nil)
	}

	client, err := w.newClient()
	if err != nil {
		return nil, err
	}

	res, err := client.Translate(ctx, &imagetrans.Request{
		ImageData: data,
		From:      w.from,
		To:        w.to,
		Paste:     w.paste,
	})
	if err != nil {
		return nil, err
	}

	result := &types.JobResult{
		Regions: res.Regions,
		Summary: &res.Summary,
	}

	if len(res.PasteImage) > 0 {
		outPath := w.artifacts.AllocatePath(store.KindImageTransOutput, "translated_image.jpg")
		if err := w.artifacts.WriteBytes(outPath, res.PasteImage); err != nil {
			return nil, err
		}
		result.ImagePath = outPath
	} else if w.paste {
		logger.Warn("translation result did not include a rendered image",
			logger.String("image", imagePath))
	}

	return result, nil
}

// PageExporter captures web pages as PDFs.
type PageExporter interface {
	ExportProxyTranslated(ctx context.Context, pageURL, sourceLang, pdfPath string) (*snapshot.ExportResult, error)
	CaptureOriginal(ctx context.Context, pageURL, htmlPath, pdfPath string) (*snapshot.ExportResult, error)
	ExportLocalHTML(ctx context.Context, htmlPath, pdfPath string) (*snapshot.ExportResult, error)
}

// HTMLTranslator translates an HTML document's text.
type HTMLTranslator interface {
	TranslateHTML(ctx context.Context, html, from, to string) (string, error)
}

// SnapshotWorkflow renders a page through the Google Translate proxy and
// exports the translated rendering as a PDF.
type SnapshotWorkflow struct {
	exporter   PageExporter
	artifacts  *store.Store
	sourceLang string
}

// NewSnapshotWorkflow wires the proxy-translation snapshot pipeline.
func NewSnapshotWorkflow(exporter PageExporter, artifacts *store.Store, sourceLang string) *SnapshotWorkflow {
	return &SnapshotWorkflow{exporter: exporter, artifacts: artifacts, sourceLang: sourceLang}
}

// Run exports the proxy-translated page.
func (w *SnapshotWorkflow) Run(ctx context.Context, pageURL string) (*types.JobResult, error) {
	pageURL = snapshot.NormalizeURL(pageURL)
	pdfPath := w.artifacts.AllocatePath(store.KindWebTransOutput,
		snapshot.SanitizeURLToName(pageURL)+".pdf")

	res, err := w.exporter.ExportProxyTranslated(ctx, pageURL, w.sourceLang, pdfPath)
	if err != nil {
		return nil, err
	}

	logger.Info("snapshot exported",
		logger.String("title", res.Title),
		logger.Int("pages", res.PageCount))
	return &types.JobResult{DocumentPath: res.PDFPath}, nil
}

// TextWorkflow captures a page, translates its HTML with a language model,
// and renders the translated document as a PDF.
type TextWorkflow struct {
	exporter   PageExporter
	translator HTMLTranslator
	artifacts  *store.Store
	from       string
	to         string
}

// NewTextWorkflow wires the GPT-based page translation pipeline.
func NewTextWorkflow(exporter PageExporter, translator HTMLTranslator, artifacts *store.Store, from, to string) *TextWorkflow {
	return &TextWorkflow{
		exporter:   exporter,
		translator: translator,
		artifacts:  artifacts,
		from:       from,
		to:         to,
	}
}

// Run captures the original page, translates the pruned HTML, and exports the
// translated document. All files for one page live in a directory derived
// from its URL; a translated document already present there is reused instead
// of translating again.
func (w *TextWorkflow) Run(ctx context.Context, pageURL string) (*types.JobResult, error) {
	pageURL = snapshot.NormalizeURL(pageURL)

	pageDir, err := w.artifacts.Subdir(store.KindWebTransOutput, snapshot.SanitizeURLToName(pageURL))
	if err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(pageDir, "index.html")
	translatedPath := filepath.Join(pageDir, "index_translated.html")
	pdfPath := filepath.Join(pageDir, "translated.pdf")

	skipped := w.artifacts.Exists(translatedPath)
	if skipped {
		logger.Info("translated page already exists, reusing it",
			logger.String("path", translatedPath))
	} else {
		capture, err := w.exporter.CaptureOriginal(ctx, pageURL, htmlPath,
			filepath.Join(pageDir, "original.pdf"))
		if err != nil {
			return nil, err
		}

		raw, err := w.artifacts.ReadBytes(capture.HTMLPath)
		if err != nil {
			return nil, err
		}

		pruned, title, err := snapshot.PruneHTML(string(raw))
		if err != nil {
			return nil, err
		}
		logger.Info("page captured",
			logger.String("title", title),
			logger.Int("htmlBytes", len(pruned)))

		translated, err := w.translator.TranslateHTML(ctx, pruned, w.from, w.to)
		if err != nil {
			return nil, err
		}
		if err := w.artifacts.WriteBytes(translatedPath, []byte(translated)); err != nil {
			return nil, err
		}
	}

	exported, err := w.exporter.ExportLocalHTML(ctx, translatedPath, pdfPath)
	if err != nil {
		return nil, err
	}

	return &types.JobResult{
		DocumentPath: exported.PDFPath,
		HTMLPath:     translatedPath,
		Skipped:      skipped,
	}, nil
}

var (
	_ Transcriber      = (*vision.Transcriber)(nil)
	_ DocumentCompiler = (*compiler.Compiler)(nil)
	_ ImageTranslator  = (*imagetrans.Client)(nil)
	_ PageExporter     = (*snapshot.Snapshotter)(nil)
	_ HTMLTranslator   = (*translator.Engine)(nil)
)
