// Package compiler turns LaTeX source into verified PDF documents using pdflatex.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	ledongthucpdf "github.com/ledongthuc/pdf"
	pdfcpuapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// DefaultTimeout bounds a single pdflatex invocation
	DefaultTimeout = 60 * time.Second
	// MaxAttempts is the compile attempt budget; the second attempt only
	// runs after missing packages were auto-installed
	MaxAttempts = 2
	// installTimeout bounds a single package installation
	installTimeout = 30 * time.Second
)

// auxExtensions are the build byproducts removed before each compilation.
var auxExtensions = []string{"aux", "log", "out", "toc", "nav", "snm", "fdb_latexmk", "fls"}

// miktexUpdateKeywords mark compile failures caused by a stale MiKTeX
// installation that no retry can fix.
var miktexUpdateKeywords = []string{
	"you have not checked for miktex updates",
	"miktex update required",
	"miktex console",
	"check for updates",
}

// missingPackagePatterns extract package names from pdflatex output.
var missingPackagePatterns = []*regexp.Regexp{
	regexp.MustCompile("File `([^']+\\.sty)' not found"),
	regexp.MustCompile("LaTeX Error: File `([^']+)' not found"),
	regexp.MustCompile(`! Package (\w+) Error`),
}

// Compiler compiles LaTeX documents with pdflatex and verifies the output PDF.
type Compiler struct {
	pdflatexPath string
	timeout      time.Duration
	// installPackages enables the MiKTeX mpm auto-install path for
	// missing-package failures
	installPackages bool
	// cleanupAux removes auxiliary files after a successful compile
	cleanupAux bool
}

// NewCompiler creates a Compiler. An empty pdflatexPath means "pdflatex" on PATH.
func NewCompiler(pdflatexPath string) *Compiler {
	if pdflatexPath == "" {
		pdflatexPath = "pdflatex"
	}
	return &Compiler{
		pdflatexPath:    pdflatexPath,
		timeout:         DefaultTimeout,
		installPackages: true,
	}
}

// SetTimeout overrides the per-invocation timeout.
func (c *Compiler) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SetInstallPackages toggles automatic installation of missing packages.
func (c *Compiler) SetInstallPackages(enabled bool) {
	c.installPackages = enabled
}

// SetCleanupAux toggles removal of auxiliary files after a successful
// compile. The PDF and the source are never removed.
func (c *Compiler) SetCleanupAux(enabled bool) {
	c.cleanupAux = enabled
}

// CompileSource writes latex to texPath and compiles it.
func (c *Compiler) CompileSource(ctx context.Context, latex, texPath string) (*types.CompileResult, error) {
	if strings.TrimSpace(latex) == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "LaTeX source is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(texPath), 0755); err != nil {
		return nil, types.NewAppError(types.ErrStorageUnavailable, "failed to create output directory", err)
	}
	if err := os.WriteFile(texPath, []byte(latex), 0644); err != nil {
		return nil, types.NewAppError(types.ErrStorageUnavailable, "failed to write LaTeX source", err)
	}
	return c.Compile(ctx, texPath)
}

// Compile runs pdflatex on texPath. A failure the auto-installer might fix
// (missing package) earns exactly one more attempt; everything else fails
// immediately. Success requires both a zero exit status and an output PDF
// that passes validation.
func (c *Compiler) Compile(ctx context.Context, texPath string) (*types.CompileResult, error) {
	if _, err := os.Stat(texPath); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrNotFound, "LaTeX source not found", texPath, err)
	}

	texDir := filepath.Dir(texPath)
	texBase := filepath.Base(texPath)
	baseName := strings.TrimSuffix(texPath, ".tex")
	pdfPath := baseName + ".pdf"

	c.cleanAuxFiles(baseName)

	result := &types.CompileResult{
		TexPath: texPath,
		PDFPath: pdfPath,
	}

	logger.Info("compiling LaTeX document",
		logger.String("tex", texPath),
		logger.String("pdflatex", c.pdflatexPath))

	var compileLog string
	var runErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		result.Attempts = attempt
		logger.Info("compile attempt",
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", MaxAttempts))

		compileLog, runErr = c.runPdflatex(ctx, texDir, texBase)
		result.Log = compileLog
		if runErr == nil {
			break
		}

		if appErr, ok := runErr.(*types.AppError); ok && appErr.Code == types.ErrCompileFailed {
			// Timeout, not a diagnosable LaTeX error
			result.ErrorMsg = appErr.Message
			return result, runErr
		}

		analysis := analyzeCompileLog(compileLog)

		if analysis.miktexUpdate {
			msg := "MiKTeX installation requires updates before compilation can proceed"
			result.ErrorMsg = msg
			result.Diagnostics = append(result.Diagnostics, tailOf(compileLog, 500))
			return result, types.NewAppErrorWithDetails(types.ErrCompileFailed, msg,
				"open MiKTeX Console, install all updates, then retry", nil)
		}

		if len(analysis.missingPackages) > 0 && attempt < MaxAttempts && c.installPackages {
			logger.Warn("missing LaTeX packages detected",
				logger.String("packages", strings.Join(analysis.missingPackages, ", ")))
			c.installMissingPackages(ctx, analysis.missingPackages)
			continue
		}

		result.ErrorMsg = fmt.Sprintf("pdflatex failed: %v", runErr)
		result.Diagnostics = c.collectDiagnostics(compileLog, baseName+".log")
		return result, types.NewAppErrorWithDetails(types.ErrCompileFailed,
			"LaTeX compilation failed", tailOf(compileLog, 1000), runErr)
	}

	if runErr != nil {
		result.ErrorMsg = fmt.Sprintf("pdflatex failed after %d attempts: %v", result.Attempts, runErr)
		result.Diagnostics = c.collectDiagnostics(compileLog, baseName+".log")
		return result, types.NewAppErrorWithDetails(types.ErrCompileFailed,
			"LaTeX compilation failed", tailOf(compileLog, 1000), runErr)
	}

	if _, err := os.Stat(pdfPath); err != nil {
		result.ErrorMsg = "compiler exited successfully but produced no PDF"
		return result, types.NewAppErrorWithDetails(types.ErrCompileFailed, result.ErrorMsg, pdfPath, err)
	}

	pageCount, err := c.verifyPDF(pdfPath)
	if err != nil {
		result.ErrorMsg = "output PDF failed validation"
		return result, err
	}

	if c.cleanupAux {
		c.cleanAuxFiles(baseName)
	}

	result.Success = true
	result.PageCount = pageCount
	logger.Info("compilation succeeded",
		logger.String("pdf", pdfPath),
		logger.Int("pages", pageCount),
		logger.Int("attempts", result.Attempts))
	return result, nil
}

func (c *Compiler) runPdflatex(ctx context.Context, texDir, texBase string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.pdflatexPath, "-interaction=nonstopmode", "-halt-on-error", texBase)
	cmd.Dir = texDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	log := combineOutput(stdout.String(), stderr.String())

	if ctx.Err() == context.DeadlineExceeded {
		return log, types.NewAppError(types.ErrCompileFailed, "compilation timed out", ctx.Err())
	}
	return log, err
}

func combineOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	return stdout + "\n" + stderr
}

func (c *Compiler) cleanAuxFiles(baseName string) {
	for _, ext := range auxExtensions {
		auxFile := baseName + "." + ext
		if err := os.Remove(auxFile); err == nil {
			logger.Debug("removed stale auxiliary file", logger.String("file", auxFile))
		}
	}
}

type logAnalysis struct {
	miktexUpdate    bool
	missingPackages []string
}

// analyzeCompileLog classifies a failed compile's output.
func analyzeCompileLog(log string) logAnalysis {
	var analysis logAnalysis
	lower := strings.ToLower(log)

	for _, keyword := range miktexUpdateKeywords {
		if strings.Contains(lower, keyword) {
			analysis.miktexUpdate = true
			break
		}
	}

	seen := make(map[string]bool)
	for _, pattern := range missingPackagePatterns {
		for _, match := range pattern.FindAllStringSubmatch(log, -1) {
			name := strings.TrimSuffix(match[1], ".sty")
			if name != "" && !seen[name] {
				seen[name] = true
				analysis.missingPackages = append(analysis.missingPackages, name)
			}
		}
	}
	return analysis
}

// installMissingPackages invokes the MiKTeX package manager per package.
// Installation failures are logged and ignored; the retry compile decides.
func (c *Compiler) installMissingPackages(ctx context.Context, packages []string) {
	for _, pkg := range packages {
		installCtx, cancel := context.WithTimeout(ctx, installTimeout)
		cmd := exec.CommandContext(installCtx, "mpm", "--install", pkg)
		if err := cmd.Run(); err != nil {
			logger.Warn("package installation failed",
				logger.String("package", pkg), logger.Err(err))
		} else {
			logger.Info("package installed", logger.String("package", pkg))
		}
		cancel()
	}
}

// collectDiagnostics gathers the tail of the compile output plus any error
// lines found in the .log file pdflatex left behind.
func (c *Compiler) collectDiagnostics(compileLog, logPath string) []string {
	diagnostics := []string{tailOf(compileLog, 1000)}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return diagnostics
	}

	var errorLines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(strings.ToLower(line), "error") || strings.Contains(line, "!") {
			errorLines = append(errorLines, line)
		}
	}
	if len(errorLines) > 10 {
		errorLines = errorLines[len(errorLines)-10:]
	}
	diagnostics = append(diagnostics, errorLines...)
	return diagnostics
}

func tailOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// verifyPDF validates the produced document and returns its page count.
// pdfcpu does the structural validation; if its page counting fails, a
// second reader takes over before the document is declared unreadable.
func (c *Compiler) verifyPDF(pdfPath string) (int, error) {
	conf := model.NewDefaultConfiguration()
	if err := pdfcpuapi.ValidateFile(pdfPath, conf); err != nil {
		logger.Error("PDF validation failed", err, logger.String("pdf", pdfPath))
		return 0, types.NewAppErrorWithDetails(types.ErrCompileFailed,
			"produced PDF is not valid", pdfPath, err)
	}

	if pdfCtx, err := pdfcpuapi.ReadContextFile(pdfPath); err == nil {
		return pdfCtx.PageCount, nil
	}

	f, reader, err := ledongthucpdf.Open(pdfPath)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrCompileFailed,
			"produced PDF could not be read", pdfPath, err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}
