// Package snapshot drives a headless Chrome instance to capture web pages as
// PDF documents, either through the Google Translate proxy or by translating
// the saved HTML locally and re-rendering it.
package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	pdfcpuapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// paperWidthInches and paperHeightInches approximate A4
	paperWidthInches  = 8.27
	paperHeightInches = 11.7

	// normalScale is the print scale for locally rendered pages
	normalScale = 0.9
	// proxyScale compensates for the translate proxy's wider layout
	proxyScale = 0.7

	// normalMarginInches is the print margin for locally rendered pages
	normalMarginInches = 0.4
	// proxyMarginInches keeps the proxy output tight
	proxyMarginInches = 0.05

	// DefaultNavigationTimeout bounds page navigation
	DefaultNavigationTimeout = 60 * time.Second
	// DefaultSettleWait lets dynamic content finish rendering after navigation
	DefaultSettleWait = 5 * time.Second
	// MaxExportRetries is the print attempt budget per page
	MaxExportRetries = 3
	// exportRetryDelay spaces out print attempts
	exportRetryDelay = 2 * time.Second
)

// hideToolbarJS removes the Google Translate navigation frame and hides the
// residual translate widgets before printing.
const hideToolbarJS = `
(function() {
	var nv = document.getElementById('gt-nvframe');
	if (nv) { nv.remove(); }
	var css = document.createElement('style');
	css.type = 'text/css';
	css.innerHTML = '.goog-te-gadget, .goog-te-gadget-simple, #goog-gt-tt { display: none !important; }';
	document.head.appendChild(css);
})();
`

// ExportResult describes a captured page.
type ExportResult struct {
	PDFPath   string
	HTMLPath  string
	Title     string
	PageCount int
}

// Snapshotter captures web pages as PDFs through headless Chrome.
type Snapshotter struct {
	chromePath        string
	navigationTimeout time.Duration
	settleWait        time.Duration
	retryDelay        time.Duration
}

// New creates a Snapshotter. An empty chromePath lets chromedp find the browser.
func New(chromePath string) *Snapshotter {
	return &Snapshotter{
		chromePath:        chromePath,
		navigationTimeout: DefaultNavigationTimeout,
		settleWait:        DefaultSettleWait,
		retryDelay:        exportRetryDelay,
	}
}

// SetWaits overrides navigation and settle timing. Used by tests.
func (s *Snapshotter) SetWaits(navigation, settle, retryDelay time.Duration) {
	s.navigationTimeout = navigation
	s.settleWait = settle
	s.retryDelay = retryDelay
}

// newBrowserContext builds an allocator plus tab context. The returned cancel
// function tears both down.
func (s *Snapshotter) newBrowserContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1280, 800),
		chromedp.NoSandbox,
	)
	if s.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// Start the browser eagerly so a missing executable fails here, not
	// in the middle of an export.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, types.NewAppError(types.ErrBrowserInit, "failed to start headless Chrome", err)
	}
	return tabCtx, cancel, nil
}

// ProxyTranslateURL builds the Google Translate proxy URL for a page.
func ProxyTranslateURL(pageURL, sourceLang string) string {
	if sourceLang == "" {
		sourceLang = "zh-CN"
	}
	return fmt.Sprintf("https://translate.google.com/translate?hl=en&sl=%s&u=%s&prev=search",
		url.QueryEscape(sourceLang), url.QueryEscape(pageURL))
}

// ExportProxyTranslated renders a page through the Google Translate proxy and
// prints it to pdfPath.
func (s *Snapshotter) ExportProxyTranslated(ctx context.Context, pageURL, sourceLang, pdfPath string) (*ExportResult, error) {
	tabCtx, cancel, err := s.newBrowserContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	proxyURL := ProxyTranslateURL(pageURL, sourceLang)
	logger.Info("navigating through translate proxy",
		logger.String("url", pageURL),
		logger.String("proxyURL", proxyURL))

	if err := s.navigate(tabCtx, proxyURL); err != nil {
		return nil, err
	}

	var title string
	if err := chromedp.Run(tabCtx,
		chromedp.Evaluate(hideToolbarJS, nil),
		chromedp.Sleep(time.Second),
		chromedp.Title(&title),
	); err != nil {
		return nil, types.NewAppError(types.ErrExportFailed, "failed to prepare translated page", err)
	}

	pageCount, err := s.printWithRetry(tabCtx, pdfPath, proxyScale, proxyMarginInches)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		PDFPath:   pdfPath,
		Title:     SanitizeTitle(title),
		PageCount: pageCount,
	}, nil
}

// CaptureOriginal navigates to a page, saves its HTML, and prints the original
// rendering to pdfPath. The returned HTMLPath feeds local translation.
func (s *Snapshotter) CaptureOriginal(ctx context.Context, pageURL, htmlPath, pdfPath string) (*ExportResult, error) {
	tabCtx, cancel, err := s.newBrowserContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	logger.Info("capturing original page", logger.String("url", pageURL))

	if err := s.navigate(tabCtx, pageURL); err != nil {
		return nil, err
	}

	var title, html string
	if err := chromedp.Run(tabCtx,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, types.NewAppError(types.ErrExportFailed, "failed to read page content", err)
	}

	if err := os.MkdirAll(filepath.Dir(htmlPath), 0755); err != nil {
		return nil, types.NewAppError(types.ErrStorageUnavailable, "failed to create snapshot directory", err)
	}
	if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
		return nil, types.NewAppError(types.ErrStorageUnavailable, "failed to save page HTML", err)
	}

	pageCount, err := s.printWithRetry(tabCtx, pdfPath, normalScale, normalMarginInches)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		PDFPath:   pdfPath,
		HTMLPath:  htmlPath,
		Title:     SanitizeTitle(title),
		PageCount: pageCount,
	}, nil
}

// ExportLocalHTML renders a local HTML file and prints it to pdfPath.
func (s *Snapshotter) ExportLocalHTML(ctx context.Context, htmlPath, pdfPath string) (*ExportResult, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid HTML path", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrNotFound, "HTML file not found", abs, err)
	}

	tabCtx, cancel, err := s.newBrowserContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	fileURL := "file://" + filepath.ToSlash(abs)
	logger.Info("rendering local HTML", logger.String("file", fileURL))

	if err := s.navigate(tabCtx, fileURL); err != nil {
		return nil, err
	}

	var title string
	if err := chromedp.Run(tabCtx, chromedp.Title(&title)); err != nil {
		return nil, types.NewAppError(types.ErrExportFailed, "failed to read page title", err)
	}

	pageCount, err := s.printWithRetry(tabCtx, pdfPath, normalScale, normalMarginInches)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		PDFPath:   pdfPath,
		Title:     SanitizeTitle(title),
		PageCount: pageCount,
	}, nil
}

// navigate loads a URL and waits for dynamic content to settle.
func (s *Snapshotter) navigate(tabCtx context.Context, target string) error {
	navCtx, cancel := context.WithTimeout(tabCtx, s.navigationTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(s.settleWait),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return types.NewAppErrorWithDetails(types.ErrNavigationTimeout,
				"page navigation timed out", target, err)
		}
		return types.NewAppErrorWithDetails(types.ErrNavigationTimeout,
			"page navigation failed", target, err)
	}
	return nil
}

// printWithRetry prints the current tab to pdfPath. Each attempt first probes
// the tab with a title read so a dead browser fails fast; up to
// MaxExportRetries attempts are made.
func (s *Snapshotter) printWithRetry(tabCtx context.Context, pdfPath string, scale, margin float64) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxExportRetries; attempt++ {
		logger.Info("print attempt",
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", MaxExportRetries))

		var probe string
		if err := chromedp.Run(tabCtx, chromedp.Title(&probe)); err != nil {
			lastErr = err
			logger.Warn("browser liveness probe failed", logger.Err(err))
		} else if err := s.printToPDF(tabCtx, pdfPath, scale, margin); err != nil {
			lastErr = err
			logger.Warn("print attempt failed", logger.Int("attempt", attempt), logger.Err(err))
		} else {
			return countPages(pdfPath)
		}

		if attempt < MaxExportRetries {
			time.Sleep(s.retryDelay)
		}
	}
	return 0, types.NewAppErrorWithDetails(types.ErrExportFailed,
		fmt.Sprintf("PDF export failed after %d attempts", MaxExportRetries), pdfPath, lastErr)
}

func (s *Snapshotter) printToPDF(tabCtx context.Context, pdfPath string, scale, margin float64) error {
	var pdfData []byte
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPaperWidth(paperWidthInches).
			WithPaperHeight(paperHeightInches).
			WithMarginTop(margin).
			WithMarginBottom(margin).
			WithMarginLeft(margin).
			WithMarginRight(margin).
			WithPrintBackground(true).
			WithScale(scale).
			WithPreferCSSPageSize(false).
			Do(ctx)
		if err != nil {
			return err
		}
		pdfData = data
		return nil
	}))
	if err != nil {
		return err
	}
	if len(pdfData) == 0 {
		return fmt.Errorf("browser returned no PDF data")
	}

	if err := os.MkdirAll(filepath.Dir(pdfPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(pdfPath, pdfData, 0644)
}

// countPages validates the exported PDF and returns its page count.
func countPages(pdfPath string) (int, error) {
	conf := model.NewDefaultConfiguration()
	if err := pdfcpuapi.ValidateFile(pdfPath, conf); err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrExportFailed,
			"exported PDF is not valid", pdfPath, err)
	}
	pdfCtx, err := pdfcpuapi.ReadContextFile(pdfPath)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrExportFailed,
			"exported PDF could not be read", pdfPath, err)
	}
	return pdfCtx.PageCount, nil
}

// NormalizeURL prepends https:// when the URL has no scheme, so bare
// hostnames like "example.com/page" are accepted.
func NormalizeURL(pageURL string) string {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return pageURL
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return "https://" + pageURL
	}
	return pageURL
}

var nonAlphanumericRuns = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SanitizeURLToName turns a page URL into a directory name: the scheme is
// stripped and every run of non-alphanumeric characters collapses to a
// single underscore. The result is capped at 100 runes.
func SanitizeURLToName(pageURL string) string {
	name := strings.TrimPrefix(pageURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = nonAlphanumericRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	runes := []rune(name)
	if len(runes) > 100 {
		name = string(runes[:100])
	}
	if name == "" {
		name = "page"
	}
	return name
}

var illegalTitleChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SanitizeTitle cleans a page title for use in file names: newlines collapse
// to spaces, filesystem-hostile characters become underscores, and the result
// is capped at 50 runes. An empty title becomes "untitled".
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	title = illegalTitleChars.ReplaceAllString(title, "_")
	runes := []rune(title)
	if len(runes) > 50 {
		title = string(runes[:50])
	}
	if title == "" {
		title = "untitled"
	}
	return title
}

// PruneHTML strips script, style, iframe, and noscript elements from an HTML
// document so only renderable content is sent for translation. It returns the
// pruned document and the page title.
func PruneHTML(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", types.NewAppError(types.ErrInvalidInput, "failed to parse HTML", err)
	}

	doc.Find("script, style, iframe, noscript").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())

	pruned, err := doc.Html()
	if err != nil {
		return "", "", types.NewAppError(types.ErrInternal, "failed to serialize pruned HTML", err)
	}
	return pruned, title, nil
}
