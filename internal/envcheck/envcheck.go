// Package envcheck verifies that external preconditions for each workflow are
// satisfied: credentials, executables, and writable artifact directories.
// All checks run to completion so one report shows every problem at once.
package envcheck

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"doc-translator/internal/logger"
	"doc-translator/internal/store"
	"doc-translator/internal/types"
)

// Category groups report entries.
type Category string

const (
	CategoryCredential Category = "credential"
	CategoryExecutable Category = "executable"
	CategoryStorage    Category = "storage"
	CategoryNetwork    Category = "network"
)

// Entry is one precondition's verdict. Remedy is set exactly when the entry
// is unsatisfied.
type Entry struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Satisfied bool     `json:"satisfied"`
	Detail    string   `json:"detail,omitempty"`
	Remedy    string   `json:"remedy,omitempty"`
}

// Report is the full set of precondition verdicts.
type Report struct {
	Entries []Entry `json:"entries"`
}

// Satisfied reports whether every entry passed.
func (r *Report) Satisfied() bool {
	for _, e := range r.Entries {
		if !e.Satisfied {
			return false
		}
	}
	return true
}

// Find returns the entry with the given name, or nil.
func (r *Report) Find(name string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].Name == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// Failures returns the unsatisfied entries.
func (r *Report) Failures() []Entry {
	var failed []Entry
	for _, e := range r.Entries {
		if !e.Satisfied {
			failed = append(failed, e)
		}
	}
	return failed
}

// Credentials supplies the secrets the checker inspects.
type Credentials struct {
	OpenAIAPIKey   string
	BaiduAPIKey    string
	BaiduSecretKey string
}

// Checker runs environment precondition checks.
type Checker struct {
	creds        Credentials
	pdflatexPath string
	chromePath   string
	artifacts    *store.Store
}

// NewChecker creates a Checker. pdflatexPath and chromePath are optional
// explicit overrides; empty values fall back to environment variables and
// well-known locations.
func NewChecker(creds Credentials, pdflatexPath, chromePath string, artifacts *store.Store) *Checker {
	return &Checker{
		creds:        creds,
		pdflatexPath: pdflatexPath,
		chromePath:   chromePath,
		artifacts:    artifacts,
	}
}

// Entry names used by workflow gates.
const (
	EntryOpenAIKey = "openai_api_key"
	EntryBaiduKeys = "baidu_translation_keys"
	EntryPdflatex  = "pdflatex"
	EntryChrome    = "chrome"
	EntryArtifacts = "artifact_directories"
)

// Check runs every precondition check and returns the combined report.
// It never stops at the first failure.
func (c *Checker) Check() *Report {
	report := &Report{}
	report.Entries = append(report.Entries,
		c.checkOpenAIKey(),
		c.checkBaiduKeys(),
		c.checkPdflatex(),
		c.checkChrome(),
		c.checkArtifactDirs(),
	)

	for _, e := range report.Failures() {
		logger.Warn("environment precondition unsatisfied",
			logger.String("check", e.Name),
			logger.String("detail", e.Detail))
	}
	return report
}

func (c *Checker) checkOpenAIKey() Entry {
	entry := Entry{Name: EntryOpenAIKey, Category: CategoryCredential}

	key := c.creds.OpenAIAPIKey
	switch {
	case key == "":
		entry.Detail = "no API key configured"
		entry.Remedy = "set OPENAI_API_KEY or add openai_api_key to the config file"
	case !strings.HasPrefix(key, "sk-"):
		entry.Detail = "configured key does not look like an OpenAI key (expected sk- prefix)"
		entry.Remedy = "verify the key copied from the OpenAI dashboard"
	default:
		entry.Satisfied = true
		entry.Detail = fmt.Sprintf("key configured (%d characters)", len(key))
	}
	return entry
}

func (c *Checker) checkBaiduKeys() Entry {
	entry := Entry{Name: EntryBaiduKeys, Category: CategoryCredential}

	switch {
	case c.creds.BaiduAPIKey == "" && c.creds.BaiduSecretKey == "":
		entry.Detail = "no Baidu translation credentials configured"
		entry.Remedy = "set BAIDU_TRANS_API_KEY and BAIDU_TRANS_SECRET_KEY"
	case c.creds.BaiduAPIKey == "":
		entry.Detail = "secret key configured but API key is missing"
		entry.Remedy = "set BAIDU_TRANS_API_KEY"
	case c.creds.BaiduSecretKey == "":
		entry.Detail = "API key configured but secret key is missing"
		entry.Remedy = "set BAIDU_TRANS_SECRET_KEY"
	default:
		entry.Satisfied = true
		entry.Detail = "both credential halves configured"
	}
	return entry
}

// wellKnownPdflatexPaths are checked after the override, the environment, and
// PATH all come up empty.
func wellKnownPdflatexPaths() []string {
	if runtime.GOOS == "windows" {
		username := os.Getenv("USERNAME")
		return []string{
			`C:\Program Files\MiKTeX\miktex\bin\x64\pdflatex.exe`,
			filepath.Join(`C:\Users`, username, `AppData\Local\Programs\MiKTeX\miktex\bin\x64\pdflatex.exe`),
			`C:\Program Files (x86)\MiKTeX\miktex\bin\pdflatex.exe`,
			`D:\MiKTeX\miktex\bin\x64\pdflatex.exe`,
		}
	}
	return []string{
		"/usr/bin/pdflatex",
		"/usr/local/bin/pdflatex",
		"/usr/local/texlive/bin/pdflatex",
		"/opt/texlive/bin/pdflatex",
	}
}

// ResolvePdflatex finds a usable pdflatex executable. Resolution order:
// explicit override, PDFLATEX_PATH, PATH lookup, then well-known install
// locations. The second return value lists every location tried.
func ResolvePdflatex(override string) (string, []string) {
	var tried []string

	candidates := []string{}
	if override != "" {
		candidates = append(candidates, override)
	}
	if env := os.Getenv("PDFLATEX_PATH"); env != "" {
		candidates = append(candidates, env)
	}

	for _, candidate := range candidates {
		tried = append(tried, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, tried
		}
	}

	tried = append(tried, "PATH")
	if path, err := exec.LookPath("pdflatex"); err == nil {
		return path, tried
	}

	for _, candidate := range wellKnownPdflatexPaths() {
		tried = append(tried, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, tried
		}
	}
	return "", tried
}

func (c *Checker) checkPdflatex() Entry {
	entry := Entry{Name: EntryPdflatex, Category: CategoryExecutable}

	path, tried := ResolvePdflatex(c.pdflatexPath)
	if path == "" {
		entry.Detail = "pdflatex not found; tried " + strings.Join(tried, ", ")
		entry.Remedy = "install TeX Live or MiKTeX, or set PDFLATEX_PATH to the executable"
		return entry
	}

	entry.Satisfied = true
	entry.Detail = "found at " + path
	return entry
}

// chromeCandidates lists common browser executables per platform.
func chromeCandidates() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
		}
	}
}

func (c *Checker) checkChrome() Entry {
	entry := Entry{Name: EntryChrome, Category: CategoryExecutable}

	var tried []string
	candidates := []string{}
	if c.chromePath != "" {
		candidates = append(candidates, c.chromePath)
	}
	if env := os.Getenv("CHROME_PATH"); env != "" {
		candidates = append(candidates, env)
	}

	for _, candidate := range candidates {
		tried = append(tried, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			entry.Satisfied = true
			entry.Detail = "found at " + candidate
			return entry
		}
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		tried = append(tried, name)
		if path, err := exec.LookPath(name); err == nil {
			entry.Satisfied = true
			entry.Detail = "found at " + path
			return entry
		}
	}

	for _, candidate := range chromeCandidates() {
		tried = append(tried, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			entry.Satisfied = true
			entry.Detail = "found at " + candidate
			return entry
		}
	}

	entry.Detail = "Chrome not found; tried " + strings.Join(tried, ", ")
	entry.Remedy = "install Google Chrome or Chromium, or set CHROME_PATH to the executable"
	return entry
}

// checkArtifactDirs probes every artifact directory with a sentinel write.
func (c *Checker) checkArtifactDirs() Entry {
	entry := Entry{Name: EntryArtifacts, Category: CategoryStorage}

	if c.artifacts == nil {
		entry.Detail = "artifact store is not configured"
		entry.Remedy = "set a working directory for artifacts"
		return entry
	}

	var unwritable []string
	for _, kind := range []store.Kind{
		store.KindUploads,
		store.KindPosterOutput,
		store.KindImageTransOutput,
		store.KindWebTransOutput,
		store.KindDownloads,
		store.KindJobs,
	} {
		dir := c.artifacts.Dir(kind)
		sentinel := filepath.Join(dir, ".write_probe")
		if err := os.WriteFile(sentinel, []byte("probe"), 0644); err != nil {
			unwritable = append(unwritable, dir)
			continue
		}
		os.Remove(sentinel)
	}

	if len(unwritable) > 0 {
		entry.Detail = "not writable: " + strings.Join(unwritable, ", ")
		entry.Remedy = "fix permissions on the artifact directories or choose another working directory"
		return entry
	}

	entry.Satisfied = true
	entry.Detail = "all artifact directories writable under " + c.artifacts.Root()
	return entry
}

// GateFor returns the entry names a workflow kind depends on.
func GateFor(kind types.JobKind) []string {
	switch kind {
	case types.KindPosterToDocument:
		return []string{EntryOpenAIKey, EntryPdflatex, EntryArtifacts}
	case types.KindImageRegionTranslate:
		return []string{EntryBaiduKeys, EntryArtifacts}
	case types.KindURLSnapshotTranslate:
		return []string{EntryChrome, EntryArtifacts}
	case types.KindURLTextTranslate:
		return []string{EntryOpenAIKey, EntryChrome, EntryArtifacts}
	default:
		return []string{EntryArtifacts}
	}
}

// GateSatisfied checks the report entries a workflow kind depends on and
// returns the failures among them.
func GateSatisfied(report *Report, kind types.JobKind) []Entry {
	var failed []Entry
	for _, name := range GateFor(kind) {
		if e := report.Find(name); e != nil && !e.Satisfied {
			failed = append(failed, *e)
		}
	}
	return failed
}
