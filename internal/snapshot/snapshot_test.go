package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doc-translator/internal/types"
)

func TestProxyTranslateURL(t *testing.T) {
	got := ProxyTranslateURL("https://example.com/news?id=1", "")
	if !strings.HasPrefix(got, "https://translate.google.com/translate?") {
		t.Errorf("Unexpected proxy URL prefix: %q", got)
	}
	for _, want := range []string{"hl=en", "sl=zh-CN", "prev=search", "u=https%3A%2F%2Fexample.com%2Fnews%3Fid%3D1"} {
		if !strings.Contains(got, want) {
			t.Errorf("Proxy URL missing %q: %q", want, got)
		}
	}

	got = ProxyTranslateURL("https://example.com", "ja")
	if !strings.Contains(got, "sl=ja") {
		t.Errorf("Proxy URL should carry the source language: %q", got)
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Simple Title", "Simple Title"},
		{"  padded  ", "padded"},
		{"multi\nline\ntitle", "multi line title"},
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{strings.Repeat("长", 80), strings.Repeat("长", 50)},
		{"", "untitled"},
		{"\n  \n", "untitled"},
	}
	for _, tt := range tests {
		if got := SanitizeTitle(tt.in); got != tt.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com", "https://example.com"},
		{"http://example.com/page", "http://example.com/page"},
		{"example.com/page", "https://example.com/page"},
		{"  example.com  ", "https://example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeURLToName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/news/2024", "example_com_news_2024"},
		{"http://example.com", "example_com"},
		{"https://example.com/a?b=c&d=e", "example_com_a_b_c_d_e"},
		{"https://example.com/", "example_com"},
		{"", "page"},
	}
	for _, tt := range tests {
		if got := SanitizeURLToName(tt.in); got != tt.want {
			t.Errorf("SanitizeURLToName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPruneHTML(t *testing.T) {
	html := `<html><head>
		<title>新闻页面</title>
		<script>alert("x")</script>
		<style>body { color: red }</style>
	</head><body>
		<p>正文内容</p>
		<iframe src="https://ads.example.com"></iframe>
		<noscript>enable js</noscript>
	</body></html>`

	pruned, title, err := PruneHTML(html)
	if err != nil {
		t.Fatalf("PruneHTML failed: %v", err)
	}

	if title != "新闻页面" {
		t.Errorf("Title = %q, want 新闻页面", title)
	}
	for _, gone := range []string{"<script", "<style", "<iframe", "<noscript", "alert", "color: red"} {
		if strings.Contains(pruned, gone) {
			t.Errorf("Pruned HTML still contains %q", gone)
		}
	}
	if !strings.Contains(pruned, "正文内容") {
		t.Error("Pruned HTML lost body content")
	}
}

func TestPruneHTMLPlainText(t *testing.T) {
	// goquery wraps fragments into a full document
	pruned, title, err := PruneHTML("just some text")
	if err != nil {
		t.Fatalf("PruneHTML failed: %v", err)
	}
	if title != "" {
		t.Errorf("Title = %q, want empty", title)
	}
	if !strings.Contains(pruned, "just some text") {
		t.Error("Pruned HTML lost the text content")
	}
}

func TestExportLocalHTMLMissingFile(t *testing.T) {
	s := New("")
	_, err := s.ExportLocalHTML(context.Background(), filepath.Join(t.TempDir(), "absent.html"), "out.pdf")
	if err == nil {
		t.Fatal("Expected error for a missing HTML file")
	}
	if got := types.ErrorCategory(err); got != types.ErrNotFound {
		t.Errorf("Error category = %v, want NOT_FOUND", got)
	}
}

func TestCountPagesInvalidPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := countPages(path)
	if err == nil {
		t.Fatal("Expected validation error for a broken PDF")
	}
	if got := types.ErrorCategory(err); got != types.ErrExportFailed {
		t.Errorf("Error category = %v, want EXPORT_FAILED", got)
	}
}
