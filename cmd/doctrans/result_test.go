package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"doc-translator/internal/types"
)

func contentsOfPrintJob(t *testing.T, job *types.TranslationJob) string {
	t.Helper()
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	printJob(cmd, job)
	return buf.String()
}

func TestPrintJobCompleted(t *testing.T) {
	job := &types.TranslationJob{
		ID:              "7d0f",
		Kind:            types.KindImageRegionTranslate,
		Status:          types.StatusCompleted,
		SourceReference: "photo.jpg",
		CreatedAt:       time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		CompletedAt:     time.Date(2026, 8, 30, 10, 0, 5, 0, time.UTC),
		Result: &types.JobResult{
			ImagePath: "/out/translated.jpg",
			Regions: []types.TranslatedRegion{
				{SourceText: "你好", TranslatedText: "Hello", BlockIndex: 0},
			},
		},
	}

	out := contentsOfPrintJob(t, job)
	if !strings.Contains(out, "ended:   2026-08-30 10:00:05") {
		t.Errorf("Completed job should print its end time, got:\n%s", out)
	}
	if !strings.Contains(out, "image: /out/translated.jpg") {
		t.Errorf("Result paths missing, got:\n%s", out)
	}
	if !strings.Contains(out, "region 0: 你好 -> Hello") {
		t.Errorf("Regions missing, got:\n%s", out)
	}
}

func TestPrintJobInFlight(t *testing.T) {
	job := &types.TranslationJob{
		ID:              "a1b2",
		Kind:            types.KindPosterToDocument,
		Status:          types.StatusRunning,
		SourceReference: "poster.png",
		CreatedAt:       time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}

	out := contentsOfPrintJob(t, job)
	if strings.Contains(out, "ended:") {
		t.Errorf("Unfinished job must not print an end time, got:\n%s", out)
	}
	if !strings.Contains(out, "status:  running") {
		t.Errorf("Status line missing, got:\n%s", out)
	}
}

func TestPrintJobFailed(t *testing.T) {
	job := &types.TranslationJob{
		ID:              "c3d4",
		Kind:            types.KindURLTextTranslate,
		Status:          types.StatusFailed,
		SourceReference: "https://example.com",
		CreatedAt:       time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		CompletedAt:     time.Date(2026, 8, 30, 10, 1, 0, 0, time.UTC),
		Error: &types.JobError{
			Category: types.ErrNavigationTimeout,
			Message:  "page load timed out",
		},
	}

	out := contentsOfPrintJob(t, job)
	if !strings.Contains(out, "error:   NAVIGATION_TIMEOUT: page load timed out") {
		t.Errorf("Error line missing, got:\n%s", out)
	}
}
