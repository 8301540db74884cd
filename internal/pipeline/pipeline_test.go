package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"doc-translator/internal/envcheck"
	"doc-translator/internal/jobs"
	"doc-translator/internal/types"
)

type fakeChecker struct {
	report *envcheck.Report
}

func (f *fakeChecker) Check() *envcheck.Report { return f.report }

func allSatisfiedReport() *envcheck.Report {
	return &envcheck.Report{Entries: []envcheck.Entry{
		{Name: envcheck.EntryOpenAIKey, Satisfied: true},
		{Name: envcheck.EntryBaiduKeys, Satisfied: true},
		{Name: envcheck.EntryPdflatex, Satisfied: true},
		{Name: envcheck.EntryChrome, Satisfied: true},
		{Name: envcheck.EntryArtifacts, Satisfied: true},
	}}
}

func newTestOrchestrator(t *testing.T, checker EnvChecker) (*Orchestrator, *jobs.Registry) {
	t.Helper()
	registry, err := jobs.NewRegistry(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return NewOrchestrator(registry, checker), registry
}

func TestRunBatchMixedOutcomes(t *testing.T) {
	o, registry := newTestOrchestrator(t, &fakeChecker{report: allSatisfiedReport()})

	o.Register(types.KindPosterToDocument, WorkflowFunc(func(ctx context.Context, src string) (*types.JobResult, error) {
		if src == "bad.png" {
			return nil, types.NewAppError(types.ErrEmptyResponse, "model returned nothing", nil)
		}
		return &types.JobResult{DocumentPath: "/out/" + src + ".pdf"}, nil
	}))

	result, err := o.RunBatch(context.Background(), types.KindPosterToDocument,
		[]string{"a.png", "bad.png", "c.png"})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("Succeeded=%d Failed=%d, want 2/1", result.Succeeded, result.Failed)
	}
	if len(result.Jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(result.Jobs))
	}

	// One item failing must not stop later items
	if result.Jobs[2].Status != types.StatusCompleted {
		t.Error("Item after a failure should still run to completion")
	}

	failed := result.Jobs[1]
	if failed.Status != types.StatusFailed {
		t.Fatalf("Second job status = %v, want failed", failed.Status)
	}
	if failed.Error == nil || failed.Error.Category != types.ErrEmptyResponse {
		t.Errorf("Failed job error = %+v, want EMPTY_RESPONSE", failed.Error)
	}
	if failed.Result != nil {
		t.Error("Failed job must not carry a result")
	}

	// Outcomes are persisted
	persisted, err := registry.Get(failed.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if persisted.Status != types.StatusFailed {
		t.Error("Failure was not persisted")
	}
}

func TestRunBatchEnvironmentGateAborts(t *testing.T) {
	report := allSatisfiedReport()
	report.Entries[0] = envcheck.Entry{
		Name:      envcheck.EntryOpenAIKey,
		Satisfied: false,
		Remedy:    "set OPENAI_API_KEY",
	}
	o, registry := newTestOrchestrator(t, &fakeChecker{report: report})

	called := false
	o.Register(types.KindPosterToDocument, WorkflowFunc(func(ctx context.Context, src string) (*types.JobResult, error) {
		called = true
		return nil, nil
	}))

	result, err := o.RunBatch(context.Background(), types.KindPosterToDocument, []string{"a.png"})
	if err == nil {
		t.Fatal("Expected environment gate error")
	}
	if got := types.ErrorCategory(err); got != types.ErrEnvironmentUnsatisfied {
		t.Errorf("Error category = %v, want ENVIRONMENT_UNSATISFIED", got)
	}
	if called {
		t.Error("Workflow must not run when the gate fails")
	}
	if result == nil || result.Report == nil {
		t.Error("Aborted batch should still return the report")
	}

	// No job records created for an aborted batch
	all, _ := registry.List()
	if len(all) != 0 {
		t.Errorf("Expected no jobs, found %d", len(all))
	}
}

func TestRunBatchGateIgnoresUnrelatedFailures(t *testing.T) {
	report := allSatisfiedReport()
	// Baidu credentials are irrelevant to the snapshot workflow
	report.Entries[1] = envcheck.Entry{Name: envcheck.EntryBaiduKeys, Satisfied: false, Remedy: "set keys"}
	o, _ := newTestOrchestrator(t, &fakeChecker{report: report})

	o.Register(types.KindURLSnapshotTranslate, WorkflowFunc(func(ctx context.Context, src string) (*types.JobResult, error) {
		return &types.JobResult{DocumentPath: "/out/snap.pdf"}, nil
	}))

	result, err := o.RunBatch(context.Background(), types.KindURLSnapshotTranslate, []string{"https://example.com"})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", result.Succeeded)
	}
}

func TestReportStatusRecordsIntermediateTransition(t *testing.T) {
	o, registry := newTestOrchestrator(t, &fakeChecker{report: allSatisfiedReport()})

	var midRun types.JobStatus
	o.Register(types.KindPosterToDocument, WorkflowFunc(func(ctx context.Context, src string) (*types.JobResult, error) {
		ReportStatus(ctx, types.StatusCompiling)
		all, err := registry.List()
		if err != nil || len(all) != 1 {
			t.Fatalf("List = %d jobs, err %v", len(all), err)
		}
		midRun = all[0].Status
		return &types.JobResult{DocumentPath: "/out/poster.pdf"}, nil
	}))

	result, err := o.RunBatch(context.Background(), types.KindPosterToDocument, []string{"a.png"})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if midRun != types.StatusCompiling {
		t.Errorf("Mid-run status = %v, want compiling", midRun)
	}
	if result.Jobs[0].Status != types.StatusCompleted {
		t.Errorf("Final status = %v, want completed", result.Jobs[0].Status)
	}
}

func TestReportStatusOutsideRunIsNoop(t *testing.T) {
	ReportStatus(context.Background(), types.StatusCompiling)
}

func TestRunBatchValidation(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeChecker{report: allSatisfiedReport()})

	if _, err := o.RunBatch(context.Background(), types.KindPosterToDocument, nil); err == nil {
		t.Error("Empty batch should fail")
	}

	if _, err := o.RunBatch(context.Background(), types.KindPosterToDocument, []string{"a.png"}); err == nil {
		t.Error("Unregistered kind should fail")
	}
}

func TestRetry(t *testing.T) {
	o, registry := newTestOrchestrator(t, &fakeChecker{report: allSatisfiedReport()})

	attempts := 0
	o.Register(types.KindURLTextTranslate, WorkflowFunc(func(ctx context.Context, src string) (*types.JobResult, error) {
		attempts++
		if attempts == 1 {
			return nil, types.NewAppError(types.ErrNavigationTimeout, "page load timed out", nil)
		}
		return &types.JobResult{DocumentPath: "/out/page.pdf", HTMLPath: "/out/page.html"}, nil
	}))

	batch, err := o.RunBatch(context.Background(), types.KindURLTextTranslate, []string{"https://example.com"})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	failedJob := batch.Jobs[0]
	if failedJob.Status != types.StatusFailed {
		t.Fatalf("First attempt should fail, got %v", failedJob.Status)
	}

	retried, err := o.Retry(context.Background(), failedJob.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried.ID != failedJob.ID {
		t.Error("Retry must keep the job identity")
	}
	if retried.Status != types.StatusCompleted {
		t.Errorf("Retried job status = %v, want completed", retried.Status)
	}
	if retried.Error != nil {
		t.Error("Retried job should have its error cleared")
	}

	persisted, _ := registry.Get(failedJob.ID)
	if persisted.Status != types.StatusCompleted {
		t.Error("Retry outcome was not persisted")
	}
}

func TestRetryNonTerminalJob(t *testing.T) {
	o, registry := newTestOrchestrator(t, &fakeChecker{report: allSatisfiedReport()})
	job, _ := registry.Create(types.KindPosterToDocument, "a.png")

	_, err := o.Retry(context.Background(), job.ID)
	if err == nil {
		t.Fatal("Retrying a pending job should fail")
	}
}

func TestRunItemRecordsPlainErrors(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeChecker{report: allSatisfiedReport()})

	o.Register(types.KindImageRegionTranslate, WorkflowFunc(func(ctx context.Context, src string) (*types.JobResult, error) {
		return nil, errors.New("something unexpected")
	}))

	result, err := o.RunBatch(context.Background(), types.KindImageRegionTranslate, []string{"x.jpg"})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	job := result.Jobs[0]
	if job.Error == nil || job.Error.Category != types.ErrInternal {
		t.Errorf("Plain errors should map to INTERNAL_ERROR, got %+v", job.Error)
	}
}
