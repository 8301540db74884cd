// Package pipeline orchestrates the translation workflows: it gates batches on
// environment preconditions, tracks each item as a job, and runs the
// kind-specific workflow for every item.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"doc-translator/internal/envcheck"
	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Workflow executes one translation item of a particular kind.
type Workflow interface {
	Run(ctx context.Context, sourceReference string) (*types.JobResult, error)
}

// WorkflowFunc adapts a function to the Workflow interface.
type WorkflowFunc func(ctx context.Context, sourceReference string) (*types.JobResult, error)

// Run implements Workflow.
func (f WorkflowFunc) Run(ctx context.Context, sourceReference string) (*types.JobResult, error) {
	return f(ctx, sourceReference)
}

type statusFuncKey struct{}

// ReportStatus records an intermediate status for the job owning this run,
// such as compiling while a markup workflow invokes the document compiler.
// Outside an orchestrator run it is a no-op.
func ReportStatus(ctx context.Context, status types.JobStatus) {
	if fn, ok := ctx.Value(statusFuncKey{}).(func(types.JobStatus)); ok {
		fn(status)
	}
}

func withStatusReporter(ctx context.Context, fn func(types.JobStatus)) context.Context {
	return context.WithValue(ctx, statusFuncKey{}, fn)
}

// EnvChecker produces an environment report. Satisfied by *envcheck.Checker.
type EnvChecker interface {
	Check() *envcheck.Report
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Jobs      []*types.TranslationJob
	Succeeded int
	Failed    int
	Report    *envcheck.Report
}

// Orchestrator routes batches to workflows and records outcomes in the registry.
type Orchestrator struct {
	registry  *jobs.Registry
	checker   EnvChecker
	workflows map[types.JobKind]Workflow
}

// NewOrchestrator creates an Orchestrator with no workflows registered.
func NewOrchestrator(registry *jobs.Registry, checker EnvChecker) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		checker:   checker,
		workflows: make(map[types.JobKind]Workflow),
	}
}

// Register binds a workflow to a job kind.
func (o *Orchestrator) Register(kind types.JobKind, wf Workflow) {
	o.workflows[kind] = wf
}

// RunBatch checks the environment gate for the kind and then runs every item
// sequentially. A failing item records a failed job and the batch continues;
// only an unsatisfied environment aborts the whole batch before any job is
// created.
func (o *Orchestrator) RunBatch(ctx context.Context, kind types.JobKind, items []string) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "batch contains no items", nil)
	}
	wf, ok := o.workflows[kind]
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"no workflow registered for kind", string(kind), nil)
	}

	report := o.checker.Check()
	result := &BatchResult{Report: report}

	if failures := envcheck.GateSatisfied(report, kind); len(failures) > 0 {
		names := make([]string, len(failures))
		for i, f := range failures {
			names[i] = f.Name
		}
		logger.Error("environment gate failed, batch aborted", nil,
			logger.String("kind", string(kind)),
			logger.String("failures", strings.Join(names, ", ")))
		return result, types.NewAppErrorWithDetails(types.ErrEnvironmentUnsatisfied,
			"environment preconditions unsatisfied",
			strings.Join(names, ", "), nil)
	}

	logger.Info("starting batch",
		logger.String("kind", string(kind)),
		logger.Int("items", len(items)))

	for _, item := range items {
		job := o.runItem(ctx, kind, wf, item)
		result.Jobs = append(result.Jobs, job)
		if job.Status == types.StatusCompleted {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	logger.Info("batch finished",
		logger.String("kind", string(kind)),
		logger.Int("succeeded", result.Succeeded),
		logger.Int("failed", result.Failed))
	return result, nil
}

// runItem executes one item under a job record. It never returns an error;
// failures are captured on the job so the batch can continue.
func (o *Orchestrator) runItem(ctx context.Context, kind types.JobKind, wf Workflow, item string) *types.TranslationJob {
	job, err := o.registry.Create(kind, item)
	if err != nil {
		// Registry is unusable; synthesize an unpersisted failed record
		logger.Error("failed to create job record", err, logger.String("item", item))
		return &types.TranslationJob{
			Kind:            kind,
			Status:          types.StatusFailed,
			SourceReference: item,
			Error: &types.JobError{
				Category: types.ErrorCategory(err),
				Message:  fmt.Sprintf("failed to create job record: %v", err),
			},
		}
	}

	running := types.StatusRunning
	if _, err := o.registry.UpdateJob(job.ID, jobs.Patch{Status: &running}); err != nil {
		logger.Warn("failed to mark job running", logger.String("id", job.ID), logger.Err(err))
	}

	jobResult, runErr := wf.Run(o.reporterContext(ctx, job.ID), item)
	if runErr != nil {
		failed := types.StatusFailed
		updated, err := o.registry.UpdateJob(job.ID, jobs.Patch{
			Status: &failed,
			Error: &types.JobError{
				Category: types.ErrorCategory(runErr),
				Message:  runErr.Error(),
			},
		})
		if err != nil {
			logger.Error("failed to record job failure", err, logger.String("id", job.ID))
			return job
		}
		logger.Warn("job failed",
			logger.String("id", job.ID),
			logger.String("category", string(types.ErrorCategory(runErr))),
			logger.Err(runErr))
		return updated
	}

	completed := types.StatusCompleted
	updated, err := o.registry.UpdateJob(job.ID, jobs.Patch{
		Status: &completed,
		Result: jobResult,
	})
	if err != nil {
		logger.Error("failed to record job completion", err, logger.String("id", job.ID))
		return job
	}
	logger.Info("job completed", logger.String("id", job.ID))
	return updated
}

// Retry resets a terminal job and re-runs it with the workflow registered for
// its kind. The job keeps its identity.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*types.TranslationJob, error) {
	job, err := o.registry.ResetForRetry(id)
	if err != nil {
		return nil, err
	}
	wf, ok := o.workflows[job.Kind]
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"no workflow registered for kind", string(job.Kind), nil)
	}

	report := o.checker.Check()
	if failures := envcheck.GateSatisfied(report, job.Kind); len(failures) > 0 {
		names := make([]string, len(failures))
		for i, f := range failures {
			names[i] = f.Name
		}
		return nil, types.NewAppErrorWithDetails(types.ErrEnvironmentUnsatisfied,
			"environment preconditions unsatisfied", strings.Join(names, ", "), nil)
	}

	return o.rerun(ctx, job, wf), nil
}

// reporterContext lets the workflow record intermediate statuses on its job.
func (o *Orchestrator) reporterContext(ctx context.Context, jobID string) context.Context {
	return withStatusReporter(ctx, func(status types.JobStatus) {
		if _, err := o.registry.UpdateJob(jobID, jobs.Patch{Status: &status}); err != nil {
			logger.Warn("failed to record job status",
				logger.String("id", jobID), logger.Err(err))
		}
	})
}

func (o *Orchestrator) rerun(ctx context.Context, job *types.TranslationJob, wf Workflow) *types.TranslationJob {
	running := types.StatusRunning
	o.registry.UpdateJob(job.ID, jobs.Patch{Status: &running})

	jobResult, runErr := wf.Run(o.reporterContext(ctx, job.ID), job.SourceReference)
	if runErr != nil {
		failed := types.StatusFailed
		updated, err := o.registry.UpdateJob(job.ID, jobs.Patch{
			Status: &failed,
			Error: &types.JobError{
				Category: types.ErrorCategory(runErr),
				Message:  runErr.Error(),
			},
		})
		if err != nil {
			return job
		}
		return updated
	}

	completed := types.StatusCompleted
	updated, err := o.registry.UpdateJob(job.ID, jobs.Patch{
		Status: &completed,
		Result: jobResult,
	})
	if err != nil {
		return job
	}
	return updated
}
