// Package jobs persists translation job records as one JSON file per job.
package jobs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Registry stores job records under {dir}/{id}.json. It is safe for
// concurrent use within one process.
type Registry struct {
	dir string
	mu  sync.Mutex
}

// NewRegistry creates (if needed) the jobs directory and returns a Registry.
func NewRegistry(dir string) (*Registry, error) {
	if dir == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "jobs directory must not be empty", nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
			"failed to create jobs directory", dir, err)
	}
	return &Registry{dir: dir}, nil
}

// Create records a new pending job and returns it.
func (r *Registry) Create(kind types.JobKind, sourceReference string) (*types.TranslationJob, error) {
	job := &types.TranslationJob{
		ID:              uuid.NewString(),
		Kind:            kind,
		Status:          types.StatusPending,
		SourceReference: sourceReference,
		CreatedAt:       time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.write(job); err != nil {
		return nil, err
	}
	logger.Info("job created",
		logger.String("id", job.ID),
		logger.String("kind", string(kind)),
		logger.String("source", sourceReference))
	return job, nil
}

// Get loads one job by ID.
func (r *Registry) Get(id string) (*types.TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(id)
}

// List returns all jobs, newest first.
func (r *Registry) List() ([]*types.TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
			"failed to read jobs directory", r.dir, err)
	}

	var jobs []*types.TranslationJob
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		job, err := r.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			logger.Warn("skipping unreadable job record",
				logger.String("file", entry.Name()), logger.Err(err))
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Patch describes a job update. Nil fields are left unchanged.
type Patch struct {
	Status *types.JobStatus
	Result *types.JobResult
	Error  *types.JobError
}

// UpdateJob applies a patch to a job. Completing a job requires a result;
// failing it requires an error; the opposing field is cleared so the
// result/error pairing always matches the status.
func (r *Registry) UpdateJob(id string, patch Patch) (*types.TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.read(id)
	if err != nil {
		return nil, err
	}

	if patch.Result != nil {
		job.Result = patch.Result
	}
	if patch.Error != nil {
		job.Error = patch.Error
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}

	switch job.Status {
	case types.StatusCompleted:
		if job.Result == nil {
			return nil, types.NewAppError(types.ErrInternal,
				"cannot mark job completed without a result", nil)
		}
		job.Error = nil
		job.CompletedAt = time.Now()
	case types.StatusFailed:
		if job.Error == nil {
			return nil, types.NewAppError(types.ErrInternal,
				"cannot mark job failed without an error", nil)
		}
		job.Result = nil
		job.CompletedAt = time.Now()
	}

	if err := r.write(job); err != nil {
		return nil, err
	}
	logger.Debug("job updated",
		logger.String("id", id),
		logger.String("status", string(job.Status)))
	return job, nil
}

// ResetForRetry returns a terminal job to pending, clearing its outcome but
// keeping its identity and source reference.
func (r *Registry) ResetForRetry(id string) (*types.TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.read(id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"only completed or failed jobs can be retried", string(job.Status), nil)
	}

	job.Status = types.StatusPending
	job.Result = nil
	job.Error = nil
	job.CompletedAt = time.Time{}

	if err := r.write(job); err != nil {
		return nil, err
	}
	logger.Info("job reset for retry", logger.String("id", id))
	return job, nil
}

func (r *Registry) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *Registry) read(id string) (*types.TranslationJob, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrNotFound, "job not found", id, err)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable, "failed to read job record", id, err)
	}

	job := &types.TranslationJob{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable, "job record is corrupt", id, err)
	}
	return job, nil
}

func (r *Registry) write(job *types.TranslationJob) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to marshal job record", err)
	}
	if err := os.WriteFile(r.path(job.ID), data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
			"failed to write job record", job.ID, err)
	}
	return nil
}
