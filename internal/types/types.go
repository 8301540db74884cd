// Package types defines core data types and enums for the document translation backend.
package types

import "time"

// JobKind identifies one of the named translation workflows.
type JobKind string

const (
	// KindPosterToDocument reconstructs a poster image as a compiled LaTeX document.
	KindPosterToDocument JobKind = "poster_to_document"
	// KindImageRegionTranslate translates text regions inside an image.
	KindImageRegionTranslate JobKind = "image_region_translate"
	// KindURLSnapshotTranslate snapshots a web page through a translation proxy.
	KindURLSnapshotTranslate JobKind = "url_snapshot_translate"
	// KindURLTextTranslate translates a web page's text locally and snapshots the result.
	KindURLTextTranslate JobKind = "url_text_translate"
)

// JobStatus is a translation job's state machine position.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompiling JobStatus = "compiling"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rect is a bounding box in image pixel coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TranslatedRegion is one detected text block within an image translation result.
// Regions are owned by their job and immutable once created.
type TranslatedRegion struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
	BoundingBox    Rect   `json:"bounding_box"`
	BlockIndex     int    `json:"block_index"`
}

// RegionSummary carries the remote service's whole-image text summary.
type RegionSummary struct {
	SourceText string `json:"source_text"`
	TargetText string `json:"target_text"`
}

// JobResult is the kind-specific payload of a completed job. Only the fields
// relevant to the job's kind are populated.
type JobResult struct {
	// DocumentPath is the compiled PDF (poster and url workflows).
	DocumentPath string `json:"document_path,omitempty"`
	// MarkupPath is the LaTeX source sharing the document's basename.
	MarkupPath string `json:"markup_path,omitempty"`
	// ImagePath is the rendered translated image (image workflow).
	ImagePath string `json:"image_path,omitempty"`
	// Regions are the extracted text blocks (image workflow).
	Regions []TranslatedRegion `json:"regions,omitempty"`
	// Summary is the whole-image source/target text (image workflow).
	Summary *RegionSummary `json:"summary,omitempty"`
	// HTMLPath is the translated page markup (url_text workflow).
	HTMLPath string `json:"html_path,omitempty"`
	// Skipped marks a run that reused existing translated output instead
	// of calling the translation service again.
	Skipped bool `json:"skipped,omitempty"`
}

// JobError is the structured failure attached to a failed job.
type JobError struct {
	Category ErrorCode `json:"category"`
	Message  string    `json:"message"`
}

// TranslationJob is a unit of work for one material.
//
// Result is populated if and only if Status is completed; Error is populated
// if and only if Status is failed. A job is mutated only by the orchestrator
// advancing it through its stages and is terminal once completed or failed;
// a retry re-enters pending on the same record.
type TranslationJob struct {
	ID              string     `json:"id"`
	Kind            JobKind    `json:"kind"`
	Status          JobStatus  `json:"status"`
	SourceReference string     `json:"source_reference"`
	Result          *JobResult `json:"result,omitempty"`
	Error           *JobError  `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     time.Time  `json:"completed_at,omitempty"`
}

// CompileResult is the outcome of one document compilation.
type CompileResult struct {
	Success     bool     `json:"success"`
	PDFPath     string   `json:"pdf_path"`
	TexPath     string   `json:"tex_path"`
	Attempts    int      `json:"attempts"`
	PageCount   int      `json:"page_count"`
	Log         string   `json:"log"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	ErrorMsg    string   `json:"error_msg,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrCredentialMissing      ErrorCode = "CREDENTIAL_MISSING"
	ErrServiceUnavailable     ErrorCode = "SERVICE_UNAVAILABLE"
	ErrNavigationTimeout      ErrorCode = "NAVIGATION_TIMEOUT"
	ErrService                ErrorCode = "SERVICE_ERROR"
	ErrStorageUnavailable     ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCompileFailed          ErrorCode = "COMPILE_FAILED"
	ErrEnvironmentUnsatisfied ErrorCode = "ENVIRONMENT_UNSATISFIED"
	ErrEmptyResponse          ErrorCode = "EMPTY_RESPONSE"
	ErrTokenAcquisition       ErrorCode = "TOKEN_ACQUISITION_FAILED"
	ErrNoData                 ErrorCode = "NO_DATA"
	ErrExportFailed           ErrorCode = "EXPORT_FAILED"
	ErrBrowserInit            ErrorCode = "BROWSER_INIT_FAILED"
	ErrNotFound               ErrorCode = "NOT_FOUND"
	ErrInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrConfig                 ErrorCode = "CONFIG_ERROR"
	ErrInternal               ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// ErrorCategory extracts the machine-checkable category from an error.
// Errors that are not AppError map to INTERNAL_ERROR.
func ErrorCategory(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
