package domain

import (
	"errors"
	"fmt"
)

// ============================================================================
// Not Found Errors
// ============================================================================

var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrFeedbackNotFound = errors.New("feedback item not found")
	ErrVersionNotFound  = errors.New("artifact version not found")
	ErrObjectNotFound   = errors.New("artifact object not found")
)

// ============================================================================
// Error Categories
// ============================================================================

var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("status guard rejected the transition")
	ErrConsistency = errors.New("write could not be verified")
	ErrStorage     = errors.New("artifact storage failed")
	ErrProtected   = errors.New("live artifact version cannot be deleted")
)

// Validation errors
var (
	ErrNoFilesSelected = &ValidationError{Field: "files", Reason: "no files selected"}
	ErrInvalidAssetID  = &ValidationError{Field: "asset_id", Reason: "asset ID is required"}
	ErrInvalidLocator  = &ValidationError{Field: "locator", Reason: "locator is required"}
	ErrInvalidRevision = &ValidationError{Field: "revision", Reason: "revision is out of range"}
	ErrEmptyFeedback   = &ValidationError{Field: "body", Reason: "feedback body is required"}
	ErrNotABackup      = &ValidationError{Field: "locator", Reason: "locator is not a backup of this asset"}
	ErrInvalidParent   = &ValidationError{Field: "parent_id", Reason: "parent belongs to another asset"}
)

// Persistence errors
var (
	ErrStaleAsset      = errors.New("asset was modified concurrently")
	ErrDuplicateBackup = errors.New("backup already exists")
)

// Collaborator errors
var (
	ErrReviewUnavailable = errors.New("review engine unavailable")
)

// Conflict codes
const (
	CodeQANotRun          = "QANotRun"
	CodeQARejected        = "QARejected"
	CodeMissingArtifact   = "MissingArtifact"
	CodeNamingMismatch    = "NamingMismatch"
	CodeInvalidTransition = "InvalidTransition"
	CodeReviewInProgress  = "ReviewInProgress"
)

var (
	ErrQANotRun          = &ConflictError{Code: CodeQANotRun, Detail: "automated QA has not been run for the current model"}
	ErrQARejected        = &ConflictError{Code: CodeQARejected, Detail: "automated QA rejected the current model"}
	ErrMissingArtifact   = &ConflictError{Code: CodeMissingArtifact, Detail: "model and source artifacts are both required"}
	ErrNamingMismatch    = &ConflictError{Code: CodeNamingMismatch, Detail: "model artifact name does not match the article id"}
	ErrInvalidTransition = &ConflictError{Code: CodeInvalidTransition, Detail: "status transition is not allowed"}
	ErrReviewInProgress  = &ConflictError{Code: CodeReviewInProgress, Detail: "a QA review is already running"}
)

// ============================================================================
// Typed Errors
// ============================================================================

type ValidationError struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %q, got %q)", e.Expected, e.Actual)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type ConflictError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Is matches any ConflictError with the same code, so callers can test
// errors.Is(err, domain.ErrQANotRun) against a detailed instance.
func (e *ConflictError) Is(target error) bool {
	t, ok := target.(*ConflictError)
	return ok && t.Code == e.Code
}

func NewConflict(code, format string, args ...any) *ConflictError {
	return &ConflictError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

type ConsistencyError struct {
	AssetID  string     `json:"asset_id"`
	Field    AssetField `json:"field"`
	Expected string     `json:"expected"`
	Observed string     `json:"observed"`
	Attempts int        `json:"attempts"`
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("asset %s: %s not confirmed after %d attempts (expected %q, observed %q)",
		e.AssetID, e.Field, e.Attempts, e.Expected, e.Observed)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

type ProtectedError struct {
	Locator string `json:"locator"`
}

func (e *ProtectedError) Error() string {
	return fmt.Sprintf("%s is the live version and cannot be deleted", e.Locator)
}

func (e *ProtectedError) Unwrap() error { return ErrProtected }

type StorageError struct {
	Op      string
	Locator string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }
