// Package converr defines the error taxonomy shared by the conversion
// engine. Every failure surfaced to a caller carries a category, a severity
// tier and a short list of actionable suggestions.
package converr

import (
	"errors"
	"fmt"
	"strings"
)

// Category identifies the class of failure
type Category string

const (
	CategoryUnsupportedFormat   Category = "unsupported_format"
	CategoryPipelineUnsupported Category = "pipeline_unsupported"
	CategorySettingsValidation  Category = "settings_validation"
	CategoryProcessSpawn        Category = "process_spawn"
	CategoryEncoderExit         Category = "encoder_exit"
	CategoryCancelled           Category = "cancelled"
	CategoryResourceExhaustion  Category = "resource_exhaustion"
	CategoryUnknown             Category = "unknown"
)

// Severity indicates how a failure should be presented to the user
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Error is the common error envelope for the conversion engine
type Error struct {
	Category    Category
	Severity    Severity
	Message     string
	Suggestions []string
	Err         error // wrapped cause, may be nil
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given category and message
func New(category Category, severity Severity, message string, suggestions ...string) *Error {
	return &Error{
		Category:    category,
		Severity:    severity,
		Message:     message,
		Suggestions: suggestions,
	}
}

// Wrap creates an Error wrapping an underlying cause
func Wrap(err error, category Category, severity Severity, message string, suggestions ...string) *Error {
	return &Error{
		Category:    category,
		Severity:    severity,
		Message:     message,
		Suggestions: suggestions,
		Err:         err,
	}
}

// Categorized is implemented by package-local error types that know their
// own category (format, pipeline and settings errors).
type Categorized interface {
	error
	Category() Category
}

// CategoryOf returns the category of err, or CategoryUnknown when err does
// not carry one
func CategoryOf(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	var cat Categorized
	if errors.As(err, &cat) {
		return cat.Category()
	}
	return CategoryUnknown
}

// IsCancellation reports whether err represents a user cancellation. A
// cancellation is never treated as a generic failure: it wins races with
// process-exit errors and is excluded from retries.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if CategoryOf(err) == CategoryCancelled {
		return true
	}
	return errors.Is(err, ErrCancelled)
}

// ErrCancelled is the sentinel wrapped by all cancellation errors
var ErrCancelled = errors.New("conversion cancelled")

// NewCancellation creates the terminal cancellation error for a job
func NewCancellation() *Error {
	return &Error{
		Category: CategoryCancelled,
		Severity: SeverityWarning,
		Message:  "conversion cancelled by user",
		Err:      ErrCancelled,
	}
}

// nonRetryable lists substrings that mark a failure as permanent. Matching
// is case-insensitive against the full error text.
var nonRetryable = []string{
	"no such file",
	"file not found",
	"permission denied",
	"invalid data",
	"corrupt",
	"unsupported codec",
	"unknown encoder",
	"cancelled",
	"canceled",
	"no space left",
	"disk full",
	"out of memory",
	"cannot allocate memory",
}

// IsRetryable reports whether err is worth retrying. Unknown failures are
// assumed transient; only the fixed non-retryable set aborts immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CategoryOf(err) {
	case CategoryUnsupportedFormat, CategoryPipelineUnsupported,
		CategorySettingsValidation, CategoryCancelled,
		CategoryResourceExhaustion:
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range nonRetryable {
		if strings.Contains(text, marker) {
			return false
		}
	}
	return true
}

// SuggestionsFor returns the standard remediation hints for a category
func SuggestionsFor(category Category) []string {
	switch category {
	case CategoryUnsupportedFormat:
		return []string{"check the file extension", "convert from a supported container"}
	case CategoryPipelineUnsupported:
		return []string{"choose a different output format", "list supported pairs with 'mediaconv pipelines'"}
	case CategorySettingsValidation:
		return []string{"review the reported violations", "remove the offending overrides"}
	case CategoryProcessSpawn:
		return []string{"check that ffmpeg is installed and on PATH", "check file permissions"}
	case CategoryEncoderExit:
		return []string{"inspect the captured encoder output", "try a lower resolution or different codec"}
	case CategoryResourceExhaustion:
		return []string{"free disk space", "reduce resolution", "lower the concurrent job limit"}
	default:
		return nil
	}
}
