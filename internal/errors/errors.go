package errors

import (
	"errors"
	"fmt"
)

// VibeError is the structured error type for vibemcp.
// It provides rich context for error handling, logging, and user presentation.
type VibeError struct {
	// Code is the unique error code (e.g., "ERR_201_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VibeError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VibeError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with VibeError.
func (e *VibeError) Is(target error) bool {
	if t, ok := target.(*VibeError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *VibeError) WithDetail(key, value string) *VibeError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *VibeError) WithSuggestion(suggestion string) *VibeError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VibeError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *VibeError {
	return &VibeError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VibeError from an existing error.
// The error's message becomes the VibeError message.
func Wrap(code string, err error) *VibeError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VibeError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NotFoundError creates an error for a missing document, project, or webhook.
func NotFoundError(message string, cause error) *VibeError {
	return New(ErrCodeNotFound, message, cause)
}

// AlreadyExistsError creates an error for a creation target that exists.
func AlreadyExistsError(message string, cause error) *VibeError {
	return New(ErrCodeAlreadyExists, message, cause)
}

// ConflictError creates an error for conflicting concurrent operations.
func ConflictError(message string, cause error) *VibeError {
	return New(ErrCodeConflict, message, cause)
}

// CorruptError creates an error for an unreadable or corrupt index.
func CorruptError(message string, cause error) *VibeError {
	return New(ErrCodeCorrupt, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *VibeError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *VibeError {
	return New(ErrCodeInvalidArgument, message, cause)
}

// PathError creates an error for a path escaping the workspace root.
func PathError(message string, cause error) *VibeError {
	return New(ErrCodeInvalidPath, message, cause)
}

// UnsafeURLError creates an error for a webhook URL rejected by the SSRF guard.
func UnsafeURLError(message string, cause error) *VibeError {
	return New(ErrCodeUnsafeURL, message, cause)
}

// LimitError creates an error for an exceeded registration cap.
func LimitError(message string, cause error) *VibeError {
	return New(ErrCodeLimitExceeded, message, cause)
}

// PermissionError creates an error for a mutation rejected in read-only mode.
func PermissionError(message string, cause error) *VibeError {
	return New(ErrCodePermissionDenied, message, cause)
}

// TransientError creates a retryable error for a failed delivery attempt.
func TransientError(message string, cause error) *VibeError {
	return New(ErrCodeTransient, message, cause)
}

// StoreError creates an error for an unexpected database failure.
func StoreError(message string, cause error) *VibeError {
	return New(ErrCodeStoreFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *VibeError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a VibeError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *VibeError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ve *VibeError
	if errors.As(err, &ve) {
		return ve.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether err carries the given error code anywhere
// in its chain.
func HasCode(err error, code string) bool {
	var ve *VibeError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// GetCode extracts the error code from a VibeError.
// Returns empty string if not a VibeError.
func GetCode(err error) string {
	var ve *VibeError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// GetCategory extracts the category from a VibeError.
// Returns empty string if not a VibeError.
func GetCategory(err error) Category {
	var ve *VibeError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ""
}
