// Package errors provides structured error handling for vibemcp.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Document and filesystem errors
//   - 3XX: Webhook and network errors
//   - 4XX: Validation errors
//   - 5XX: Internal and store errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document and filesystem errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates webhook delivery and network errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Document and filesystem errors (200-299)
	ErrCodeNotFound      = "ERR_201_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_202_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_203_CONFLICT"
	ErrCodeCorrupt       = "ERR_204_CORRUPT"

	// Webhook and network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidArgument  = "ERR_401_INVALID_ARGUMENT"
	ErrCodeInvalidPath      = "ERR_402_INVALID_PATH"
	ErrCodeUnsafeURL        = "ERR_403_UNSAFE_URL"
	ErrCodeLimitExceeded    = "ERR_404_LIMIT_EXCEEDED"
	ErrCodePermissionDenied = "ERR_405_PERMISSION_DENIED"
	ErrCodeInvalidQuery     = "ERR_406_INVALID_QUERY"

	// Internal and store errors (500-599)
	ErrCodeTransient   = "ERR_501_TRANSIENT"
	ErrCodeInternal    = "ERR_502_INTERNAL"
	ErrCodeStoreFailed = "ERR_503_STORE_FAILED"
	ErrCodeIndexFailed = "ERR_504_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors
	if code == ErrCodeCorrupt {
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	// Default to error severity
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeTransient:
		return true
	default:
		return false
	}
}
