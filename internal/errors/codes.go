// Package errors provides structured error handling for Recall.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and index-write errors
//   - 3XX: Model and embedding errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and index I/O errors.
	CategoryIO Category = "IO"
	// CategoryModel indicates embedding-model errors.
	CategoryModel Category = "MODEL"
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
)

// Error codes organized by category.
const (
	// ErrCodeConfigInvalid indicates an invalid configuration value.
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// ErrCodeIndexWriteFailed indicates an index insert or delete failed at
	// the storage layer. Logged, the host application keeps running.
	ErrCodeIndexWriteFailed = "ERR_201_INDEX_WRITE_FAILED"

	// ErrCodeModelLoadFailed indicates the embedding model could not be
	// loaded after retry exhaustion. Semantic search is disabled; lexical
	// search remains available.
	ErrCodeModelLoadFailed = "ERR_301_MODEL_LOAD_FAILED"

	// ErrCodeNotInitialized indicates an index subsystem was used before
	// its Initialize/Open completed.
	ErrCodeNotInitialized = "ERR_401_NOT_INITIALIZED"

	// ErrCodeContentTooShort indicates a document's text was empty or below
	// the minimum indexable length. Callers treat this as a skip.
	ErrCodeContentTooShort = "ERR_402_CONTENT_TOO_SHORT"

	// ErrCodeDimensionMismatch indicates a vector's length does not match
	// the active model's dimensionality.
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// ErrCodeSearchFailed indicates both search subsystems failed. The
	// caller receives an empty result set, never a crash.
	ErrCodeSearchFailed = "ERR_501_SEARCH_FAILED"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "ERR_502_INTERNAL"
)

// categoryFromCode derives the category from a code's number block.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryModel
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from the code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeModelLoadFailed:
		return SeverityFatal
	case ErrCodeContentTooShort, ErrCodeIndexWriteFailed, ErrCodeSearchFailed:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may
// succeed on retry.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeModelLoadFailed, ErrCodeIndexWriteFailed:
		return true
	default:
		return false
	}
}
