package errors

import (
	stderrors "errors"
	"fmt"
)

// RecallError is the structured error type for Recall.
// It provides context for error handling, logging, and user presentation.
type RecallError struct {
	// Code is the unique error code (e.g., "ERR_402_CONTENT_TOO_SHORT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Model, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *RecallError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RecallError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RecallError.
func (e *RecallError) Is(target error) bool {
	if t, ok := target.(*RecallError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RecallError) WithDetail(key, value string) *RecallError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new RecallError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RecallError {
	return &RecallError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RecallError from an existing error.
// The error's message becomes the RecallError message.
func Wrap(code string, err error) *RecallError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotInitialized creates an error for an index used before setup.
func NotInitialized(subsystem string) *RecallError {
	return New(ErrCodeNotInitialized, subsystem+" is not initialized", nil)
}

// ContentTooShort creates a skippable error for unindexable content.
func ContentTooShort(docID string, length int) *RecallError {
	e := New(ErrCodeContentTooShort,
		fmt.Sprintf("document %s has no indexable content (%d chars)", docID, length), nil)
	return e.WithDetail("doc_id", docID)
}

// IndexWriteFailed creates an I/O-level index error.
func IndexWriteFailed(message string, cause error) *RecallError {
	return New(ErrCodeIndexWriteFailed, message, cause)
}

// ModelLoadFailed creates a fatal model initialization error.
func ModelLoadFailed(model string, cause error) *RecallError {
	return New(ErrCodeModelLoadFailed,
		fmt.Sprintf("embedding model %s failed to load", model), cause)
}

// IsContentTooShort reports whether err is a ContentTooShort skip.
func IsContentTooShort(err error) bool {
	return GetCode(err) == ErrCodeContentTooShort
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RecallError
	if stderrors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCode extracts the error code from a RecallError anywhere in the chain.
// Returns empty string if none is found.
func GetCode(err error) string {
	var re *RecallError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}
