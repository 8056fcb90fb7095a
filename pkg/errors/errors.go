// Package errors provides structured error handling for the export pipeline
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeExtraction represents failures while pulling records from Salesforce
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypePersistence represents local file write failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeSync represents remote Drive synchronization failures
	ErrorTypeSync ErrorType = "sync"
	// ErrorTypeConfig represents configuration validation errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeAuthentication represents authentication errors
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypePermission represents permission errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeRateLimit represents rate limit errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeQuery represents SOQL query execution errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// NewExtractionError wraps a source-side failure for one Salesforce object.
func NewExtractionError(object string, cause error) *Error {
	return Wrap(cause, ErrorTypeExtraction, "failed to extract object "+object).
		WithDetail("object", object)
}

// NewPersistenceError wraps a local file write failure. Persistence errors
// are fatal to the run and never retried.
func NewPersistenceError(path string, cause error) *Error {
	return Wrap(cause, ErrorTypePersistence, "failed to write "+path).
		WithDetail("path", path)
}

// NewSyncError wraps a remote Drive failure. Sync errors are fatal by
// default; the local file written before the sync stage is preserved.
func NewSyncError(target string, cause error) *Error {
	return Wrap(cause, ErrorTypeSync, "failed to sync "+target).
		WithDetail("target", target)
}

// IsRetryable returns true if the error is retryable. Authentication,
// permission and configuration errors must fail immediately.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeQuery:
		return true
	case ErrorTypeExtraction:
		// An extraction wrapper is as retryable as its cause.
		if e.Cause != nil {
			var inner *Error
			if errors.As(e.Cause, &inner) {
				return IsRetryable(inner)
			}
		}
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// HasType checks whether any error in the chain carries the given type.
// Wrapping preserves causes, so a fatal authentication failure stays
// detectable under an extraction wrapper.
func HasType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if errors.As(err, &e) {
			if e.Type == errType {
				return true
			}
			err = e.Cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
