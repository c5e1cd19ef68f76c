// Package errors provides a lightweight structured error type (AgentifyError)
// for category-based classification and retry semantics in the compile
// orchestration flow, its HTTP adapters, and the CLI.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an Agentify error for classification.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Local build errors. CategoryToolchain is the expected fallback trigger:
	// it is logged and escalated to remote dispatch, never surfaced alone.
	CategoryToolchain ErrorCategory = "toolchain"
	CategoryCompile   ErrorCategory = "compile"

	// Remote dispatch and polling errors
	CategoryDispatch ErrorCategory = "dispatch"
	CategoryNetwork  ErrorCategory = "network"
	CategoryTimeout  ErrorCategory = "timeout"

	// Artifact resolution errors
	CategoryNotFound  ErrorCategory = "not_found"
	CategoryNotReady  ErrorCategory = "not_ready"
	CategoryIntegrity ErrorCategory = "integrity"

	// Runtime and infrastructure errors
	CategoryStorage  ErrorCategory = "storage"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// AgentifyError is a structured error with category, retryability, and context.
type AgentifyError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for AgentifyError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *AgentifyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *AgentifyError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *AgentifyError) WithContext(key string, value any) *AgentifyError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new AgentifyError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *AgentifyError {
	return &AgentifyError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new AgentifyError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *AgentifyError {
	return &AgentifyError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// Retryable creates a new retryable AgentifyError.
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *AgentifyError {
	return &AgentifyError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}

// WrapRetryable creates a new retryable AgentifyError that wraps an existing error.
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *AgentifyError {
	return &AgentifyError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	var ae *AgentifyError
	if stderrors.As(err, &ae) {
		return ae.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AgentifyError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns
// CategoryInternal if the chain contains no AgentifyError.
func GetCategory(err error) ErrorCategory {
	var ae *AgentifyError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return CategoryInternal
}

// InvalidConfig creates a new validation error for malformed agent input.
func InvalidConfig(message string) *AgentifyError {
	return &AgentifyError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// ToolchainUnavailable creates the expected local-build failure that
// triggers fallback to remote dispatch.
func ToolchainUnavailable(message string) *AgentifyError {
	return &AgentifyError{
		Category:  CategoryToolchain,
		Severity:  SeverityInfo,
		Message:   message,
		Retryable: false,
	}
}

// DispatchError creates a terminal remote-trigger failure.
func DispatchError(message string) *AgentifyError {
	return &AgentifyError{
		Category:  CategoryDispatch,
		Severity:  SeverityError,
		Message:   message,
		Retryable: false,
	}
}

// NotFound creates a not-found error for an absent job or artifact.
func NotFound(resource string) *AgentifyError {
	return (&AgentifyError{
		Category:  CategoryNotFound,
		Severity:  SeverityError,
		Message:   resource + " not found",
		Retryable: false,
	}).WithContext("resource", resource)
}

// NotReady signals that the resolver was called before the job completed.
func NotReady(message string) *AgentifyError {
	return &AgentifyError{
		Category:  CategoryNotReady,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// Integrity signals a run that succeeded without producing a matching
// artifact. Terminal, surfaced distinctly from an ordinary build failure.
func Integrity(message string) *AgentifyError {
	return &AgentifyError{
		Category:  CategoryIntegrity,
		Severity:  SeverityError,
		Message:   message,
		Retryable: false,
	}
}
