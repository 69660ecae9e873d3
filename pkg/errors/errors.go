// Package errors implements the run-ending error taxonomy described in
// spec.md §7: config errors, input-data errors, step runtime errors,
// and output errors. Every AppError carries a severity and a wrapped
// cause, never silently swallowed.
package errors

import (
	"fmt"
	"time"
)

// Kind classifies an AppError into one of the four run-ending families
// spec.md §7 names.
type Kind string

const (
	KindConfig    Kind = "config"
	KindInputData Kind = "input_data"
	KindStep      Kind = "step"
	KindOutput    Kind = "output"
)

// Severity levels for errors, mirroring the teacher's pkg/errors
// taxonomy but trimmed to the ones this engine actually produces.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// AppError is the standardized error type returned across every
// component boundary in the engine.
type AppError struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
	Severity  Severity
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// New creates an AppError with medium severity.
func New(kind Kind, component, operation, message string) *AppError {
	return &AppError{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error { return e.Cause }

// Wrap attaches a cause and returns e for chaining.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithSeverity sets the severity level and returns e for chaining.
func (e *AppError) WithSeverity(sev Severity) *AppError {
	e.Severity = sev
	return e
}

// WithMetadata attaches a key/value pair and returns e for chaining.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	e.Metadata[key] = value
	return e
}

// ConfigError creates a config-kind error (spec.md §7: missing field,
// unknown field, out-of-range value, dangling reference).
func ConfigError(operation, message string) *AppError {
	return New(KindConfig, "config", operation, message).WithSeverity(SeverityHigh)
}

// InputDataError creates an input-data-kind error (spec.md §7:
// unreadable file, malformed FASTQ, unequal read counts).
func InputDataError(operation, message string) *AppError {
	return New(KindInputData, "input", operation, message).WithSeverity(SeverityCritical)
}

// StepError creates a step-runtime-kind error (spec.md §7: a step's
// apply returning an error).
func StepError(operation, message string) *AppError {
	return New(KindStep, "step", operation, message)
}

// OutputError creates an output-kind error (spec.md §7: write/flush
// failure; the "run complete" marker must not be written).
func OutputError(operation, message string) *AppError {
	return New(KindOutput, "output", operation, message).WithSeverity(SeverityCritical)
}

// AsAppError extracts an *AppError via a type assertion.
func AsAppError(err error) (*AppError, bool) {
	ae, ok := err.(*AppError)
	return ae, ok
}
