// Package errors provides the structured error type used across wasmreload.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// category (Type), a stable Code, and whether the caller may retry. Scan
// failures are recoverable and retried on the next poll; build and asset
// failures are not.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeScanFailed      = "ERR_SCAN_FAILED"
	ErrCodeBuildFailed     = "ERR_BUILD_FAILED"
	ErrCodeArtifactMissing = "ERR_ARTIFACT_MISSING"
	ErrCodeAssetsInvalid   = "ERR_ASSETS_INVALID"
	ErrCodeInvalidPath     = "ERR_INVALID_PATH"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// AppError is a structured error type with context.
type AppError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on Type and Code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath attaches the file or directory the error relates to.
func (e *AppError) WithPath(path string) *AppError {
	e.FilePath = path

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error. Scan passes treat these as retryable.
func NewIOError(code, message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *AppError {
	return &AppError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// BuildError is returned when the external toolchain fails. Output holds
// whatever the toolchain printed so it can be surfaced to the user.
type BuildError struct {
	*AppError
	Output string
}

// Unwrap exposes the embedded AppError to errors.As and errors.Is.
func (e *BuildError) Unwrap() error {
	return e.AppError
}

// NewBuildError creates a build error carrying the toolchain output.
func NewBuildError(code, message string, output []byte, cause error) *BuildError {
	return &BuildError{
		AppError: &AppError{
			Type:        ErrorTypeBuild,
			Code:        code,
			Message:     message,
			Cause:       cause,
			Recoverable: false,
		},
		Output: string(output),
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	return false
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type == ErrorTypeBuild
	}

	return false
}

// BuildOutput returns the toolchain output attached to err, if any.
func BuildOutput(err error) string {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Output
	}

	return ""
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path, reason string) *AppError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+reason).WithPath(path)
}

// ErrScanFailed wraps an I/O failure that aborted a scan pass.
func ErrScanFailed(path string, cause error) *AppError {
	return NewIOError(ErrCodeScanFailed, "scan failed", cause).WithPath(path)
}

// ErrArtifactMissing reports a build that exited cleanly without producing
// the expected artifact.
func ErrArtifactMissing(path string) *BuildError {
	be := NewBuildError(ErrCodeArtifactMissing, "artifact not found after build", nil, nil)
	be.FilePath = path

	return be
}

// ErrAssetsInvalid reports a static bundle that cannot be served.
func ErrAssetsInvalid(message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeIO,
		Code:        ErrCodeAssetsInvalid,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}
