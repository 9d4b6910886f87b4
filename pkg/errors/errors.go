// Package errors provides a structured error system for productcache with error codes, categories, and context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for productcache operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Validation Errors
	ErrCodeInvalidKey       ErrorCode = "INVALID_KEY"
	ErrCodeInvalidValue     ErrorCode = "INVALID_VALUE"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidQuery     ErrorCode = "INVALID_QUERY"

	// Lookup Errors
	ErrCodeProductNotFound ErrorCode = "PRODUCT_NOT_FOUND"

	// Upstream Store Errors
	ErrCodeStoreRead  ErrorCode = "STORE_READ"
	ErrCodeStoreWrite ErrorCode = "STORE_WRITE"

	// Internal System Errors
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
	ErrCodeUnknownError   ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// AppError represents a structured error with context and metadata.
type AppError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// Error handling hints
	UserFacing bool `json:"user_facing"`
	HTTPStatus int  `json:"http_status,omitempty"`

	// Debug information
	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *AppError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("AppError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error with default values derived from the code.
func NewError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		UserFacing: IsUserFacingByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Newf creates a new error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new error with the given code around cause.
func Wrap(cause error, code ErrorCode, message string) *AppError {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeMissingConfig, ErrCodeConfigValidation, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeInvalidKey, ErrCodeInvalidValue, ErrCodeValidationFailed, ErrCodeInvalidQuery:
		return CategoryValidation
	case ErrCodeProductNotFound:
		return CategoryNotFound
	case ErrCodeStoreRead, ErrCodeStoreWrite:
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	switch GetCategory(code) {
	case CategoryValidation, CategoryNotFound, CategoryConfiguration:
		return true
	default:
		return false
	}
}

// GetDefaultHTTPStatus returns the default HTTP status for an error code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeInvalidConfig:    400, // Bad Request
		ErrCodeConfigValidation: 400,
		ErrCodeInvalidKey:       400,
		ErrCodeInvalidValue:     400,
		ErrCodeValidationFailed: 400,
		ErrCodeInvalidQuery:     400,
		ErrCodeProductNotFound:  404, // Not Found
		ErrCodeStoreRead:        502, // Bad Gateway
		ErrCodeStoreWrite:       502,
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return 500
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *AppError) WithOperation(operation string) *AppError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithStack captures the current stack trace
func (e *AppError) WithStack() *AppError {
	e.Stack = CaptureStack(2)
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or ErrCodeUnknownError.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeUnknownError
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &AppError{Code: code})
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Category == CategoryValidation
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Category == CategoryNotFound
}

// HTTPStatusOf maps err to an HTTP status code.
func HTTPStatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return 500
}

// UserFacingMessage returns a simplified message suitable for API clients
func (e *AppError) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred. Please contact support if this persists."
	}
	return e.Message
}
