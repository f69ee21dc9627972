// Package errors provides typed error definitions for twin.
// Every failure that crosses a component boundary is a *TwinError carrying
// an ErrorCode, so callers can classify it without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique identifier for different error types
type ErrorCode string

const (
	// Lifecycle errors
	ErrVcsOperation             ErrorCode = "VCS_OPERATION"
	ErrLink                     ErrorCode = "LINK"
	ErrEnvironmentNotFound      ErrorCode = "ENVIRONMENT_NOT_FOUND"
	ErrEnvironmentAlreadyExists ErrorCode = "ENVIRONMENT_ALREADY_EXISTS"
	ErrHook                     ErrorCode = "HOOK"
	ErrPersistence              ErrorCode = "PERSISTENCE"
	ErrLock                     ErrorCode = "LOCK"
	ErrRollback                 ErrorCode = "ROLLBACK"

	// Configuration errors
	ErrConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrConfigParse      ErrorCode = "CONFIG_PARSE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Database errors
	ErrDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	ErrDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	ErrDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	ErrOperationNotFound  ErrorCode = "OPERATION_NOT_FOUND"

	// Validation errors
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrInvalidPath  ErrorCode = "INVALID_PATH"

	// Internal errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrTimeout  ErrorCode = "TIMEOUT"
)

// TwinError represents a structured error with additional context
type TwinError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *TwinError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *TwinError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *TwinError) WithContext(key string, value interface{}) *TwinError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause error
func (e *TwinError) WithCause(cause error) *TwinError {
	e.Cause = cause
	return e
}

// GetHTTPStatus returns the appropriate HTTP status code for this error
func (e *TwinError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}

	switch e.Code {
	case ErrEnvironmentNotFound, ErrConfigNotFound, ErrOperationNotFound:
		return http.StatusNotFound
	case ErrEnvironmentAlreadyExists, ErrLock:
		return http.StatusConflict
	case ErrInvalidInput, ErrInvalidPath, ErrConfigValidation, ErrConfigParse:
		return http.StatusBadRequest
	case ErrHook:
		return http.StatusUnprocessableEntity
	case ErrTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new TwinError
func New(code ErrorCode, message string) *TwinError {
	return &TwinError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails creates a new TwinError with details
func NewWithDetails(code ErrorCode, message, details string) *TwinError {
	return &TwinError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap creates a new TwinError that wraps an existing error
func Wrap(code ErrorCode, message string, cause error) *TwinError {
	return &TwinError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetails creates a new TwinError with details that wraps an existing error
func WrapWithDetails(code ErrorCode, message, details string, cause error) *TwinError {
	return &TwinError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// As finds the first TwinError in err's chain.
func As(err error) (*TwinError, bool) {
	var te *TwinError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsTwinError checks if an error is, or wraps, a TwinError
func IsTwinError(err error) bool {
	_, ok := As(err)
	return ok
}

// GetCode extracts the error code of the outermost TwinError in err's chain
func GetCode(err error) ErrorCode {
	if te, ok := As(err); ok {
		return te.Code
	}
	return ""
}

// HasCode reports whether any TwinError in err's chain carries code.
// A rollback error therefore still matches the code of the failure that
// triggered it.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if te, ok := err.(*TwinError); ok && te.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
