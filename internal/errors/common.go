package errors

import (
	"fmt"
	"strings"
)

// VCS errors
func VcsOperation(operation, stderr string, cause error) *TwinError {
	e := WrapWithDetails(ErrVcsOperation, fmt.Sprintf("git %s failed", operation),
		strings.TrimSpace(stderr), cause)
	return e.WithContext("operation", operation)
}

// Link errors
func Link(path, reason string, cause error) *TwinError {
	return WrapWithDetails(ErrLink, reason, fmt.Sprintf("Path: %s", path), cause).
		WithContext("path", path)
}

// Environment errors
func EnvironmentNotFound(name string) *TwinError {
	return NewWithDetails(ErrEnvironmentNotFound, "Environment not found",
		fmt.Sprintf("Environment: %s", name)).WithContext("environment", name)
}

func EnvironmentAlreadyExists(name string) *TwinError {
	return NewWithDetails(ErrEnvironmentAlreadyExists, "Environment already exists",
		fmt.Sprintf("Environment: %s", name)).WithContext("environment", name)
}

// Hook errors
func Hook(phase, command string, exitCode int, timedOut bool, stderr string) *TwinError {
	msg := fmt.Sprintf("%s hook failed with exit code %d", phase, exitCode)
	if timedOut {
		msg = fmt.Sprintf("%s hook timed out", phase)
	}
	e := NewWithDetails(ErrHook, msg, strings.TrimSpace(stderr))
	return e.WithContext("phase", phase).
		WithContext("command", command).
		WithContext("exit_code", exitCode).
		WithContext("timed_out", timedOut)
}

func HookSpawn(phase, command string, cause error) *TwinError {
	return WrapWithDetails(ErrHook, fmt.Sprintf("%s hook could not be started", phase),
		fmt.Sprintf("Command: %s", command), cause).
		WithContext("phase", phase).
		WithContext("command", command)
}

// Persistence errors
func Persistence(path string, cause error) *TwinError {
	return WrapWithDetails(ErrPersistence, "Failed to persist registry",
		fmt.Sprintf("Path: %s", path), cause)
}

func Lock(path string, cause error) *TwinError {
	return WrapWithDetails(ErrLock, "Failed to acquire registry lock",
		fmt.Sprintf("Path: %s", path), cause)
}

// Rollback wraps the failure that triggered a rollback together with any
// compensations that could not be applied.
func Rollback(cause error, failed []string) *TwinError {
	e := Wrap(ErrRollback, "Operation rolled back", cause)
	if len(failed) > 0 {
		e.Details = fmt.Sprintf("incomplete compensation: %s", strings.Join(failed, "; "))
		e.WithContext("failed_compensations", failed)
	}
	return e
}

// Configuration errors
func ConfigNotFound(path string) *TwinError {
	return NewWithDetails(ErrConfigNotFound, "Configuration file not found", fmt.Sprintf("Path: %s", path))
}

func ConfigParseError(path string, cause error) *TwinError {
	return WrapWithDetails(ErrConfigParse, "Failed to parse configuration",
		fmt.Sprintf("Path: %s", path), cause)
}

func ConfigValidationError(field, reason string) *TwinError {
	return NewWithDetails(ErrConfigValidation, "Configuration validation failed",
		fmt.Sprintf("Field: %s, Reason: %s", field, reason))
}

// Database errors
func DatabaseConnectionError(cause error) *TwinError {
	return Wrap(ErrDatabaseConnection, "Failed to connect to database", cause)
}

func DatabaseQueryError(query string, cause error) *TwinError {
	return WrapWithDetails(ErrDatabaseQuery, "Database query failed",
		fmt.Sprintf("Query: %s", query), cause)
}

func OperationNotFound(id string) *TwinError {
	return NewWithDetails(ErrOperationNotFound, "Operation not found",
		fmt.Sprintf("Operation: %s", id)).WithContext("id", id)
}

func DatabaseMigrationError(cause error) *TwinError {
	return Wrap(ErrDatabaseMigration, "Database migration failed", cause)
}

// Validation errors
func InvalidInput(input, expected string) *TwinError {
	return NewWithDetails(ErrInvalidInput, "Invalid input",
		fmt.Sprintf("Input: %s, Expected: %s", input, expected))
}

func InvalidPath(path, reason string) *TwinError {
	return NewWithDetails(ErrInvalidPath, "Invalid path",
		fmt.Sprintf("Path: %s, Reason: %s", path, reason))
}

func InternalError(details string, cause error) *TwinError {
	return WrapWithDetails(ErrInternal, "Internal error", details, cause)
}
