package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorResponse represents the structure of error responses sent to clients
type HTTPErrorResponse struct {
	Error   ErrorInfo              `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ErrorInfo contains the core error information
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ToHTTPError converts a TwinError to an Echo HTTP error
func ToHTTPError(err error) error {
	if te, ok := As(err); ok {
		status := te.GetHTTPStatus()
		// A rollback keeps the status of the failure that caused it.
		if te.Code == ErrRollback {
			if inner, ok := As(te.Cause); ok {
				status = inner.GetHTTPStatus()
			}
		}
		details := te.Details
		if te.Cause != nil {
			if details != "" {
				details += ": "
			}
			details += te.Cause.Error()
		}
		return echo.NewHTTPError(status, HTTPErrorResponse{
			Error: ErrorInfo{
				Code:    te.Code,
				Message: te.Message,
				Details: details,
			},
			Context: te.Context,
		})
	}

	return echo.NewHTTPError(http.StatusInternalServerError, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrInternal,
			Message: "Internal server error",
			Details: err.Error(),
		},
	})
}

// BadRequest creates a 400 Bad Request error
func BadRequest(message, details string) error {
	return echo.NewHTTPError(http.StatusBadRequest, HTTPErrorResponse{
		Error: ErrorInfo{
			Code:    ErrInvalidInput,
			Message: message,
			Details: details,
		},
	})
}
