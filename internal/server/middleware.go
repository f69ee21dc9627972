package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"twin/internal/errors"
	"twin/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyProjectRoot is the key for the served project root in context
	ContextKeyProjectRoot contextKey = "project_root"
)

// contextEnricher adds common values to the request context
func contextEnricher(projectRoot string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			reqID, _ := c.Get("request_id").(string)
			if reqID == "" {
				reqID = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if reqID != "" {
				ctx = context.WithValue(ctx, ContextKeyRequestID, reqID)
			}
			ctx = context.WithValue(ctx, ContextKeyProjectRoot, projectRoot)

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ErrorHandler renders every error as an errors.HTTPErrorResponse
func ErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	body := errors.HTTPErrorResponse{
		Error: errors.ErrorInfo{Code: errors.ErrInternal, Message: "Internal server error"},
	}

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		switch msg := he.Message.(type) {
		case errors.HTTPErrorResponse:
			body = msg
		case string:
			body.Error.Message = msg
			body.Error.Code = codeForStatus(code)
		default:
			body.Error.Message = http.StatusText(code)
			body.Error.Code = codeForStatus(code)
		}
	} else if te, ok := errors.As(err); ok {
		if he, ok := errors.ToHTTPError(te).(*echo.HTTPError); ok {
			code = he.Code
			body, _ = he.Message.(errors.HTTPErrorResponse)
		}
	}

	log := logger.GetLogger(c).WithField("status", code)
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("Request error")
	} else {
		log.WithError(err).Debug("Request error")
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}

func codeForStatus(status int) errors.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return errors.ErrInvalidInput
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return errors.ErrInvalidPath
	default:
		return errors.ErrInternal
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// GetProjectRoot retrieves the served project root from context
func GetProjectRoot(ctx context.Context) string {
	if root, ok := ctx.Value(ContextKeyProjectRoot).(string); ok {
		return root
	}
	return ""
}
