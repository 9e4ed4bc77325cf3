package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/store"
)

type messageResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// ErrorHandler writes every error as a JSON message and logs server errors.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := "something went terribly wrong"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
			if he.Internal != nil {
				err = he.Internal
			}
		}
		fields := []zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("handler error", fields...)
		} else {
			logger.Debug("handler error", fields...)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, messageResponse{Message: message})
		}
		if err != nil {
			logger.Error("writing error response", zap.Error(err))
		}
	}
}

func newError(err error, status int, message string) error {
	e := echo.NewHTTPError(status, message)
	if err != nil {
		e = e.WithInternal(err)
	}
	return e
}

// storeError maps a store lookup failure to 404 or 500.
func storeError(err error, message string) error {
	if store.IsRecordNotFound(err) {
		return newError(err, http.StatusNotFound, err.Error())
	}
	if isUniqueConstraintError(err) {
		return newError(err, http.StatusConflict, message)
	}
	return newError(err, http.StatusInternalServerError, message)
}

// renderResult writes the outcome of a config update. A failed update
// carries the validation errors of entity, when there are any.
func renderResult(c echo.Context, result *command.Result, entity cruise.Validatable) error {
	resp := messageResponse{Message: result.Message()}
	if !result.IsSuccessful() && entity != nil {
		resp.Errors = cruise.AllErrors(entity)
	}
	return c.JSON(result.Status(), resp)
}

func isUniqueConstraintError(err error) bool {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
