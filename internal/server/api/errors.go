package api

import (
	"errors"
	"log/slog"
	"net/http"

	"vidadmin/internal/server/service"

	"github.com/labstack/echo/v4"
)

// Error codes returned in {"error": {"code": ...}} bodies.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ErrorID string `json:"errorId,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var verr *service.ValidationError
	var uerr *service.UpstreamError

	switch {
	case errors.As(err, &verr):
		return writeError(c, http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return writeError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, service.ErrFileTooLarge):
		return writeError(c, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "file exceeds maximum allowed size")
	case errors.As(err, &uerr):
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: errorDetail{
			Code:    CodeUpstream,
			Message: uerr.Op + " failed",
			ErrorID: uerr.ID,
		}})
	default:
		slog.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		return writeError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
