package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"patientdocs/internal/http/middleware"
)

// Messages returned to clients. They are part of the public contract.
const (
	msgInvalidPDF     = "Please upload a valid PDF file."
	msgUploaded       = "File uploaded successfully"
	msgFileNotFound   = "File not found"
	msgDeleted        = "Document deleted successfully"
	msgInternal       = "internal server error"
	msgBadRequest     = "bad request"
	msgTooLarge       = "file too large"
	msgMethodNotAllow = "method not allowed"
	msgRouteNotFound  = "resource not found"
	msgDependencyDown = "dependency unavailable"
	msgInvalidLimit   = "invalid limit"
	msgInvalidOffset  = "invalid offset"
)

// errorPayload defines the standardized error response body.
// Error stays a plain string so clients can read body.error directly.
type errorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_FILE", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromCtx(c),
	})
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", msgBadRequest)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", msgRouteNotFound)
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", msgMethodNotAllow)
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", msgTooLarge)
		default:
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}
	}
}
