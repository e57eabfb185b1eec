package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`

	// Fields maps request field names to what is wrong with them.
	Fields map[string]string `json:"fields,omitempty"`
}

// BadRequest returns a 400 Bad Request error response
func BadRequest(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusBadRequest, "Bad Request", message)
}

// Unauthorized returns a 401 Unauthorized error response
func Unauthorized(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusUnauthorized, "Unauthorized", message)
}

// Forbidden returns a 403 Forbidden error response
func Forbidden(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusForbidden, "Forbidden", message)
}

// NotFound returns a 404 Not Found error response
func NotFound(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusNotFound, "Not Found", message)
}

// Conflict returns a 409 Conflict error response
func Conflict(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusConflict, "Conflict", message)
}

// PreconditionFailed returns a 412 Precondition Failed error response
func PreconditionFailed(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusPreconditionFailed, "Precondition Failed", message)
}

// UnprocessableEntity returns a 422 Unprocessable Entity error response
func UnprocessableEntity(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusUnprocessableEntity, "Unprocessable Entity", message)
}

// ValidationFailed returns a 422 response listing the invalid fields
func ValidationFailed(c *fiber.Ctx, fields map[string]string) error {
	return errorResponseWithFields(c, fiber.StatusUnprocessableEntity, "Unprocessable Entity", "validation failed", fields)
}

// TooManyRequests returns a 429 Too Many Requests error response
func TooManyRequests(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusTooManyRequests, "Too Many Requests", message)
}

// InternalServerError returns a 500 Internal Server Error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusInternalServerError, "Internal Server Error", message)
}

// ErrorHandler renders errors escaping handlers in the same shape as the
// helpers above. Install it as fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return errorResponse(c, fe.Code, statusTitle(fe.Code), fe.Message)
	}
	return InternalServerError(c, "internal error")
}

func statusTitle(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusConflict:
		return "Conflict"
	case fiber.StatusPreconditionFailed:
		return "Precondition Failed"
	case fiber.StatusUnprocessableEntity:
		return "Unprocessable Entity"
	case fiber.StatusTooManyRequests:
		return "Too Many Requests"
	default:
		return "Internal Server Error"
	}
}

func errorResponse(c *fiber.Ctx, status int, title string, message string) error {
	return errorResponseWithFields(c, status, title, message, nil)
}

func errorResponseWithFields(c *fiber.Ctx, status int, title, message string, invalid map[string]string) error {
	response := ErrorResponse{
		Error:     title,
		Message:   message,
		RequestID: GetRequestID(c),
		Timestamp: time.Now(),
		Path:      c.Path(),
		Fields:    invalid,
	}

	fields := []logger.Field{
		logger.String("error", title),
		logger.String("message", message),
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", status),
		logger.String("user_ip", c.IP()),
	}

	log := GetLogger(c)
	if status >= fiber.StatusInternalServerError {
		log.Error("HTTP error response", fields...)
	} else {
		log.Warn("HTTP error response", fields...)
	}

	return c.Status(status).JSON(response)
}
