package response

import (
	"errors"

	"github.com/edutalk/api/internal/model"
	"github.com/gofiber/fiber/v2"
)

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeQueueFull       = "QUEUE_FULL"
	CodeServiceError    = "SERVICE_ERROR"
)

// ErrorResponse is the body of every synchronous error
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func ValidationError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
}

func QueueFull(c *fiber.Ctx) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeQueueFull, "Server is busy, please try again shortly")
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message)
}

// FromError maps a service error to its HTTP response. Only request errors expose
// their message; everything else is summarized.
func FromError(c *fiber.Ctx, err error) error {
	var re *model.RequestError
	switch {
	case errors.As(err, &re):
		return ValidationError(c, re.Message)
	case errors.Is(err, model.ErrInvalidRequest):
		return ValidationError(c, "Invalid request")
	case errors.Is(err, model.ErrNotFound):
		return NotFound(c, "Not found")
	case errors.Is(err, model.ErrQueueFull):
		return QueueFull(c)
	case errors.Is(err, model.ErrScript):
		return Error(c, fiber.StatusBadGateway, model.CodeScriptError, "Script generation failed")
	default:
		return ServiceError(c, "Internal server error")
	}
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
