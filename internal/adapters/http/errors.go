package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errGone returns a 410 error.
func errGone(c *fiber.Ctx, msg string) error {
	return newError(c, 410, "gone", msg)
}

// errFromDomain maps domain errors onto HTTP statuses.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidParams),
		errors.Is(err, domain.ErrNoSources),
		errors.Is(err, domain.ErrInvalidGeohash):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrViewNotFound),
		errors.Is(err, domain.ErrSourceNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrViewServiceClosed):
		return newError(c, fiber.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, domain.ErrSurfaceReleased):
		return errGone(c, err.Error())
	default:
		return errInternal(c, err.Error())
	}
}
