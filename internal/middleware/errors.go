package middleware

import (
	"context"
	"errors"

	"github.com/bilgisen/redflag-cms/internal/remote"
	"github.com/bilgisen/redflag-cms/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error returned by the stores to an HTTP status code.
func StatusFor(err error) int {
	var (
		fe *fiber.Error
		ve *storage.ValidationError
		le *storage.ListError
		te *remote.TransportError
	)

	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, remote.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, remote.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, remote.ErrAuth):
		// The upstream rejected our credential, not the caller's.
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &te):
		switch {
		case te.StatusCode == fiber.StatusTooManyRequests || te.StatusCode == fiber.StatusForbidden:
			return fiber.StatusTooManyRequests
		case te.StatusCode == 0:
			return fiber.StatusServiceUnavailable
		default:
			return fiber.StatusBadGateway
		}
	case errors.As(err, &le):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler is the fiber error handler. Store errors keep their kind so
// clients can tell a retryable conflict from a permanent failure. Logging is
// left to the request logger, which records the error with the final status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)

	body := fiber.Map{"error": err.Error()}
	var (
		ve *storage.ValidationError
		le *storage.ListError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &fe):
		body["error"] = fe.Message
	case errors.As(err, &ve):
		body["error"] = "Validation failed"
		body["fields"] = ve.Fields
	case errors.As(err, &le):
		body["failed"] = le.Failed
	}
	if code != fiber.StatusInternalServerError {
		body["retryable"] = storage.IsRetryable(err)
	} else {
		body["error"] = "Internal Server Error"
	}

	return c.Status(code).JSON(body)
}
