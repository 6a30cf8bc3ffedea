package serverutils

import (
	"errors"

	"hiring-chat-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// HTTPStatus maps a domain error to its HTTP status code.
func HTTPStatus(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch apperr.Code(err) {
	case apperr.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.CodeNotAParticipant:
		return fiber.StatusForbidden
	case apperr.CodeConversationNotFound, apperr.CodeMessageNotFound:
		return fiber.StatusNotFound
	case apperr.CodeInvalidTransition:
		return fiber.StatusConflict
	case apperr.CodeInvalidArgument, apperr.CodeMalformedEvent:
		return fiber.StatusUnprocessableEntity
	case apperr.CodeStorageUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by downstream handlers into
// ErrorResponse bodies.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := HTTPStatus(err)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			message = "internal server error"
		}
		return ctx.Status(status).JSON(ErrorResponse(status, message))
	}
}
