package serverutils

import (
	"errors"
	"log"

	"chatsync-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to the HTTP status it is reported with.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindAuth:
		return fiber.StatusUnauthorized
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindChannelUnavailable:
		return fiber.StatusServiceUnavailable
	case apperror.KindResponder:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into BaseResponse JSON.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
		}

		var ae *apperror.Error
		if errors.As(err, &ae) {
			code := StatusFor(ae.Kind)
			return ctx.Status(code).JSON(ErrorResponse(code, ae.Message))
		}

		log.Printf("[ERROR] %s %s: %v", ctx.Method(), ctx.Path(), err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "internal server error"))
	}
}
