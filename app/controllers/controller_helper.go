package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
)

// respondError maps service errors to the JSON error envelope.
func respondError(c *fiber.Ctx, err error) error {
	var over *ledger.OverpaymentError
	if errors.As(err, &over) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":       "overpayment",
			"message":     over.Error(),
			"balance_due": over.Balance,
			"amount":      over.Amount,
			"excess":      over.Excess(),
			"resolutions": []ledger.Resolution{ledger.ResolutionCarryForward, ledger.ResolutionCorrectAmount},
		})
	}

	status := fiber.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = fiber.StatusBadRequest
	case apperr.KindNotFound:
		status = fiber.StatusNotFound
	case apperr.KindConflict:
		status = fiber.StatusConflict
	case apperr.KindPrecondition:
		status = fiber.StatusPreconditionFailed
	case apperr.KindUpstream:
		status = fiber.StatusBadGateway
	default:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = fiber.StatusServiceUnavailable
			return c.Status(status).JSON(fiber.Map{"error": "timeout", "message": "request timed out"})
		}
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal_server_error", "message": "Internal server error"})
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   string(apperr.KindOf(err)),
		"message": apperr.MessageOf(err),
	})
}

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation("%s must be a positive number", name)
	}
	return uint(v), nil
}

// ClientIP is the caller address as fiber resolves it. Proxy headers count only when
// the app is configured with a ProxyHeader and the request comes from a trusted proxy.
func ClientIP(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.IP(), "::ffff:")
}
