package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/digiworld/backoffice/internal/pkg/env"
)

// HandleHello is the API health check
func HandleHello(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "DigiWorld back office API",
		"env":     env.GetEnv("APP_ENV", "prod"),
	})
}
