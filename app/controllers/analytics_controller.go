package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/digiworld/backoffice/internal/pkg/analytics"
)

type AnalyticsController struct {
	svc *analytics.Service
}

func NewAnalyticsController(svc *analytics.Service) *AnalyticsController {
	return &AnalyticsController{svc: svc}
}

// HandleStats serves the dashboard figures for ?range=
func (ac *AnalyticsController) HandleStats(c *fiber.Ctx) error {
	r, err := analytics.ParseRange(c.Query("range"))
	if err != nil {
		return respondError(c, err)
	}
	stats, err := ac.svc.Stats(c.UserContext(), r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
