package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
)

// SettingsController exposes the business settings printed on receipts
type SettingsController struct {
	repo repository.SettingRepository
}

func NewSettingsController(repo repository.SettingRepository) *SettingsController {
	return &SettingsController{repo: repo}
}

func (sc *SettingsController) HandleGet(c *fiber.Ctx) error {
	s, err := sc.repo.Get(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s)
}

func (sc *SettingsController) HandleUpdate(c *fiber.Ctx) error {
	var s models.BusinessSettings
	if err := c.BodyParser(&s); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if err := s.Validate(); err != nil {
		return respondError(c, apperr.Validation("%s", err.Error()))
	}
	if err := sc.repo.Save(c.UserContext(), s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(s)
}
