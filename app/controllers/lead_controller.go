package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/leads"
)

const leadsPageSize = 50

// LeadController handles the public contact form and the admin lead list
type LeadController struct {
	svc   *leads.Service
	leads repository.LeadRepository
}

func NewLeadController(svc *leads.Service, repo repository.LeadRepository) *LeadController {
	return &LeadController{svc: svc, leads: repo}
}

func (lc *LeadController) HandleCreate(c *fiber.Ctx) error {
	var sub leads.Submission
	if err := c.BodyParser(&sub); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	lead, warnings, err := lc.svc.Capture(c.UserContext(), sub, ClientIP(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Thank you! We will get back to you shortly.",
		"id":       lead.ID,
		"warnings": warnings,
	})
}

// HandleList pages through leads, newest first
func (lc *LeadController) HandleList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	items, err := lc.leads.List(c.UserContext(), (page-1)*leadsPageSize, leadsPageSize)
	if err != nil {
		return respondError(c, err)
	}
	total, err := lc.leads.Count(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"data":  items,
		"page":  page,
		"total": total,
	})
}

// HandlePackages returns the static package catalogue
func HandlePackages(c *fiber.Ctx) error {
	return c.JSON(models.Packages())
}
