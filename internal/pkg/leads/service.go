// Package leads captures contact form submissions from the public site.
package leads

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/hcaptcha"
	"github.com/digiworld/backoffice/internal/pkg/mail"
	"github.com/digiworld/backoffice/internal/pkg/metrics"
)

const (
	notificationTemplate = "lead_notification"
	notifyTimeout        = 15 * time.Second
)

// Submission is the raw contact form.
type Submission struct {
	Name         string `json:"name" form:"name"`
	MobileNumber string `json:"mobile_number" form:"mobile_number"`
	Email        string `json:"email" form:"email"`
	Place        string `json:"place" form:"place"`
	CaptchaToken string `json:"h-captcha-response" form:"h-captcha-response"`
}

type Service struct {
	leads    repository.LeadRepository
	settings repository.SettingRepository
	captcha  *hcaptcha.Verifier
	mailer   mail.Sender
	views    fiber.Views
	notifyTo string
	metrics  *metrics.Collector
}

// Config carries the optional collaborators. Zero values disable the related step.
type Config struct {
	Captcha  *hcaptcha.Verifier
	Mailer   mail.Sender
	Views    fiber.Views
	NotifyTo string
	Metrics  *metrics.Collector
}

func NewService(leads repository.LeadRepository, settings repository.SettingRepository, cfg Config) *Service {
	return &Service{
		leads:    leads,
		settings: settings,
		captcha:  cfg.Captcha,
		mailer:   cfg.Mailer,
		views:    cfg.Views,
		notifyTo: strings.TrimSpace(cfg.NotifyTo),
		metrics:  cfg.Metrics,
	}
}

// Capture verifies and stores a lead. The notification email is best effort: when it
// fails the lead is kept and a warning is returned.
func (s *Service) Capture(ctx context.Context, sub Submission, remoteIP string) (*models.Lead, []string, error) {
	if s.captcha.Enabled() {
		if err := s.captcha.Verify(ctx, sub.CaptchaToken, remoteIP); err != nil {
			if errors.Is(err, hcaptcha.ErrEmptyToken) || errors.Is(err, hcaptcha.ErrRejected) {
				return nil, nil, apperr.Validation("please complete the captcha")
			}
			return nil, nil, apperr.Upstream(err, "captcha verification is unavailable")
		}
	}

	lead := &models.Lead{
		Name:         strings.TrimSpace(sub.Name),
		MobileNumber: strings.TrimSpace(sub.MobileNumber),
		Email:        strings.ToLower(strings.TrimSpace(sub.Email)),
		Place:        strings.TrimSpace(sub.Place),
		IPAddress:    remoteIP,
	}
	if err := lead.Validate(); err != nil {
		return nil, nil, apperr.Validation("%s", err.Error())
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, nil, err
	}
	s.metrics.LeadCaptured()
	log.Infof("[Leads] New lead %d from %s", lead.ID, lead.Place)

	var warnings []string
	if err := s.notify(ctx, lead); err != nil {
		log.Warnf("[Leads] Notification for lead %d not sent: %v", lead.ID, err)
		warnings = append(warnings, "notification email could not be sent")
	}
	return lead, warnings, nil
}

func (s *Service) notify(ctx context.Context, lead *models.Lead) error {
	if s.mailer == nil || s.notifyTo == "" || s.views == nil {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.LeadNotifications {
		return nil
	}

	var body bytes.Buffer
	err = s.views.Render(&body, notificationTemplate, fiber.Map{
		"Lead":    lead,
		"Company": settings.CompanyName,
	})
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.mailer.Send(sendCtx, s.notifyTo, "New enquiry from "+lead.Name, body.String()); err != nil {
		if errors.Is(err, mail.ErrDisabled) {
			return nil
		}
		return apperr.Upstream(err, "lead notification failed")
	}
	return nil
}
