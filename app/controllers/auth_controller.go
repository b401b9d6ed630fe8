package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/session"
	"github.com/digiworld/backoffice/internal/pkg/usercontext"
)

// AuthController issues and revokes admin sessions
type AuthController struct {
	admins repository.AdminRepository
	store  *session.Store
	tokens *session.Tokens
}

func NewAuthController(admins repository.AdminRepository, store *session.Store, tokens *session.Tokens) *AuthController {
	return &AuthController{admins: admins, store: store, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func loginFailed(c *fiber.Ctx) error {
	// never tell which part was wrong
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": "There is a problem with the login process",
	})
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "email and password are required"})
	}

	admin, err := ac.admins.GetByEmail(c.UserContext(), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return loginFailed(c)
		}
		return respondError(c, err)
	}
	if !admin.CheckPassword(req.Password) {
		log.Warnf("[Auth] Failed login for %s from %s", email, ClientIP(c))
		return loginFailed(c)
	}

	sess, err := ac.store.Create(admin.ID, admin.Email)
	if err != nil {
		log.Errorf("[Auth] Failed to create session: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session_unavailable", "message": "session store unavailable"})
	}
	token, err := ac.tokens.Sign(sess)
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.admins.TouchLogin(c.UserContext(), admin.ID, time.Now().UTC()); err != nil {
		log.Warnf("[Auth] Failed to record login time for admin %d: %v", admin.ID, err)
	}

	log.Infof("[Auth] Admin %d logged in", admin.ID)
	return c.JSON(fiber.Map{
		"token":        token,
		"email":        admin.Email,
		"expires_at":   sess.ExpiresAt,
		"idle_timeout": int(ac.store.Idle().Seconds()),
	})
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	admin, ok := usercontext.Get(c)
	if !ok {
		return loginFailed(c)
	}
	if err := ac.store.Destroy(admin.SessionID); err != nil {
		log.Warnf("[Auth] Failed to destroy session of admin %d: %v", admin.AdminID, err)
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	admin, ok := usercontext.Get(c)
	if !ok {
		return loginFailed(c)
	}
	return c.JSON(admin)
}
