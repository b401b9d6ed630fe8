package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/digiworld/backoffice/internal/pkg/session"
	"github.com/digiworld/backoffice/internal/pkg/usercontext"
)

// HeaderSessionExpires tells the admin UI when the idle session will lapse.
const HeaderSessionExpires = "X-Session-Expires-At"

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": msg,
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAdmin verifies the bearer token, loads and extends its session and stores the
// admin context for the handlers. Anything else is answered with JSON 401.
func RequireAdmin(store *session.Store, tokens *session.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := BearerToken(c)
		if raw == "" {
			return unauthorized(c, "login required")
		}

		sessionID, err := tokens.Parse(raw)
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		sess, err := store.Touch(sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return unauthorized(c, "session expired")
			}
			log.Errorf("[Auth] session lookup failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "session_unavailable",
				"message": "session store unavailable",
			})
		}

		usercontext.Set(c, usercontext.AdminContext{
			AdminID:   sess.AdminID,
			Email:     sess.Email,
			SessionID: sess.ID,
			ExpiresAt: sess.ExpiresAt,
		})
		c.Set(HeaderSessionExpires, sess.ExpiresAt.UTC().Format(time.RFC3339))

		return c.Next()
	}
}
