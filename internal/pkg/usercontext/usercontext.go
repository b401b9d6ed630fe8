package usercontext

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// AdminContext represents the authenticated admin of a request
type AdminContext struct {
	AdminID   uint      `json:"admin_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Set stores the admin context on the request
func Set(c *fiber.Ctx, ac AdminContext) {
	c.Locals(KeyAdmin, ac)
}

// Get retrieves the admin context from fiber context.
// The second result is false for anonymous requests.
func Get(c *fiber.Ctx) (AdminContext, bool) {
	ac, ok := c.Locals(KeyAdmin).(AdminContext)
	return ac, ok
}

// IsLoggedIn checks if the request carries a live admin session
func IsLoggedIn(c *fiber.Ctx) bool {
	_, ok := Get(c)
	return ok
}

// GetAdminID returns the current admin's ID, or 0 if not logged in
func GetAdminID(c *fiber.Ctx) uint {
	ac, _ := Get(c)
	return ac.AdminID
}
