package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/digiworld/backoffice/app/controllers"
	"github.com/digiworld/backoffice/internal/pkg/middleware"
	"github.com/digiworld/backoffice/internal/pkg/session"
)

// Deps are the controllers and auth collaborators the API needs.
type Deps struct {
	Auth      *controllers.AuthController
	Finance   *controllers.FinanceController
	Leads     *controllers.LeadController
	Analytics *controllers.AnalyticsController
	Settings  *controllers.SettingsController
	Health    *controllers.HealthController
	Sessions  *session.Store
	Tokens    *session.Tokens

	// LimiterStorage backs the public rate limits. Nil keeps the counters in memory.
	LimiterStorage fiber.Storage
	CORSOrigins    string
}

type ApiRouter struct {
	deps Deps
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	d := h.deps

	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins:  corsOrigins(d.CORSOrigins),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: middleware.HeaderSessionExpires,
	}))
	api.Get("/", controllers.HandleHello)
	api.Get("/packages", controllers.HandlePackages)
	if d.Health != nil {
		api.Get("/health", d.Health.HandleHealth)
	}

	// contact form and login are the only unauthenticated writes
	api.Post("/leads", limiter.New(limiter.Config{
		Max:        5,
		Expiration: time.Minute,
		Storage:    d.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "lead:" + controllers.ClientIP(c)
		},
	}), d.Leads.HandleCreate)
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
		Storage:    d.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "login:" + controllers.ClientIP(c)
		},
	}), d.Auth.HandleLogin)

	admin := api.Group("", middleware.RequireAdmin(d.Sessions, d.Tokens))
	admin.Post("/auth/logout", d.Auth.HandleLogout)
	admin.Get("/auth/me", d.Auth.HandleMe)

	admin.Get("/leads", d.Leads.HandleList)
	admin.Get("/analytics/stats", d.Analytics.HandleStats)
	admin.Get("/settings", d.Settings.HandleGet)
	admin.Put("/settings", d.Settings.HandleUpdate)

	finance := admin.Group("/finance/:kind")
	finance.Get("/", d.Finance.HandleList)
	finance.Post("/", d.Finance.HandleCreate)
	finance.Get("/:id", d.Finance.HandleGet)
	finance.Put("/:id", d.Finance.HandleUpdate)
	finance.Delete("/:id", d.Finance.HandleArchive)
	finance.Get("/:id/check-cycles", d.Finance.HandleCheckCycles)
	finance.Put("/:id/add-payment", d.Finance.HandleAddPayment)
	finance.Delete("/:id/permanent", d.Finance.HandleDeletePermanent)
	finance.Get("/:id/payments/:paymentId/receipt", d.Finance.HandleReceipt)
}

func corsOrigins(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "*"
	}
	return v
}
