package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/controllers"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/analytics"
	"github.com/digiworld/backoffice/internal/pkg/cache"
	"github.com/digiworld/backoffice/internal/pkg/database"
	"github.com/digiworld/backoffice/internal/pkg/env"
	"github.com/digiworld/backoffice/internal/pkg/finance"
	"github.com/digiworld/backoffice/internal/pkg/hcaptcha"
	"github.com/digiworld/backoffice/internal/pkg/jobqueue"
	"github.com/digiworld/backoffice/internal/pkg/leads"
	"github.com/digiworld/backoffice/internal/pkg/lock"
	"github.com/digiworld/backoffice/internal/pkg/mail"
	"github.com/digiworld/backoffice/internal/pkg/metrics"
	"github.com/digiworld/backoffice/internal/pkg/proofstore"
	"github.com/digiworld/backoffice/internal/pkg/router"
	"github.com/digiworld/backoffice/internal/pkg/session"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	ctx := context.Background()
	db := database.GetDB()

	created, err := database.SeedAdmin(ctx, db, env.GetEnv("ADMIN_EMAIL", ""), env.GetEnv("ADMIN_PASSWORD", ""))
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	if created {
		log.Printf("Created initial admin %s", env.GetEnv("ADMIN_EMAIL", ""))
	}

	// Define possible base paths
	basePaths := []string{
		"./",     // Current directory
		"../../", // From cmd/digiworld to project root
	}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}
	if basePath == "" {
		panic("Could not find project root directory")
	}

	views := html.New(basePath+"views", ".html")

	app := fiber.New(fiber.Config{
		Views:     views,
		BodyLimit: 12 * 1024 * 1024, // screenshots are capped lower by the upload package

		// client IPs key the rate limits; headers are honoured only from these proxies
		ProxyHeader:             env.GetEnv("PROXY_HEADER", ""),
		EnableTrustedProxyCheck: true,
		TrustedProxies:          env.GetEnvList("TRUSTED_PROXIES"),
		EnableIPValidation:      true,
	})

	collector := metrics.New()

	// recovery, logging and request metrics
	app.Use(recover.New(), logger.New(), collector.Middleware())

	// fiber metrics
	metricsAuth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	})
	app.Get("/metrics", metricsAuth, monitor.New())
	app.Get("/metrics/prometheus", metricsAuth, adaptor.HTTPHandler(collector.Handler()))

	proofCfg, err := proofstore.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid proof storage configuration: %v", err)
	}
	proofs, err := proofstore.New(ctx, proofCfg)
	if err != nil {
		log.Fatalf("Failed to initialise proof storage: %v", err)
	}
	if !proofCfg.Enabled {
		// static uploads
		app.Static(proofCfg.LocalBaseURL, proofCfg.LocalDir, fiber.Static{
			CacheDuration: 10 * time.Second,
			MaxAge:        604800, // 7 days
		})
	}

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()
	redisClient := cache.GetClient()

	queue := jobqueue.NewQueue(redisClient, env.GetEnvInt("JOB_WORKERS", 2))
	queue.Handle(jobqueue.JobTypeProofDelete, jobqueue.ProofDeleteHandler(proofs))

	stats := analytics.NewService(repos.Account, cache.NewJSON(redisClient, "analytics:"))
	ledgerSvc := finance.NewService(repos.Account, lock.NewRedisLocker(redisClient),
		finance.WithProofStore(proofs),
		finance.WithProofJanitor(queue),
		finance.WithMetrics(collector),
		finance.WithInvalidator(stats),
	)

	// cycles are generated on read; the sweep only runs when CYCLE_SWEEP_MINUTES is set
	jobs := jobqueue.NewManager(queue, ledgerSvc, env.GetEnvMinutes("CYCLE_SWEEP_MINUTES", 0))
	jobs.Start()
	app.Hooks().OnShutdown(func() error {
		jobs.Stop()
		return nil
	})
	leadSvc := leads.NewService(repos.Lead, repos.Setting, leads.Config{
		Captcha:  hcaptcha.NewVerifierFromEnv(),
		Mailer:   mail.NewSMTPMailerFromEnv(),
		Views:    views,
		NotifyTo: env.GetEnv("LEAD_NOTIFY_EMAIL", ""),
		Metrics:  collector,
	})

	redisStorage := session.NewRedisStorage()
	sessions := session.NewStore(redisStorage, env.GetEnvMinutes("SESSION_IDLE_MINUTES", 10*time.Minute))
	secret := env.GetEnv("JWT_SECRET", "")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	tokens := session.NewTokens(secret, env.GetEnvMinutes("TOKEN_MAX_AGE_MINUTES", 12*time.Hour))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Auth:           controllers.NewAuthController(repos.Admin, sessions, tokens),
		Finance:        controllers.NewFinanceController(ledgerSvc, repos.Setting),
		Leads:          controllers.NewLeadController(leadSvc, repos.Lead),
		Analytics:      controllers.NewAnalyticsController(stats),
		Settings:       controllers.NewSettingsController(repos.Setting),
		Health:         controllers.NewHealthController(healthChecks(db, redisClient, proofs)),
		Sessions:       sessions,
		Tokens:         tokens,
		LimiterStorage: redisStorage,
		CORSOrigins:    env.GetEnv("CORS_ORIGINS", ""),
	})

	return app
}

func healthChecks(db *gorm.DB, rdb *redis.Client, proofs proofstore.Store) map[string]controllers.HealthCheck {
	checks := map[string]controllers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"cache": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
	if s3Store, ok := proofs.(*proofstore.S3Store); ok {
		checks["proof_storage"] = s3Store.Check
	}
	return checks
}
