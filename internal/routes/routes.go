package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody/internal/auth"
	"github.com/congo-pay/custody/internal/codec"
	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/middleware"
	"github.com/congo-pay/custody/internal/registry"
	"github.com/congo-pay/custody/internal/session"
	"github.com/congo-pay/custody/internal/store"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Backend  store.Backend
	Cache    *redis.Client
	Logger   *slog.Logger
	Codec    *codec.Codec
	Auth     *auth.Service
	Registry *registry.Registry
	Sessions *session.Manager
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Backend == nil || d.Auth == nil || d.Sessions == nil || d.Registry == nil || d.Codec == nil {
		return fmt.Errorf("routes: missing dependencies")
	}
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.SessionContext(d.Sessions))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var idempotent fiber.Handler
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	authHandler := auth.NewHandler(d.Auth, d.Sessions)
	RegisterSessionRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute))
	RegisterAccountRoutes(api, authHandler, registry.NewHandler(d.Registry), idempotent)
	RegisterIDRoutes(api, d.Codec)
	return nil
}
