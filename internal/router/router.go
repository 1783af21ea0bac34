package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/rubric-review-api/internal/config"
	"github.com/noah-isme/rubric-review-api/internal/handler"
	"github.com/noah-isme/rubric-review-api/internal/middleware"
	"github.com/noah-isme/rubric-review-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RubricHandler     *handler.RubricHandler
	SubmissionHandler *handler.SubmissionHandler
	AdminHandler      *handler.AdminHandler
	DebugHandler      fiber.Handler
	// AdminMiddleware overrides JWT role checks on admin routes, e.g. in tests.
	AdminMiddleware []fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(nil))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	if deps.DebugHandler != nil {
		api.Get("/debug", deps.DebugHandler)
	}

	if deps.RubricHandler != nil {
		limit := middleware.RateLimit("rubric", cfg.RubricRateLimit, cfg.RateLimitWindow)
		deps.RubricHandler.Register(api.Group("/rubric"), limit)
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions"))
	}

	if deps.AdminHandler != nil {
		guards := deps.AdminMiddleware
		if len(guards) == 0 {
			guards = []fiber.Handler{
				middleware.JWTProtected(cfg.JWTSecret),
				middleware.RequireRole(middleware.RoleAdmin),
			}
		}
		deps.AdminHandler.Register(api.Group("/admin", guards...))
	}
}
