package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/druginsight-api/internal/api/http/handlers"
	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/observability"
)

// RouteConfig bundles dependencies for route registration. Users and Admin
// are nil when no database is configured.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Users   *handlers.UsersHandler
	Admin   *handlers.AdminHandler
	Gate    *auth.Gate
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	if cfg.Users != nil {
		users := app.Group("/users")
		users.Get("/profile", cfg.Users.Profile)
		users.Patch("/profile", cfg.Users.UpdateProfile)
		users.Post("/password", cfg.Users.ChangePassword)
		users.Get("/api-keys", cfg.Users.ListAPIKeys)
		users.Post("/api-keys", cfg.Users.CreateAPIKey)
		users.Delete("/api-keys/:id", cfg.Users.RevokeAPIKey)
	}

	if cfg.Admin != nil {
		admin := app.Group("/admin")
		admin.Get("/users/:id", cfg.Admin.GetUser)
	}
}
