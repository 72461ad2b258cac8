package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	// LoginThrottle guards POST /auth/login when set.
	LoginThrottle fiber.Handler
	Metrics       *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Protected routes resolve the caller
// first, then apply role gates; ownership gates run in the user service.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Gatherer(), promhttp.HandlerOpts{})))

	login := []fiber.Handler{}
	if cfg.LoginThrottle != nil {
		login = append(login, cfg.LoginThrottle)
	}
	login = append(login, cfg.Auth.Login)
	app.Post("/auth/login", login...)

	users := app.Group("/users")
	users.Post("/", cfg.Users.Register)

	protected := users.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/", auth.RequireRoles(domain.RoleAdmin), cfg.Users.List)
	protected.Get("/:id", cfg.Users.Get)
	protected.Patch("/:id", cfg.Users.Update)
	protected.Delete("/:id", cfg.Users.Delete)
}
