package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/app/controllers"
	"github.com/tricket/tricket-integrations/internal/pkg/authgate"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Options carries what the routers need to build handlers and guards.
type Options struct {
	Deps       *controllers.Dependencies
	Gate       *authgate.Gate
	ServiceKey string
	// LimiterStorage backs the webhook rate limiter. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, opts Options) {
	// public routes first so /health and /metrics stay outside the auth groups
	setup(app, NewPublicRouter(opts), NewApiRouter(opts))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
