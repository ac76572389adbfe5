package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tricket/tricket-integrations/app/controllers"
	"github.com/tricket/tricket-integrations/internal/pkg/middleware"
)

const (
	webhookRateLimit  = 120
	webhookRateWindow = time.Minute
)

// PublicRouter serves liveness, metrics, inbound webhooks and service routes.
type PublicRouter struct {
	opts Options
}

func (h PublicRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	webhooks := controllers.NewWebhookController(h.opts.Deps)
	hooks := app.Group("/webhooks")
	hooks.Post("/cappta/merchant-accreditation", webhooks.HandleCapptaAccreditation)
	hooks.Post("/cappta/transaction", webhooks.HandleCapptaTransaction)

	asaas := hooks.Group("/asaas", h.webhookLimiter())
	asaas.Post("/transfer-status", webhooks.HandleAsaasTransferStatus)
	asaas.Post("/account-status", webhooks.HandleAsaasAccountStatus)

	products := controllers.NewProductController(h.opts.Deps)
	internal := app.Group("/internal/v1", middleware.ServiceKeyAuthMiddleware(h.opts.ServiceKey))
	internal.Post("/product-lookups", products.HandleLookup)
	internal.Post("/product-lookups/resweep", controllers.NewPipelineController(h.opts.Deps).HandleResweep)
}

func (h PublicRouter) webhookLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        webhookRateLimit,
		Expiration: webhookRateWindow,
		Storage:    h.opts.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many webhook deliveries",
			})
		},
	})
}

func NewPublicRouter(opts Options) *PublicRouter {
	return &PublicRouter{opts: opts}
}
