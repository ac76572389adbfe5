package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/app/controllers"
	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/middleware"
)

// ApiRouter serves the bearer-authenticated integration API.
type ApiRouter struct {
	opts Options
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	gate := h.opts.Gate
	requireAuth := middleware.RequireAuth(gate)
	requireAdmin := middleware.RequireRoles(gate, models.AdminRoles...)
	requireOperator := middleware.RequireRoles(gate, append([]string{models.RolePosOperator}, models.AdminRoles...)...)

	merchants := controllers.NewMerchantController(h.opts.Deps)
	terminals := controllers.NewTerminalController(h.opts.Deps)
	webhooks := controllers.NewWebhookController(h.opts.Deps)
	transfers := controllers.NewTransferController(h.opts.Deps)
	jobs := controllers.NewPipelineController(h.opts.Deps)

	v1 := app.Group("/api/v1")

	v1.Get("/merchants/:profile_id/status", requireAdmin, merchants.HandleStatus)

	v1.Post("/terminals", requireOperator, terminals.HandleCreate)
	v1.Get("/terminals", requireAuth, terminals.HandleList)
	v1.Get("/terminals/:id", requireAuth, terminals.HandleGet)
	v1.Delete("/terminals/:id", requireAdmin, terminals.HandleDelete)
	v1.Patch("/terminals/:id/bind", requireAdmin, terminals.HandleBind)
	v1.Patch("/terminals/:id/unbind", requireAdmin, terminals.HandleUnbind)

	v1.Get("/webhooks", requireAuth, webhooks.HandleQuery)
	v1.Post("/webhooks", requireAdmin, webhooks.HandleRegister)
	v1.Post("/webhooks/deactivate", requireAdmin, webhooks.HandleDeactivate)
	v1.Post("/asaas-accounts/:profile_id/webhook-token", requireAdmin, webhooks.HandleRotateAccountToken)

	v1.Post("/transfers", requireAdmin, transfers.HandleCreate)

	v1.Get("/pipeline/jobs", requireAdmin, jobs.HandleJobStats)
	v1.Get("/pipeline/jobs/:id", requireAdmin, jobs.HandleJob)
}

func NewApiRouter(opts Options) *ApiRouter {
	return &ApiRouter{opts: opts}
}
