package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CogniFox/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	limit := h.deps.limit()
	auth := middleware.RequireBearerIdentity(h.deps.Identities)

	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Checkout and cancellation validate the body before authenticating.
	api.Post("/checkout/session", limit, h.deps.Billing.HandleCreateCheckoutSession)
	api.Post("/subscription/cancel", limit, h.deps.Billing.HandleCancelSubscription)

	api.Post("/users", auth, limit, h.deps.Users.HandleRegister)
	api.Get("/users/me", auth, limit, h.deps.Users.HandleGetMe)
	api.Get("/subscription/status", auth, limit, h.deps.Checkout.HandleSubscriptionStatus)

	api.Post("/results", auth, limit, h.deps.Results.HandleCreateResult)
	api.Get("/results", auth, limit, h.deps.Results.HandleListResults)
	api.Get("/leaderboard/:game", auth, limit, h.deps.Results.HandleLeaderboard)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
