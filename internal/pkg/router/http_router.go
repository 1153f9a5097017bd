package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/ManuelReschke/CogniFox/app/controllers"
	"github.com/ManuelReschke/CogniFox/internal/pkg/metrics"
)

// HttpRouter serves the browser pages, the Stripe webhook and operational
// endpoints.
type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealthz)

	metricsHandler := adaptor.HTTPHandler(metrics.Handler(h.deps.Metrics))
	if len(h.deps.MetricsUsers) > 0 {
		app.Get("/metrics", basicauth.New(basicauth.Config{Users: h.deps.MetricsUsers}), metricsHandler)
	} else {
		app.Get("/metrics", metricsHandler)
	}

	// The webhook must see the raw body and carries no user credentials.
	app.Post("/webhooks/stripe", h.deps.Billing.HandleStripeWebhook)

	// The return page holds the request open while it polls for confirmation.
	app.Get("/checkout/return", h.deps.limit(), h.deps.Checkout.HandleCheckoutReturn)
	app.Get("/payment-pending", controllers.HandlePaymentPending)
	app.Get("/dashboard", controllers.HandleDashboard)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
