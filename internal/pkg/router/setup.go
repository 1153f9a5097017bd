package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ManuelReschke/CogniFox/app/controllers"
	"github.com/ManuelReschke/CogniFox/internal/pkg/identity"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the constructed handlers and clients the routes need.
type Dependencies struct {
	Billing    *controllers.BillingController
	Checkout   *controllers.CheckoutController
	Users      *controllers.UserController
	Results    *controllers.ResultsController
	Identities identity.Provider
	// Limiter throttles the API and the checkout return page; nil disables
	// rate limiting.
	Limiter fiber.Handler
	Metrics prometheus.Gatherer
	// MetricsUsers enables basic auth on /metrics when non-empty.
	MetricsUsers map[string]string
}

// limit returns the configured limiter or a pass-through handler.
func (d Dependencies) limit() fiber.Handler {
	if d.Limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return d.Limiter
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
