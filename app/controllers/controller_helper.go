package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/cache"
)

const (
	requestTimeout = 20 * time.Second
	webhookTimeout = 15 * time.Second
)

// StatusReader returns a user's billing snapshot.
type StatusReader interface {
	SubscriptionStatus(ctx context.Context, userID string) (cache.StatusSnapshot, error)
}

// respondError writes the JSON error body for err. Server-side failures are
// logged and reported with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	status := apperror.Status(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": apperror.PublicMessage(err)})
}

func withTimeout(c *fiber.Ctx, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), d)
}
