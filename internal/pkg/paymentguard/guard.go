// Package paymentguard decides where a user lands after returning from the
// hosted checkout. The webhook that activates the subscription may arrive
// after the browser does, so the stored status is polled for a bounded time.
package paymentguard

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/cache"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 10
)

type Route string

const (
	RouteDashboard      Route = "/dashboard"
	RoutePaymentPending Route = "/payment-pending"
)

// StatusReader returns the current billing snapshot of a user.
type StatusReader interface {
	SubscriptionStatus(ctx context.Context, userID string) (cache.StatusSnapshot, error)
}

type Guard struct {
	Status      StatusReader
	Interval    time.Duration
	MaxAttempts int
}

func New(status StatusReader, interval time.Duration, maxAttempts int) *Guard {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Guard{Status: status, Interval: interval, MaxAttempts: maxAttempts}
}

// Confirmed reports whether the snapshot unlocks the authenticated area.
func Confirmed(s cache.StatusSnapshot) bool {
	return s.SubscriptionStatus == models.SubscriptionStatusActive && s.PaymentCompleted
}

// Wait polls the user's status until it is confirmed or MaxAttempts reads
// have failed to confirm it. Reads that error count as failed attempts; a
// missing user ends the wait immediately. Cancelling ctx stops the loop and
// returns ctx.Err().
func (g *Guard) Wait(ctx context.Context, userID string) (Route, error) {
	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		snap, err := g.Status.SubscriptionStatus(ctx, userID)
		switch {
		case err == nil && Confirmed(snap):
			return RouteDashboard, nil
		case errors.Is(err, apperror.ErrUserNotFound):
			return RoutePaymentPending, err
		case err != nil:
			log.Warnf("[PaymentGuard] status read for %s failed (attempt %d/%d): %v", userID, attempt, g.MaxAttempts, err)
		}

		if attempt == g.MaxAttempts {
			break
		}
		timer := time.NewTimer(g.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return RoutePaymentPending, ctx.Err()
		case <-timer.C:
		}
	}

	log.Infof("[PaymentGuard] payment for %s not confirmed after %d attempts", userID, g.MaxAttempts)
	return RoutePaymentPending, nil
}
