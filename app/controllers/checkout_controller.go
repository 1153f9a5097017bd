package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/CogniFox/internal/pkg/paymentguard"
	"github.com/ManuelReschke/CogniFox/internal/pkg/usercontext"
)

// CheckoutSessionLookup resolves the user a checkout session belongs to.
type CheckoutSessionLookup interface {
	GetByCheckoutSessionID(ctx context.Context, sessionID string) (*models.User, error)
}

type CheckoutController struct {
	Users  CheckoutSessionLookup
	Status StatusReader
	Guard  *paymentguard.Guard
}

func NewCheckoutController(users CheckoutSessionLookup, status StatusReader, guard *paymentguard.Guard) *CheckoutController {
	return &CheckoutController{Users: users, Status: status, Guard: guard}
}

// HandleCheckoutReturn is the success URL of the hosted checkout. The session
// id identifies the user; the guard then waits for the webhook to confirm
// the payment and the browser is redirected to the dashboard or the pending
// page.
func (cc *CheckoutController) HandleCheckoutReturn(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		return c.Redirect(string(paymentguard.RoutePaymentPending), fiber.StatusSeeOther)
	}

	budget := cc.Guard.Interval*time.Duration(cc.Guard.MaxAttempts) + 5*time.Second
	ctx, cancel := withTimeout(c, budget)
	defer cancel()

	user, err := cc.Users.GetByCheckoutSessionID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, apperror.ErrUserNotFound) {
			log.Errorf("[Checkout] lookup of session %s failed: %v", sessionID, err)
		}
		return c.Redirect(string(paymentguard.RoutePaymentPending), fiber.StatusSeeOther)
	}

	route, err := cc.Guard.Wait(ctx, user.ID)
	if err != nil {
		log.Warnf("[Checkout] waiting for payment of %s: %v", user.ID, err)
	}
	return c.Redirect(string(route), fiber.StatusSeeOther)
}

// HandleSubscriptionStatus returns the caller's snapshot for browser polling.
func (cc *CheckoutController) HandleSubscriptionStatus(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	snap, err := cc.Status.SubscriptionStatus(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"subscriptionStatus": snap.SubscriptionStatus,
		"paymentCompleted":   snap.PaymentCompleted,
		"confirmed":          paymentguard.Confirmed(snap),
		"access":             entitlements.AccessFor(snap.SubscriptionStatus, snap.PaymentCompleted),
	})
}

func HandlePaymentPending(c *fiber.Ctx) error {
	return c.Render("payment_pending", fiber.Map{
		"Title":   "Payment pending",
		"Support": "support@cognifox.app",
	}, "layout")
}

func HandleDashboard(c *fiber.Ctx) error {
	return c.Render("dashboard", fiber.Map{
		"Title": "Your results",
	}, "layout")
}

func HandleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
