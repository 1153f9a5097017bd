package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/billing"
	"github.com/ManuelReschke/CogniFox/internal/pkg/identity"
	"github.com/ManuelReschke/CogniFox/internal/pkg/middleware"
)

// BillingService is the part of billing.Service the HTTP layer uses.
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	CancelSubscription(ctx context.Context, req billing.CancelRequest) error
	ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) (*billing.WebhookResult, error)
}

type BillingController struct {
	Billing    BillingService
	Identities identity.Provider
}

func NewBillingController(svc BillingService, identities identity.Provider) *BillingController {
	return &BillingController{Billing: svc, Identities: identities}
}

type checkoutSessionBody struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

type cancelSubscriptionBody struct {
	UserID         string `json:"userId"`
	CustomerID     string `json:"customerId"`
	SubscriptionID string `json:"subscriptionId"`
}

// HandleCreateCheckoutSession validates the body before the bearer token so
// that malformed requests never reach the identity provider or Stripe.
func (bc *BillingController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var body checkoutSessionBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, fmt.Errorf("%w: invalid request body", apperror.ErrValidation))
	}
	body.Email = strings.TrimSpace(body.Email)
	body.UserID = strings.TrimSpace(body.UserID)
	if body.Email == "" || body.UserID == "" {
		return respondError(c, fmt.Errorf("%w: email and userId are required", apperror.ErrValidation))
	}

	if err := bc.authorize(c, body.UserID); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	session, err := bc.Billing.CreateCheckoutSession(ctx, billing.CheckoutRequest{UserID: body.UserID, Email: body.Email})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(session)
}

func (bc *BillingController) HandleCancelSubscription(c *fiber.Ctx) error {
	var body cancelSubscriptionBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, fmt.Errorf("%w: invalid request body", apperror.ErrValidation))
	}
	body.UserID = strings.TrimSpace(body.UserID)
	if body.UserID == "" {
		return respondError(c, fmt.Errorf("%w: userId is required", apperror.ErrValidation))
	}

	if err := bc.authorize(c, body.UserID); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	err := bc.Billing.CancelSubscription(ctx, billing.CancelRequest{
		UserID:         body.UserID,
		CustomerID:     body.CustomerID,
		SubscriptionID: body.SubscriptionID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleStripeWebhook acknowledges every accepted delivery with
// {received:true}; duplicates and unresolved users are flagged but still 200.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := withTimeout(c, webhookTimeout)
	defer cancel()

	result, err := bc.Billing.ProcessWebhook(ctx, rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrSignature):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		case errors.Is(err, apperror.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
		}
	}

	resp := fiber.Map{"received": true}
	switch result.Outcome {
	case billing.OutcomeDuplicate:
		resp["duplicate"] = true
	case billing.OutcomeIgnored, billing.OutcomeUnresolved:
		resp["ignored"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// authorize checks the bearer token and that it belongs to userID.
func (bc *BillingController) authorize(c *fiber.Ctx, userID string) error {
	id, err := middleware.VerifyBearer(c, bc.Identities)
	if err != nil {
		return err
	}
	if id.UID != userID {
		return fmt.Errorf("%w: token subject %s, requested %s", apperror.ErrForbidden, id.UID, userID)
	}
	return nil
}
