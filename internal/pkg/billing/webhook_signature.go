package billing

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	errMissingWebhookSecret    = errors.New("webhook secret is not configured")
	errMissingWebhookSignature = errors.New("signature header is missing")
)

// VerifyStripeWebhookSignature checks the Stripe-Signature header against the
// raw payload and returns the parsed event. The account API version may
// differ from the library's pinned version, so that check is skipped.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return stripe.Event{}, errMissingWebhookSecret
	}
	if sig == "" {
		return stripe.Event{}, errMissingWebhookSignature
	}

	return webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
