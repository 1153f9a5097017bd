package billing

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProcessor implements Processor against the Stripe API.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor builds a Stripe client for the given secret key. The
// library's default HTTP backend and timeouts are used.
func NewStripeProcessor(secretKey string) *StripeProcessor {
	return &StripeProcessor{api: client.New(secretKey, nil)}
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	subscriptionData := &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: map[string]string{
			MetadataUserID:     in.UserID,
			MetadataCustomerID: in.CustomerID,
		},
	}
	if in.TrialDays > 0 {
		subscriptionData.TrialPeriodDays = stripe.Int64(in.TrialDays)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(in.CustomerID),
		ClientReferenceID: stripe.String(in.UserID),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: subscriptionData,
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, in.UserID)
	params.AddMetadata(MetadataCustomerID, in.CustomerID)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	_, err := p.api.Subscriptions.Cancel(subscriptionID, params)
	return err
}

func (p *StripeProcessor) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	_, err := p.api.Customers.Del(customerID, params)
	return err
}
