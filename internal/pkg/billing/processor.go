package billing

import "context"

// CheckoutSessionInput describes a subscription checkout for one customer.
type CheckoutSessionInput struct {
	UserID     string
	CustomerID string
	PriceID    string
	TrialDays  int64
	SuccessURL string
	CancelURL  string
}

// Processor is the subset of the payment processor API the service uses.
type Processor interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	DeleteCustomer(ctx context.Context, customerID string) error
}
