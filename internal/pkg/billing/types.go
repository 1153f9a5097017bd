package billing

import "time"

// Stripe event types the reconciler acts on.
const (
	EventTypeCheckoutCompleted   = "checkout.session.completed"
	EventTypeCheckoutExpired     = "checkout.session.expired"
	EventTypeSubscriptionDeleted = "customer.subscription.deleted"
	EventTypeSubscriptionUpdated = "customer.subscription.updated"
	EventTypeTrialWillEnd        = "customer.subscription.trial_will_end"
)

// Metadata keys written onto checkout sessions and subscriptions.
const (
	MetadataUserID     = "userId"
	MetadataCustomerID = "customerId"
)

// Event is the decoded form of a processor webhook. The concrete type is one
// of CheckoutCompleted, CheckoutExpired, SubscriptionDeleted,
// SubscriptionUpdated, TrialWillEnd or Unrecognized.
type Event interface {
	Meta() EventMeta
	isEvent()
}

// EventMeta is shared by every event variant.
type EventMeta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// Ref carries the identifiers used to resolve the affected user.
type Ref struct {
	UserID         string
	CustomerID     string
	SubscriptionID string
}

type CheckoutCompleted struct {
	EventMeta
	Ref
	SessionID string
	Email     string
}

type CheckoutExpired struct {
	EventMeta
	Ref
	SessionID string
}

type SubscriptionDeleted struct {
	EventMeta
	Ref
	Status string
}

type SubscriptionUpdated struct {
	EventMeta
	Ref
	Status string
}

type TrialWillEnd struct {
	EventMeta
	Ref
	Status   string
	TrialEnd *time.Time
}

// Unrecognized is any event type the reconciler does not act on.
type Unrecognized struct {
	EventMeta
}

func (CheckoutCompleted) isEvent()   {}
func (CheckoutExpired) isEvent()     {}
func (SubscriptionDeleted) isEvent() {}
func (SubscriptionUpdated) isEvent() {}
func (TrialWillEnd) isEvent()        {}
func (Unrecognized) isEvent()        {}

// WebhookOutcome describes how an accepted webhook was handled.
type WebhookOutcome string

const (
	OutcomeApplied    WebhookOutcome = "applied"
	OutcomeDuplicate  WebhookOutcome = "duplicate"
	OutcomeIgnored    WebhookOutcome = "ignored"
	OutcomeUnresolved WebhookOutcome = "unresolved"
	OutcomeFailed     WebhookOutcome = "failed"
	OutcomeRejected   WebhookOutcome = "rejected"
)

// WebhookResult is returned for every accepted webhook delivery.
type WebhookResult struct {
	EventID   string
	EventType string
	UserID    string
	Outcome   WebhookOutcome
}

// CheckoutRequest is the validated input of checkout initiation.
type CheckoutRequest struct {
	UserID string `validate:"required,max=128"`
	Email  string `validate:"required,email"`
}

// CheckoutSession is what the client needs to redirect to hosted checkout.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url,omitempty"`
}

// CancelRequest is the input of the cancellation handler. The processor ids
// are optional; steps without an id are skipped.
type CancelRequest struct {
	UserID         string `validate:"required,max=128"`
	CustomerID     string
	SubscriptionID string
}
