package billing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/cache"
)

const testWebhookSecret = "whsec_test_secret"

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type memoryRepo struct {
	mu           sync.Mutex
	users        map[string]*models.User
	events       map[string]*models.WebhookEvent
	deleted      []string
	purged       []string
	userWrites   int
	updateErr    error
	createEvtErr error
	deleteEvtErr error
}

func newMemoryRepo(users ...*models.User) *memoryRepo {
	r := &memoryRepo{
		users:  map[string]*models.User{},
		events: map[string]*models.WebhookEvent{},
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryRepo) GetUser(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepo) FindUserIDByCustomerID(_ context.Context, customerID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.CustomerRef() == customerID {
			return u.ID, nil
		}
	}
	return "", apperror.ErrUserNotFound
}

func (r *memoryRepo) FindUserIDBySubscriptionID(_ context.Context, subscriptionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.SubscriptionRef() == subscriptionID {
			return u.ID, nil
		}
	}
	return "", apperror.ErrUserNotFound
}

func (r *memoryRepo) UpdateUserFields(_ context.Context, userID string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	u, ok := r.users[userID]
	if !ok {
		return apperror.ErrUserNotFound
	}
	r.userWrites++
	for k, v := range fields {
		switch k {
		case "email":
			u.Email = v.(string)
		case "customer_id":
			s := v.(string)
			u.CustomerID = &s
		case "subscription_id":
			s := v.(string)
			u.SubscriptionID = &s
		case "subscription_status":
			u.SubscriptionStatus = v.(string)
		case "payment_completed":
			u.PaymentCompleted = v.(bool)
		case "last_checkout_session_id":
			u.LastCheckoutSessionID = v.(string)
		case "last_checkout_at":
			u.LastCheckoutAt = v.(*time.Time)
		case "last_payment_success":
			u.LastPaymentSuccess = v.(*time.Time)
		case "last_payment_failure":
			u.LastPaymentFailure = v.(*time.Time)
		case "trial_end_warning":
			u.TrialEndWarning = v.(*time.Time)
		case "subscription_deleted_at":
			u.SubscriptionDeletedAt = v.(*time.Time)
		case "last_checkout_expired":
			u.LastCheckoutExpired = v.(*time.Time)
		case "cancelled_at":
			u.CancelledAt = v.(*time.Time)
		case "deleted_at":
			u.DeletedAt = v.(*time.Time)
		default:
			return errors.New("unexpected column " + k)
		}
	}
	return nil
}

func (r *memoryRepo) CreateUserIfNotExists(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		cp := *user
		r.users[user.ID] = &cp
	}
	return nil
}

func (r *memoryRepo) DeleteTestResults(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, userID)
	return nil
}

func (r *memoryRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.WebhookEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createEvtErr != nil {
		return false, r.createEvtErr
	}
	key := event.Provider + ":" + event.ProviderEventID
	if _, ok := r.events[key]; ok {
		return false, nil
	}
	cp := *event
	r.events[key] = &cp
	return true, nil
}

func (r *memoryRepo) MarkWebhookProcessed(_ context.Context, provider, providerEventID, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[provider+":"+providerEventID]
	if !ok {
		return nil
	}
	now := fixedNow
	ev.ProcessedAt = &now
	ev.ProcessingError = processingError
	return nil
}

func (r *memoryRepo) DeleteWebhookEvent(_ context.Context, provider, providerEventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteEvtErr != nil {
		return r.deleteEvtErr
	}
	delete(r.events, provider+":"+providerEventID)
	return nil
}

func (r *memoryRepo) user(t *testing.T, id string) *models.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		t.Fatalf("user %s not found", id)
	}
	return u
}

type fakeProcessor struct {
	calls       []string
	sessions    []CheckoutSessionInput
	customerErr error
	sessionErr  error
	cancelErr   error
	deleteErr   error
}

func (p *fakeProcessor) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	p.calls = append(p.calls, "create_customer:"+userID)
	if p.customerErr != nil {
		return "", p.customerErr
	}
	return "cus_" + userID, nil
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	p.calls = append(p.calls, "create_session:"+in.CustomerID)
	p.sessions = append(p.sessions, in)
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	return &CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (p *fakeProcessor) CancelSubscription(_ context.Context, subscriptionID string) error {
	p.calls = append(p.calls, "cancel_subscription:"+subscriptionID)
	return p.cancelErr
}

func (p *fakeProcessor) DeleteCustomer(_ context.Context, customerID string) error {
	p.calls = append(p.calls, "delete_customer:"+customerID)
	return p.deleteErr
}

type fakeIdentities struct {
	deleted []string
	err     error
}

func (f *fakeIdentities) DeleteUser(_ context.Context, uid string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, uid)
	return nil
}

type fakeCache struct {
	snaps       map[string]cache.StatusSnapshot
	invalidated []string
	gets        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snaps: map[string]cache.StatusSnapshot{}}
}

func (c *fakeCache) Get(_ context.Context, userID string) (cache.StatusSnapshot, bool) {
	c.gets++
	s, ok := c.snaps[userID]
	return s, ok
}

func (c *fakeCache) Set(_ context.Context, userID string, snap cache.StatusSnapshot) error {
	c.snaps[userID] = snap
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	c.invalidated = append(c.invalidated, userID)
	delete(c.snaps, userID)
	return nil
}

type fakeRecorder struct {
	webhooks      []string
	checkouts     []error
	cancellations []error
}

func (r *fakeRecorder) WebhookHandled(eventType, outcome string) {
	r.webhooks = append(r.webhooks, eventType+"/"+outcome)
}

func (r *fakeRecorder) CheckoutCreated(err error) { r.checkouts = append(r.checkouts, err) }

func (r *fakeRecorder) CancellationFinished(err error) {
	r.cancellations = append(r.cancellations, err)
}

func strPtr(s string) *string { return &s }

func registeredUser(id string) *models.User {
	return &models.User{
		ID:                 id,
		Email:              id + "@example.com",
		AuthProvider:       models.AuthProviderPassword,
		SubscriptionStatus: models.SubscriptionStatusPaymentRequired,
	}
}

func newTestService(repo Repository, opts ...Option) (*Service, *fakeProcessor, *fakeIdentities) {
	proc := &fakeProcessor{}
	ids := &fakeIdentities{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := NewService(repo, proc, ids, Options{
		PriceID:       "price_monthly",
		TrialDays:     7,
		SuccessURL:    "https://app.test/checkout/return?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://app.test/",
		WebhookSecret: testWebhookSecret,
	}, opts...)
	return svc, proc, ids
}

// signedEvent builds a Stripe event body and a matching signature header.
func signedEvent(t *testing.T, id, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     fixedNow.Unix(),
		"api_version": "2020-08-27",
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: body,
		Secret:  testWebhookSecret,
	})
	return body, signed.Header
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) TrialEnding(_ context.Context, email string, trialEnd *time.Time) error {
	end := "none"
	if trialEnd != nil {
		end = trialEnd.Format("2006-01-02")
	}
	n.sent = append(n.sent, "trial_ending:"+email+":"+end)
	return n.err
}

func (n *fakeNotifier) PaymentFailed(_ context.Context, email, status string) error {
	n.sent = append(n.sent, "payment_failed:"+email+":"+status)
	return n.err
}
