package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/cache"
)

// IdentityDeleter removes a user's authentication identity.
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, uid string) error
}

// StatusCache holds short-lived subscription snapshots. A nil cache is valid.
type StatusCache interface {
	Get(ctx context.Context, userID string) (cache.StatusSnapshot, bool)
	Set(ctx context.Context, userID string, snap cache.StatusSnapshot) error
	Invalidate(ctx context.Context, userID string) error
}

// Recorder receives billing outcomes for metrics.
type Recorder interface {
	WebhookHandled(eventType, outcome string)
	CheckoutCreated(err error)
	CancellationFinished(err error)
}

// Notifier tells users about billing changes that need their attention.
// Delivery failures never fail webhook processing.
type Notifier interface {
	TrialEnding(ctx context.Context, email string, trialEnd *time.Time) error
	PaymentFailed(ctx context.Context, email, status string) error
}

// Options configures the checkout sessions and webhook verification.
type Options struct {
	PriceID       string
	TrialDays     int64
	SuccessURL    string
	CancelURL     string
	WebhookSecret string
}

// Service implements checkout initiation, webhook reconciliation, cancellation
// and status lookups on top of injected collaborators.
type Service struct {
	repo       Repository
	processor  Processor
	identities IdentityDeleter
	opts       Options

	cache    StatusCache
	recorder Recorder
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

func WithStatusCache(c StatusCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source used for bookkeeping timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service.
func NewService(repo Repository, processor Processor, identities IdentityDeleter, opts Options, options ...Option) *Service {
	s := &Service{
		repo:       repo,
		processor:  processor,
		identities: identities,
		opts:       opts,
		validate:   validator.New(),
		now:        time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// CreateCheckoutSession starts a hosted subscription checkout for the user.
// An existing processor customer is reused; otherwise one is created and
// stored before the session is requested.
func (s *Service) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (session *CheckoutSession, err error) {
	defer func() {
		if s.recorder != nil {
			s.recorder.CheckoutCreated(err)
		}
	}()

	req.UserID = strings.TrimSpace(req.UserID)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: email and user id are required", apperror.ErrValidation)
	}

	record, err := models.NewUser(req.UserID, req.Email, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrValidation, err)
	}
	if err := s.repo.CreateUserIfNotExists(ctx, record); err != nil {
		return nil, fmt.Errorf("ensure user record: %w", err)
	}
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user record: %w", err)
	}

	customerID := user.CustomerRef()
	if customerID == "" {
		customerID, err = s.processor.CreateCustomer(ctx, req.Email, req.UserID)
		if err != nil {
			log.Errorf("[Billing] create customer for user %s failed: %v", req.UserID, err)
			return nil, fmt.Errorf("%w: create customer: %v", apperror.ErrExternalService, err)
		}
		if err := s.repo.UpdateUserFields(ctx, req.UserID, map[string]interface{}{
			"customer_id": customerID,
		}); err != nil {
			return nil, fmt.Errorf("store customer id: %w", err)
		}
		log.Infof("[Billing] created customer %s for user %s", customerID, req.UserID)
	}

	session, err = s.processor.CreateCheckoutSession(ctx, CheckoutSessionInput{
		UserID:     req.UserID,
		CustomerID: customerID,
		PriceID:    s.opts.PriceID,
		TrialDays:  s.opts.TrialDays,
		SuccessURL: s.opts.SuccessURL,
		CancelURL:  s.opts.CancelURL,
	})
	if err != nil {
		log.Errorf("[Billing] create checkout session for user %s failed: %v", req.UserID, err)
		return nil, fmt.Errorf("%w: create checkout session: %v", apperror.ErrExternalService, err)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateUserFields(ctx, req.UserID, map[string]interface{}{
		"customer_id":              customerID,
		"last_checkout_session_id": session.ID,
		"last_checkout_at":         &now,
	}); err != nil {
		return nil, fmt.Errorf("store checkout bookkeeping: %w", err)
	}
	return session, nil
}

// CancelSubscription cancels the user's stored subscription, deletes the stored
// processor customer, marks the user record cancelled, deletes the identity and purges
// the user's test results. Steps run in that order and the first failure
// aborts the remaining ones; completed steps are not rolled back.
func (s *Service) CancelSubscription(ctx context.Context, req CancelRequest) (err error) {
	defer func() {
		if s.recorder != nil {
			s.recorder.CancellationFinished(err)
		}
	}()

	req.UserID = strings.TrimSpace(req.UserID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: user id is required", apperror.ErrValidation)
	}

	customerID, subscriptionID, err := s.ownedRefs(ctx, req)
	if err != nil {
		return err
	}

	if subscriptionID != "" {
		if err := s.processor.CancelSubscription(ctx, subscriptionID); err != nil {
			log.Errorf("[Billing] cancel subscription %s failed: %v", subscriptionID, err)
			return fmt.Errorf("%w: cancel subscription: %v", apperror.ErrExternalService, err)
		}
	}
	if customerID != "" {
		if err := s.processor.DeleteCustomer(ctx, customerID); err != nil {
			log.Errorf("[Billing] delete customer %s failed: %v", customerID, err)
			return fmt.Errorf("%w: delete customer: %v", apperror.ErrExternalService, err)
		}
	}

	now := s.now().UTC()
	err = s.repo.UpdateUserFields(ctx, req.UserID, map[string]interface{}{
		"subscription_status": models.SubscriptionStatusCancelled,
		"payment_completed":   false,
		"cancelled_at":        &now,
		"deleted_at":          &now,
	})
	switch {
	case errors.Is(err, apperror.ErrUserNotFound):
		log.Warnf("[Billing] cancel: no user record for %s, continuing", req.UserID)
	case err != nil:
		return fmt.Errorf("mark user cancelled: %w", err)
	}
	s.invalidate(ctx, req.UserID)

	if err := s.identities.DeleteUser(ctx, req.UserID); err != nil {
		log.Errorf("[Billing] delete identity %s failed: %v", req.UserID, err)
		return fmt.Errorf("%w: delete identity: %v", apperror.ErrExternalService, err)
	}
	if err := s.repo.DeleteTestResults(ctx, req.UserID); err != nil {
		return fmt.Errorf("delete test results: %w", err)
	}

	log.Infof("[Billing] cancelled account %s", req.UserID)
	return nil
}

// ownedRefs returns the processor ids stored for the user. Ids sent with the
// request must match them; anything else is rejected before the processor is
// called.
func (s *Service) ownedRefs(ctx context.Context, req CancelRequest) (customerID, subscriptionID string, err error) {
	user, err := s.repo.GetUser(ctx, req.UserID)
	switch {
	case errors.Is(err, apperror.ErrUserNotFound):
		user = &models.User{ID: req.UserID}
	case err != nil:
		return "", "", fmt.Errorf("load user %s: %w", req.UserID, err)
	}

	if err := matchRef("customer", req.CustomerID, user.CustomerRef()); err != nil {
		return "", "", err
	}
	if err := matchRef("subscription", req.SubscriptionID, user.SubscriptionRef()); err != nil {
		return "", "", err
	}
	return user.CustomerRef(), user.SubscriptionRef(), nil
}

func matchRef(kind, supplied, stored string) error {
	if supplied != "" && supplied != stored {
		log.Warnf("[Billing] cancel: %s %s does not belong to the caller", kind, supplied)
		return fmt.Errorf("%w: %s %s is not the caller's", apperror.ErrForbidden, kind, supplied)
	}
	return nil
}

// SubscriptionStatus returns the user's billing snapshot, served from the
// cache when possible.
func (s *Service) SubscriptionStatus(ctx context.Context, userID string) (cache.StatusSnapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, userID); ok {
			return snap, nil
		}
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return cache.StatusSnapshot{}, err
	}
	snap := cache.StatusSnapshot{
		SubscriptionStatus: normalizeStatus(user.SubscriptionStatus),
		PaymentCompleted:   user.PaymentCompleted,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, snap); err != nil {
			log.Debugf("[Billing] status cache set for %s failed: %v", userID, err)
		}
	}
	return snap, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil || userID == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		log.Warnf("[Billing] status cache invalidate for %s failed: %v", userID, err)
	}
}
