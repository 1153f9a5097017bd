package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
)

// ErrMissingUserMetadata is returned for a completed checkout that does not
// carry the user id it was created for.
var ErrMissingUserMetadata = errors.New("checkout session missing userId metadata")

// ProcessWebhook verifies, deduplicates and applies one webhook delivery.
//
// Signature and decode failures are returned before anything is written.
// Redeliveries of an already recorded event return OutcomeDuplicate. When
// applying an event fails, its idempotency record is removed again so that the
// processor's retry is not swallowed as a duplicate.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	stripeEvent, err := VerifyStripeWebhookSignature(payload, signatureHeader, s.opts.WebhookSecret)
	if err != nil {
		log.Warnf("[Webhook] signature verification failed: %v", err)
		s.recordWebhook("", OutcomeRejected)
		return nil, fmt.Errorf("%w: %v", apperror.ErrSignature, err)
	}

	ev, err := DecodeEvent(stripeEvent)
	if err != nil {
		log.Warnf("[Webhook] decode event %s failed: %v", stripeEvent.ID, err)
		s.recordWebhook(string(stripeEvent.Type), OutcomeRejected)
		return nil, fmt.Errorf("%w: %v", apperror.ErrValidation, err)
	}
	meta := ev.Meta()
	result := &WebhookResult{EventID: meta.ID, EventType: meta.Type}

	created, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.WebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: meta.ID,
		EventType:       meta.Type,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		s.recordWebhook(meta.Type, OutcomeFailed)
		return nil, fmt.Errorf("record webhook event %s: %w", meta.ID, err)
	}
	if !created {
		log.Infof("[Webhook] duplicate event %s (%s) ignored", meta.ID, meta.Type)
		result.Outcome = OutcomeDuplicate
		s.recordWebhook(meta.Type, result.Outcome)
		return result, nil
	}

	userID, outcome, applyErr := s.apply(ctx, ev)
	result.UserID = userID
	result.Outcome = outcome

	if applyErr != nil {
		log.Errorf("[Webhook] event %s (%s) failed: %v", meta.ID, meta.Type, applyErr)
		result.Outcome = OutcomeFailed
		if err := s.repo.DeleteWebhookEvent(ctx, models.BillingProviderStripe, meta.ID); err != nil {
			log.Errorf("[Webhook] release event %s failed: %v", meta.ID, err)
			if err := s.repo.MarkWebhookProcessed(ctx, models.BillingProviderStripe, meta.ID, applyErr.Error()); err != nil {
				log.Errorf("[Webhook] record failure of event %s failed: %v", meta.ID, err)
			}
		}
		s.recordWebhook(meta.Type, result.Outcome)
		return result, applyErr
	}

	if err := s.repo.MarkWebhookProcessed(ctx, models.BillingProviderStripe, meta.ID, ""); err != nil {
		log.Warnf("[Webhook] mark event %s processed failed: %v", meta.ID, err)
	}
	s.invalidate(ctx, userID)
	s.recordWebhook(meta.Type, result.Outcome)
	log.Infof("[Webhook] event %s (%s) user=%q outcome=%s", meta.ID, meta.Type, userID, result.Outcome)
	return result, nil
}

func (s *Service) apply(ctx context.Context, ev Event) (string, WebhookOutcome, error) {
	if e, ok := ev.(CheckoutCompleted); ok {
		return s.applyCheckoutCompleted(ctx, e)
	}

	var ref Ref
	switch e := ev.(type) {
	case CheckoutExpired:
		ref = e.Ref
	case SubscriptionDeleted:
		ref = e.Ref
	case SubscriptionUpdated:
		ref = e.Ref
	case TrialWillEnd:
		ref = e.Ref
	default:
		return "", OutcomeIgnored, nil
	}

	user, err := s.resolveUser(ctx, ref)
	if err != nil {
		return "", OutcomeFailed, err
	}
	if user == nil {
		log.Warnf("[Webhook] no user for event %s (customer=%q subscription=%q)", ev.Meta().ID, ref.CustomerID, ref.SubscriptionID)
		return "", OutcomeUnresolved, nil
	}
	if user.DeletedAt != nil {
		return user.ID, OutcomeIgnored, nil
	}

	fields := s.transition(ev)
	if len(fields) == 0 {
		return user.ID, OutcomeIgnored, nil
	}
	if err := s.repo.UpdateUserFields(ctx, user.ID, fields); err != nil {
		return user.ID, OutcomeFailed, fmt.Errorf("update user %s: %w", user.ID, err)
	}
	s.notify(ctx, user, ev)
	return user.ID, OutcomeApplied, nil
}

// notify sends the user-facing mail for trial endings and failed payments.
func (s *Service) notify(ctx context.Context, user *models.User, ev Event) {
	if s.notifier == nil || user.Email == "" {
		return
	}
	var err error
	switch e := ev.(type) {
	case TrialWillEnd:
		err = s.notifier.TrialEnding(ctx, user.Email, e.TrialEnd)
	case SubscriptionUpdated:
		if status := normalizeStatus(e.Status); isPaymentFailureStatus(status) && user.SubscriptionStatus != status {
			err = s.notifier.PaymentFailed(ctx, user.Email, status)
		}
	}
	if err != nil {
		log.Warnf("[Webhook] notify %s about %s failed: %v", user.ID, ev.Meta().Type, err)
	}
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, e CheckoutCompleted) (string, WebhookOutcome, error) {
	if e.UserID == "" {
		return "", OutcomeFailed, fmt.Errorf("%w: session %s", ErrMissingUserMetadata, e.SessionID)
	}

	user, err := s.repo.GetUser(ctx, e.UserID)
	if err != nil {
		return e.UserID, OutcomeFailed, fmt.Errorf("activate user %s: %w", e.UserID, err)
	}
	if user.DeletedAt != nil {
		log.Infof("[Webhook] checkout %s completed for cancelled account %s, ignored", e.SessionID, e.UserID)
		return e.UserID, OutcomeIgnored, nil
	}

	now := s.now().UTC()
	fields := map[string]interface{}{
		"subscription_status":  models.SubscriptionStatusActive,
		"payment_completed":    true,
		"last_payment_success": &now,
	}
	if e.CustomerID != "" {
		fields["customer_id"] = e.CustomerID
	}
	if e.SubscriptionID != "" {
		fields["subscription_id"] = e.SubscriptionID
	}
	if e.Email != "" {
		fields["email"] = e.Email
	}
	if err := s.repo.UpdateUserFields(ctx, e.UserID, fields); err != nil {
		return e.UserID, OutcomeFailed, fmt.Errorf("activate user %s: %w", e.UserID, err)
	}
	return e.UserID, OutcomeApplied, nil
}

// transition returns the columns an event writes onto the resolved user.
func (s *Service) transition(ev Event) map[string]interface{} {
	now := s.now().UTC()
	switch e := ev.(type) {
	case CheckoutExpired:
		return map[string]interface{}{
			"subscription_status":   models.SubscriptionStatusPaymentRequired,
			"payment_completed":     false,
			"last_checkout_expired": &now,
		}
	case SubscriptionDeleted:
		return map[string]interface{}{
			"subscription_status":     models.SubscriptionStatusInactive,
			"payment_completed":       false,
			"subscription_deleted_at": &now,
		}
	case SubscriptionUpdated:
		status := normalizeStatus(e.Status)
		fields := map[string]interface{}{"subscription_status": status}
		switch {
		case isPaidStatus(status):
			fields["payment_completed"] = true
			fields["last_payment_success"] = &now
		case isPaymentFailureStatus(status):
			fields["payment_completed"] = false
			fields["last_payment_failure"] = &now
		}
		return fields
	case TrialWillEnd:
		fields := map[string]interface{}{"trial_end_warning": &now}
		if e.Status != "" {
			fields["subscription_status"] = normalizeStatus(e.Status)
		}
		return fields
	}
	return nil
}

// resolveUser finds the affected user by metadata user id, then customer id,
// then subscription id. A nil user means nothing matched.
func (s *Service) resolveUser(ctx context.Context, ref Ref) (*models.User, error) {
	if ref.UserID != "" {
		user, err := s.repo.GetUser(ctx, ref.UserID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrUserNotFound) {
			return nil, err
		}
	}

	lookups := []struct {
		value string
		find  func(context.Context, string) (string, error)
	}{
		{ref.CustomerID, s.repo.FindUserIDByCustomerID},
		{ref.SubscriptionID, s.repo.FindUserIDBySubscriptionID},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		userID, err := l.find(ctx, l.value)
		if errors.Is(err, apperror.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.repo.GetUser(ctx, userID)
	}
	return nil, nil
}

func (s *Service) recordWebhook(eventType string, outcome WebhookOutcome) {
	if s.recorder != nil {
		s.recorder.WebhookHandled(eventType, string(outcome))
	}
}
