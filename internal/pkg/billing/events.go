package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// expandableID accepts either a bare object id or an expanded object with an
// "id" field, matching how Stripe serializes expandable references.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type rawCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	CustomerEmail     string            `json:"customer_email"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type rawSubscription struct {
	ID       string            `json:"id"`
	Customer expandableID      `json:"customer"`
	Status   string            `json:"status"`
	TrialEnd int64             `json:"trial_end"`
	Metadata map[string]string `json:"metadata"`
}

// DecodeEvent turns a verified Stripe event into the typed Event union.
// Unknown event types decode to Unrecognized without inspecting the payload.
func DecodeEvent(ev stripe.Event) (Event, error) {
	meta := EventMeta{
		ID:   strings.TrimSpace(ev.ID),
		Type: strings.TrimSpace(string(ev.Type)),
	}
	if ev.Created > 0 {
		meta.Created = time.Unix(ev.Created, 0).UTC()
	}
	if meta.ID == "" {
		return nil, errors.New("stripe event missing id")
	}

	var raw json.RawMessage
	if ev.Data != nil {
		raw = ev.Data.Raw
	}

	switch meta.Type {
	case EventTypeCheckoutCompleted, EventTypeCheckoutExpired:
		var s rawCheckoutSession
		if err := decodeObject(raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		ref := Ref{
			UserID:         metadataValue(s.Metadata, MetadataUserID),
			CustomerID:     string(s.Customer),
			SubscriptionID: string(s.Subscription),
		}
		if meta.Type == EventTypeCheckoutExpired {
			return CheckoutExpired{EventMeta: meta, Ref: ref, SessionID: s.ID}, nil
		}
		email := strings.TrimSpace(s.CustomerEmail)
		if email == "" && s.CustomerDetails != nil {
			email = strings.TrimSpace(s.CustomerDetails.Email)
		}
		return CheckoutCompleted{EventMeta: meta, Ref: ref, SessionID: s.ID, Email: email}, nil

	case EventTypeSubscriptionDeleted, EventTypeSubscriptionUpdated, EventTypeTrialWillEnd:
		var s rawSubscription
		if err := decodeObject(raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		ref := Ref{
			UserID:         metadataValue(s.Metadata, MetadataUserID),
			CustomerID:     string(s.Customer),
			SubscriptionID: strings.TrimSpace(s.ID),
		}
		status := strings.ToLower(strings.TrimSpace(s.Status))
		switch meta.Type {
		case EventTypeSubscriptionDeleted:
			return SubscriptionDeleted{EventMeta: meta, Ref: ref, Status: status}, nil
		case EventTypeSubscriptionUpdated:
			return SubscriptionUpdated{EventMeta: meta, Ref: ref, Status: status}, nil
		default:
			var trialEnd *time.Time
			if s.TrialEnd > 0 {
				t := time.Unix(s.TrialEnd, 0).UTC()
				trialEnd = &t
			}
			return TrialWillEnd{EventMeta: meta, Ref: ref, Status: status, TrialEnd: trialEnd}, nil
		}

	default:
		return Unrecognized{EventMeta: meta}, nil
	}
}

func decodeObject(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return errors.New("event data object is empty")
	}
	return json.Unmarshal(raw, out)
}

func metadataValue(m map[string]string, key string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[key])
}
