package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func stripeEvent(t *testing.T, id, eventType, object string) stripe.Event {
	t.Helper()
	var ev stripe.Event
	raw := `{"id":"` + id + `","type":"` + eventType + `","created":1700000000,"data":{"object":` + object + `}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func TestDecodeEvent_CheckoutCompleted(t *testing.T) {
	ev := stripeEvent(t, "evt_1", EventTypeCheckoutCompleted,
		`{"id":"cs_1","customer":"cus_1","subscription":{"id":"sub_1","object":"subscription"},"customer_email":" a@example.com ","metadata":{"userId":"u1"}}`)

	decoded, err := DecodeEvent(ev)
	require.NoError(t, err)

	cc, ok := decoded.(CheckoutCompleted)
	require.True(t, ok, "got %T", decoded)
	assert.Equal(t, "evt_1", cc.ID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), cc.Created)
	assert.Equal(t, Ref{UserID: "u1", CustomerID: "cus_1", SubscriptionID: "sub_1"}, cc.Ref)
	assert.Equal(t, "cs_1", cc.SessionID)
	assert.Equal(t, "a@example.com", cc.Email)
}

func TestDecodeEvent_IgnoresClientReferenceForUserID(t *testing.T) {
	ev := stripeEvent(t, "evt_2", EventTypeCheckoutCompleted,
		`{"id":"cs_2","customer":"cus_2","client_reference_id":"u2","customer_details":{"email":"b@example.com"}}`)

	decoded, err := DecodeEvent(ev)
	require.NoError(t, err)
	cc := decoded.(CheckoutCompleted)
	assert.Empty(t, cc.UserID)
	assert.Equal(t, "b@example.com", cc.Email)
}

func TestDecodeEvent_SubscriptionVariants(t *testing.T) {
	obj := `{"id":"sub_1","customer":"cus_1","status":"Past_Due","trial_end":1700086400,"metadata":{"userId":"u1"}}`

	decoded, err := DecodeEvent(stripeEvent(t, "evt_u", EventTypeSubscriptionUpdated, obj))
	require.NoError(t, err)
	upd := decoded.(SubscriptionUpdated)
	assert.Equal(t, "past_due", upd.Status)
	assert.Equal(t, Ref{UserID: "u1", CustomerID: "cus_1", SubscriptionID: "sub_1"}, upd.Ref)

	decoded, err = DecodeEvent(stripeEvent(t, "evt_d", EventTypeSubscriptionDeleted, obj))
	require.NoError(t, err)
	assert.IsType(t, SubscriptionDeleted{}, decoded)

	decoded, err = DecodeEvent(stripeEvent(t, "evt_t", EventTypeTrialWillEnd, obj))
	require.NoError(t, err)
	tw := decoded.(TrialWillEnd)
	require.NotNil(t, tw.TrialEnd)
	assert.Equal(t, time.Unix(1700086400, 0).UTC(), *tw.TrialEnd)
}

func TestDecodeEvent_Unrecognized(t *testing.T) {
	decoded, err := DecodeEvent(stripeEvent(t, "evt_x", "invoice.paid", `{"id":"in_1"}`))
	require.NoError(t, err)
	u, ok := decoded.(Unrecognized)
	require.True(t, ok)
	assert.Equal(t, "invoice.paid", u.Meta().Type)
}

func TestDecodeEvent_Errors(t *testing.T) {
	_, err := DecodeEvent(stripeEvent(t, "", EventTypeCheckoutCompleted, `{"id":"cs_1"}`))
	assert.Error(t, err)

	_, err = DecodeEvent(stripeEvent(t, "evt_bad", EventTypeSubscriptionUpdated, `{"id":"sub_1","status":42}`))
	assert.Error(t, err)

	_, err = DecodeEvent(stripe.Event{ID: "evt_empty", Type: EventTypeCheckoutCompleted})
	assert.Error(t, err)
}
