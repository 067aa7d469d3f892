package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestParseCheckoutCompleted(t *testing.T) {
	ev, err := ParseEvent(checkoutEvent(t, "pi_1", 5000, "a@example.org", "Ada Lovelace", "payment"))
	require.NoError(t, err)

	parsed, ok := ev.(*CheckoutCompleted)
	require.True(t, ok)
	assert.Equal(t, "pi_1", parsed.Ref)
	assert.Equal(t, 50.00, parsed.Amount, "cent amounts convert to dollars")
	assert.Equal(t, "a@example.org", parsed.Email)
	assert.Equal(t, "Ada", parsed.FirstName)
	assert.Equal(t, "Lovelace", parsed.LastName)
	assert.Equal(t, "cus_test_1", parsed.CustomerID)
	assert.False(t, parsed.Subscription)
}

func TestParseCheckoutPrefersMetadataNames(t *testing.T) {
	raw := `{
		"id": "cs_2",
		"mode": "payment",
		"amount_total": 1000,
		"payment_intent": "pi_2",
		"customer_details": {"email": "m@example.org", "name": "Metadata Wins Not"},
		"metadata": {"first_name": "Meta", "last_name": "Data", "phone": "555-0100"}
	}`
	ev, err := ParseEvent(stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	})
	require.NoError(t, err)

	parsed := ev.(*CheckoutCompleted)
	assert.Equal(t, "Meta", parsed.FirstName)
	assert.Equal(t, "Data", parsed.LastName)
	assert.Equal(t, "555-0100", parsed.Phone)
}

func TestParseCheckoutSubscriptionMode(t *testing.T) {
	ev, err := ParseEvent(checkoutEvent(t, "pi_3", 2500, "s@example.org", "Sub Scriber", "subscription"))
	require.NoError(t, err)
	assert.True(t, ev.(*CheckoutCompleted).Subscription)
}

func TestParseInvoicePaid(t *testing.T) {
	ev, err := ParseEvent(invoiceEvent(t, "in_1", 2500, "cus_9", "g@example.org", "Grace Hopper"))
	require.NoError(t, err)

	parsed, ok := ev.(*InvoicePaid)
	require.True(t, ok)
	assert.Equal(t, "in_1", parsed.Ref)
	assert.Equal(t, 25.00, parsed.Amount)
	assert.Equal(t, "cus_9", parsed.CustomerID)
	assert.Equal(t, "g@example.org", parsed.Email)
	assert.Equal(t, "Grace Hopper", parsed.Name)
}

func TestParsePaymentFailed(t *testing.T) {
	ev, err := ParseEvent(paymentFailedEvent(t, "pi_9"))
	require.NoError(t, err)

	parsed, ok := ev.(*PaymentFailed)
	require.True(t, ok)
	assert.Equal(t, "pi_9", parsed.Ref)
}

func TestParseUnknownEventType(t *testing.T) {
	ev, err := ParseEvent(stripe.Event{
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseMalformedPayload(t *testing.T) {
	_, err := ParseEvent(stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: json.RawMessage(`{not json`)},
	})
	assert.Error(t, err)
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		full, first, last string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Ada", "Ada", ""},
		{"Mary Jane Watson", "Mary", "Jane Watson"},
		{"  ", "", ""},
	}
	for _, tc := range cases {
		first, last := splitName(tc.full)
		assert.Equal(t, tc.first, first, tc.full)
		assert.Equal(t, tc.last, last, tc.full)
	}
}
