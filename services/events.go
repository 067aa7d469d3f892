package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// The webhook surface consumes three Stripe event kinds. Anything else is
// ignored. Each kind is parsed into its own struct up front so the processor
// never touches raw provider payloads.

// CheckoutCompleted is a finished one-time Checkout session. Subscription-
// mode sessions carry Subscription=true and are skipped: the subscription's
// first charge arrives as its own InvoicePaid and recording both would count
// the gift twice.
type CheckoutCompleted struct {
	Ref          string // payment intent id, matched later by PaymentFailed
	Amount       float64
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	CustomerID   string
	Subscription bool
	OccurredAt   time.Time
}

// InvoicePaid is a successful charge on a recurring gift.
type InvoicePaid struct {
	Ref        string // invoice id
	Amount     float64
	CustomerID string
	Email      string
	Name       string
	OccurredAt time.Time
}

// PaymentFailed reports a failed charge, keyed by the same reference a
// CheckoutCompleted would have recorded.
type PaymentFailed struct {
	Ref string
}

// ParseEvent maps a signature-verified Stripe event onto one of the three
// kinds above. Returns (nil, nil) for event types this service does not
// consume.
func ParseEvent(event stripe.Event) (interface{}, error) {
	occurredAt := time.Unix(event.Created, 0)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("parse checkout session: %w", err)
		}

		parsed := &CheckoutCompleted{
			Ref:          session.ID,
			Amount:       float64(session.AmountTotal) / 100,
			FirstName:    session.Metadata["first_name"],
			LastName:     session.Metadata["last_name"],
			Phone:        session.Metadata["phone"],
			Subscription: session.Mode == stripe.CheckoutSessionModeSubscription,
			OccurredAt:   occurredAt,
		}
		if session.PaymentIntent != nil {
			parsed.Ref = session.PaymentIntent.ID
		}
		if session.Customer != nil {
			parsed.CustomerID = session.Customer.ID
		}
		if session.CustomerDetails != nil {
			parsed.Email = session.CustomerDetails.Email
			parsed.Phone = firstNonEmpty(parsed.Phone, session.CustomerDetails.Phone)
			if parsed.FirstName == "" {
				parsed.FirstName, parsed.LastName = splitName(session.CustomerDetails.Name)
			}
		}
		if parsed.Email == "" {
			parsed.Email = session.Metadata["email"]
		}
		return parsed, nil

	case stripe.EventTypeInvoicePaid:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("parse invoice: %w", err)
		}

		parsed := &InvoicePaid{
			Ref:        invoice.ID,
			Amount:     float64(invoice.AmountPaid) / 100,
			Email:      invoice.CustomerEmail,
			Name:       invoice.CustomerName,
			OccurredAt: occurredAt,
		}
		if invoice.Customer != nil {
			parsed.CustomerID = invoice.Customer.ID
		}
		return parsed, nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		return &PaymentFailed{Ref: intent.ID}, nil
	}

	return nil, nil
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
