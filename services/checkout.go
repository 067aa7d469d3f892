package services

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// CheckoutRequest carries the donor-facing fields of the public donate form.
type CheckoutRequest struct {
	Amount    float64 `json:"amount"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     string  `json:"phone"`
	Recurring bool    `json:"recurring"`
}

// CheckoutService creates Stripe Checkout sessions for card gifts. The
// Stripe client is injected so tests and tooling can substitute their own.
type CheckoutService struct {
	stripe     *client.API
	successURL string
	cancelURL  string
	orgName    string
}

func NewCheckoutService(sc *client.API, successURL, cancelURL, orgName string) *CheckoutService {
	return &CheckoutService{stripe: sc, successURL: successURL, cancelURL: cancelURL, orgName: orgName}
}

// CreateSession validates the request and returns the hosted checkout URL to
// redirect the donor to. Donor contact fields ride along as session metadata
// so the webhook can resolve the donor when the payment completes.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	if err := validateEmail(req.Email); err != nil {
		return "", err
	}

	name := "Donation to " + s.orgName
	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(int64(math.Round(req.Amount * 100))),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(name),
		},
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		CustomerEmail: stripe.String(req.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	if req.Recurring {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String("month"),
		}
	}

	params.AddMetadata("first_name", req.FirstName)
	params.AddMetadata("last_name", req.LastName)
	params.AddMetadata("phone", req.Phone)
	params.AddMetadata("email", req.Email)

	session, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	return session.URL, nil
}
