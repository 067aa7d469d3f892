package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Validation runs before any call to Stripe, so a nil client is safe here.
func TestCheckoutRejectsInvalidInput(t *testing.T) {
	svc := NewCheckoutService(nil, "https://example.org/thanks", "https://example.org/donate", "Open Hearts Foundation")

	_, err := svc.CreateSession(context.Background(), CheckoutRequest{Amount: 0, Email: "a@example.org"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateSession(context.Background(), CheckoutRequest{Amount: -10, Email: "a@example.org"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateSession(context.Background(), CheckoutRequest{Amount: 50, Email: ""})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.CreateSession(context.Background(), CheckoutRequest{Amount: 50, Email: "nope"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}
