package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	config "github.com/openhearts/donations-go/config"
)

const maxWebhookBodyBytes = 65536

// EventProcessor consumes a verified Stripe event.
type EventProcessor interface {
	Process(ctx context.Context, event stripe.Event) error
}

// StripeWebhook receives Stripe's signed notifications. 400 is returned only
// when signature verification fails; once the event is authenticated we
// always answer 200, even if processing fails, so Stripe does not hammer us
// with redeliveries. Processing failures are logged for manual
// reconciliation instead.
func StripeWebhook(cfg *config.Config, processor EventProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		// A body we cannot read (oversized included) cannot be
		// signature-verified, so it gets the same 400 as a bad signature.
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			log.WithError(err).Warn("Could not read Stripe webhook body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
			return
		}

		event, err := webhook.ConstructEventWithOptions(
			payload,
			c.GetHeader("Stripe-Signature"),
			cfg.StripeWebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
		)
		if err != nil {
			log.WithError(err).Warn("Stripe webhook signature verification failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		logCtx := log.WithFields(log.Fields{
			"delivery_id": uuid.NewString(),
			"event_id":    event.ID,
			"event_type":  event.Type,
		})
		logCtx.Info("Processing Stripe event")

		if err := processor.Process(c.Request.Context(), event); err != nil {
			logCtx.WithError(err).Error("Stripe event processing failed, acknowledging anyway")
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
