package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openhearts/donations-go/mailer"
	"github.com/openhearts/donations-go/models"
)

// DonorDirectory is the identity store consumed by the two donation writers.
type DonorDirectory interface {
	ResolveOrCreate(ctx context.Context, email, firstName, lastName, phone, stripeCustomerID string) (primitive.ObjectID, error)
	AttachStripeCustomer(ctx context.Context, donorID primitive.ObjectID, customerID string) error
	FindByStripeCustomer(ctx context.Context, customerID string) (*models.Donor, error)
}

// DonationLedger is the gift record store. Record must be idempotent on the
// provider transaction reference.
type DonationLedger interface {
	Record(ctx context.Context, d models.Donation) (primitive.ObjectID, error)
	MarkStatus(ctx context.Context, providerRef string, status models.Status) (bool, error)
}

// PaymentProcessor turns verified Stripe events into ledger writes. Safe
// under duplicate delivery: the ledger's uniqueness on the provider
// transaction reference makes redelivered events no-ops.
type PaymentProcessor struct {
	directory DonorDirectory
	ledger    DonationLedger
	mailer    mailer.Mailer
	orgName   string
}

func NewPaymentProcessor(directory DonorDirectory, ledger DonationLedger, m mailer.Mailer, orgName string) *PaymentProcessor {
	return &PaymentProcessor{directory: directory, ledger: ledger, mailer: m, orgName: orgName}
}

func (p *PaymentProcessor) Process(ctx context.Context, event stripe.Event) error {
	parsed, err := ParseEvent(event)
	if err != nil {
		return fmt.Errorf("parse event %s: %w", event.ID, err)
	}

	switch ev := parsed.(type) {
	case *CheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, ev)
	case *InvoicePaid:
		return p.handleInvoicePaid(ctx, ev)
	case *PaymentFailed:
		return p.handlePaymentFailed(ctx, ev)
	}

	log.WithField("event_type", event.Type).Debug("Ignoring unhandled Stripe event type")
	return nil
}

func (p *PaymentProcessor) handleCheckoutCompleted(ctx context.Context, ev *CheckoutCompleted) error {
	if ev.Subscription {
		// The subscription's first charge arrives as invoice.paid;
		// recording the session too would double-count the gift.
		log.WithField("provider_txn_ref", ev.Ref).Debug("Skipping subscription-mode checkout session")
		return nil
	}
	if ev.Amount <= 0 {
		return fmt.Errorf("checkout %s has non-positive amount %.2f", ev.Ref, ev.Amount)
	}

	donorID := p.resolveDonor(ctx, ev.Email, ev.FirstName, ev.LastName, ev.Phone, ev.CustomerID)

	id, err := p.ledger.Record(ctx, models.Donation{
		DonorID:        donorID,
		Amount:         ev.Amount,
		Channel:        models.ChannelStripe,
		Status:         models.StatusCompleted,
		ProviderTxnRef: ev.Ref,
		DonationDate:   ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("record checkout donation: %w", err)
	}

	log.WithFields(log.Fields{
		"donation_id":      id.Hex(),
		"provider_txn_ref": ev.Ref,
		"amount":           ev.Amount,
	}).Info("Recorded one-time card donation")

	p.sendReceipt(ev.Email, ev.FirstName, ev.Amount, false)
	return nil
}

func (p *PaymentProcessor) handleInvoicePaid(ctx context.Context, ev *InvoicePaid) error {
	if ev.Amount <= 0 {
		return fmt.Errorf("invoice %s has non-positive amount %.2f", ev.Ref, ev.Amount)
	}

	var donorID *primitive.ObjectID
	receiptTo := ev.Email
	receiptName, lastName := splitName(ev.Name)

	donor, err := p.directory.FindByStripeCustomer(ctx, ev.CustomerID)
	if err != nil {
		log.WithError(err).WithField("stripe_customer", ev.CustomerID).
			Error("Donor directory unavailable, recording recurring gift without donor")
	} else if donor != nil {
		donorID = &donor.ID
		receiptTo = firstNonEmpty(ev.Email, donor.Email)
		receiptName = firstNonEmpty(receiptName, donor.FirstName)
	} else if ev.Email != "" {
		// No donor holds this customer reference yet; fall back to the
		// invoice email and attach the reference for next time.
		id, rerr := p.directory.ResolveOrCreate(ctx, ev.Email, receiptName, lastName, "", ev.CustomerID)
		if rerr != nil {
			log.WithError(rerr).WithField("email", ev.Email).
				Error("Donor directory unavailable, recording recurring gift without donor")
		} else {
			donorID = &id
			if aerr := p.directory.AttachStripeCustomer(ctx, id, ev.CustomerID); aerr != nil {
				log.WithError(aerr).WithField("donor_id", id.Hex()).Warn("Could not attach Stripe customer to donor")
			}
		}
	}

	id, err := p.ledger.Record(ctx, models.Donation{
		DonorID:        donorID,
		Amount:         ev.Amount,
		Channel:        models.ChannelStripe,
		Status:         models.StatusCompleted,
		ProviderTxnRef: ev.Ref,
		Recurring:      true,
		DonationDate:   ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("record recurring donation: %w", err)
	}

	log.WithFields(log.Fields{
		"donation_id":      id.Hex(),
		"provider_txn_ref": ev.Ref,
		"amount":           ev.Amount,
	}).Info("Recorded recurring card donation")

	p.sendReceipt(receiptTo, receiptName, ev.Amount, true)
	return nil
}

func (p *PaymentProcessor) handlePaymentFailed(ctx context.Context, ev *PaymentFailed) error {
	found, err := p.ledger.MarkStatus(ctx, ev.Ref, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark donation failed: %w", err)
	}
	if !found {
		// A decline can arrive for a charge that never completed a
		// checkout, so there is legitimately nothing to update.
		log.WithField("provider_txn_ref", ev.Ref).
			Info("Payment failure for unknown transaction reference, nothing to update")
		return nil
	}

	log.WithField("provider_txn_ref", ev.Ref).Info("Marked donation as failed")
	return nil
}

// resolveDonor runs the directory step for the webhook write path. A
// directory failure must not lose the gift: the donation is recorded without
// a donor and the anomaly is logged for manual reconciliation.
func (p *PaymentProcessor) resolveDonor(ctx context.Context, email, firstName, lastName, phone, customerID string) *primitive.ObjectID {
	if email == "" {
		return nil
	}
	id, err := p.directory.ResolveOrCreate(ctx, email, firstName, lastName, phone, customerID)
	if err != nil {
		log.WithError(err).WithField("email", email).
			Error("Donor directory unavailable, recording donation without donor")
		return nil
	}
	return &id
}

// sendReceipt fires the receipt email without blocking the webhook response.
// Failures are logged only; the ledger write has already succeeded.
func (p *PaymentProcessor) sendReceipt(to, name string, amount float64, recurring bool) {
	if p.mailer == nil || to == "" {
		return
	}

	subject, body := ReceiptEmail(p.orgName, name, amount, recurring)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := p.mailer.Send(ctx, to, subject, body); err != nil {
			log.WithError(err).WithField("email", to).Error("Failed to send receipt email")
		}
	}()
}
