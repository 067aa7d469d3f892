package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openhearts/donations-go/models"
)

// ---------------- fakes ----------------

type fakeDirectory struct {
	mu      sync.Mutex
	donors  []models.Donor
	failing bool
	created int
}

func (f *fakeDirectory) ResolveOrCreate(ctx context.Context, email, firstName, lastName, phone, stripeCustomerID string) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return primitive.NilObjectID, errors.New("directory unavailable")
	}
	for _, d := range f.donors {
		if d.Email == email {
			return d.ID, nil
		}
	}
	donor := models.Donor{
		ID:               primitive.NewObjectID(),
		FirstName:        firstName,
		LastName:         lastName,
		Email:            email,
		Phone:            phone,
		StripeCustomerID: stripeCustomerID,
	}
	f.donors = append(f.donors, donor)
	f.created++
	return donor.ID, nil
}

func (f *fakeDirectory) AttachStripeCustomer(ctx context.Context, donorID primitive.ObjectID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.donors {
		if f.donors[i].ID == donorID {
			f.donors[i].StripeCustomerID = customerID
		}
	}
	return nil
}

func (f *fakeDirectory) FindByStripeCustomer(ctx context.Context, customerID string) (*models.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("directory unavailable")
	}
	if customerID == "" {
		return nil, nil
	}
	for _, d := range f.donors {
		if d.StripeCustomerID == customerID {
			donor := d
			return &donor, nil
		}
	}
	return nil, nil
}

// fakeLedger mirrors the store's idempotency contract: recording a donation
// whose provider reference already exists is a no-op returning the existing
// id.
type fakeLedger struct {
	mu      sync.Mutex
	records []models.Donation
}

func (f *fakeLedger) Record(ctx context.Context, d models.Donation) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ProviderTxnRef != "" {
		for _, existing := range f.records {
			if existing.ProviderTxnRef == d.ProviderTxnRef {
				return existing.ID, nil
			}
		}
	}
	d.ID = primitive.NewObjectID()
	f.records = append(f.records, d)
	return d.ID, nil
}

func (f *fakeLedger) MarkStatus(ctx context.Context, providerRef string, status models.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ProviderTxnRef == providerRef {
			f.records[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) completedTotal() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total float64
	for _, d := range f.records {
		if d.Status == models.StatusCompleted {
			total += d.Amount
		}
	}
	return total
}

func (f *fakeLedger) all() []models.Donation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Donation, len(f.records))
	copy(out, f.records)
	return out
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent chan sentEmail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan sentEmail, 8)}
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.sent <- sentEmail{to: to, subject: subject, body: htmlBody}
	return nil
}

// ---------------- event builders ----------------

func checkoutEvent(t *testing.T, ref string, amountCents int64, email, name, mode string) stripe.Event {
	t.Helper()
	raw := fmt.Sprintf(`{
		"id": "cs_test_1",
		"mode": %q,
		"amount_total": %d,
		"payment_intent": %q,
		"customer": "cus_test_1",
		"customer_details": {"email": %q, "name": %q}
	}`, mode, amountCents, ref, email, name)
	return stripe.Event{
		ID:      "evt_" + ref,
		Type:    stripe.EventTypeCheckoutSessionCompleted,
		Created: time.Now().Unix(),
		Data:    &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func invoiceEvent(t *testing.T, ref string, amountCents int64, customerID, email, name string) stripe.Event {
	t.Helper()
	raw := fmt.Sprintf(`{
		"id": %q,
		"amount_paid": %d,
		"customer": %q,
		"customer_email": %q,
		"customer_name": %q
	}`, ref, amountCents, customerID, email, name)
	return stripe.Event{
		ID:      "evt_" + ref,
		Type:    stripe.EventTypeInvoicePaid,
		Created: time.Now().Unix(),
		Data:    &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func paymentFailedEvent(t *testing.T, ref string) stripe.Event {
	t.Helper()
	raw := fmt.Sprintf(`{"id": %q}`, ref)
	return stripe.Event{
		ID:      "evt_fail_" + ref,
		Type:    stripe.EventTypePaymentIntentPaymentFailed,
		Created: time.Now().Unix(),
		Data:    &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func newProcessor() (*PaymentProcessor, *fakeDirectory, *fakeLedger, *fakeMailer) {
	directory := &fakeDirectory{}
	ledger := &fakeLedger{}
	m := newFakeMailer()
	return NewPaymentProcessor(directory, ledger, m, "Open Hearts Foundation"), directory, ledger, m
}

// ---------------- tests ----------------

func TestCheckoutCompletedRecordsDonation(t *testing.T) {
	p, directory, ledger, _ := newProcessor()

	err := p.Process(context.Background(), checkoutEvent(t, "pi_100", 5000, "a@example.org", "Ada Lovelace", "payment"))
	require.NoError(t, err)

	records := ledger.all()
	require.Len(t, records, 1)
	assert.Equal(t, 50.00, records[0].Amount)
	assert.Equal(t, models.ChannelStripe, records[0].Channel)
	assert.Equal(t, models.StatusCompleted, records[0].Status)
	assert.Equal(t, "pi_100", records[0].ProviderTxnRef)
	assert.False(t, records[0].Recurring)
	require.NotNil(t, records[0].DonorID)

	require.Len(t, directory.donors, 1)
	assert.Equal(t, "a@example.org", directory.donors[0].Email)
	assert.Equal(t, "Ada", directory.donors[0].FirstName)
	assert.Equal(t, "Lovelace", directory.donors[0].LastName)
}

func TestCheckoutCompletedDuplicateDeliveryIsNoOp(t *testing.T) {
	p, _, ledger, _ := newProcessor()
	ev := checkoutEvent(t, "pi_dup", 5000, "a@example.org", "Ada Lovelace", "payment")

	require.NoError(t, p.Process(context.Background(), ev))
	require.NoError(t, p.Process(context.Background(), ev))

	assert.Len(t, ledger.all(), 1, "redelivered event must not create a second record")
}

func TestSubscriptionCheckoutIgnored(t *testing.T) {
	p, _, ledger, _ := newProcessor()

	err := p.Process(context.Background(), checkoutEvent(t, "pi_sub", 2500, "s@example.org", "Sub Scriber", "subscription"))
	require.NoError(t, err)

	assert.Empty(t, ledger.all(), "subscription checkout is recorded from its invoice, not the session")
}

func TestInvoicePaidRecordsRecurringGift(t *testing.T) {
	p, directory, ledger, _ := newProcessor()

	// The donor exists from an earlier gift and holds the customer ref.
	donorID, err := directory.ResolveOrCreate(context.Background(), "g@example.org", "Grace", "Hopper", "", "cus_9")
	require.NoError(t, err)

	err = p.Process(context.Background(), invoiceEvent(t, "in_200", 2500, "cus_9", "g@example.org", "Grace Hopper"))
	require.NoError(t, err)

	records := ledger.all()
	require.Len(t, records, 1)
	assert.Equal(t, 25.00, records[0].Amount)
	assert.True(t, records[0].Recurring)
	assert.Equal(t, "in_200", records[0].ProviderTxnRef)
	require.NotNil(t, records[0].DonorID)
	assert.Equal(t, donorID, *records[0].DonorID)
}

func TestInvoicePaidFallsBackToEmail(t *testing.T) {
	p, directory, ledger, _ := newProcessor()

	// No donor holds cus_unknown; the invoice email creates one.
	err := p.Process(context.Background(), invoiceEvent(t, "in_201", 1000, "cus_unknown", "new@example.org", "New Donor"))
	require.NoError(t, err)

	require.Len(t, ledger.all(), 1)
	require.Len(t, directory.donors, 1)
	assert.Equal(t, "new@example.org", directory.donors[0].Email)
	assert.Equal(t, "cus_unknown", directory.donors[0].StripeCustomerID,
		"customer ref should be attached for the next invoice")
}

func TestPaymentFailedMarksRecordFailed(t *testing.T) {
	p, _, ledger, _ := newProcessor()

	require.NoError(t, p.Process(context.Background(), checkoutEvent(t, "pi_300", 5000, "a@example.org", "Ada Lovelace", "payment")))
	assert.Equal(t, 50.00, ledger.completedTotal())

	require.NoError(t, p.Process(context.Background(), paymentFailedEvent(t, "pi_300")))

	records := ledger.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, 0.00, ledger.completedTotal(), "failed gifts no longer count toward totals")
}

func TestPaymentFailedUnknownRefIsNoOp(t *testing.T) {
	p, _, ledger, _ := newProcessor()

	err := p.Process(context.Background(), paymentFailedEvent(t, "pi_never_seen"))
	require.NoError(t, err, "a decline for an unrecorded transaction is not an error")
	assert.Empty(t, ledger.all())
}

func TestDirectoryFailureStillRecordsGift(t *testing.T) {
	p, directory, ledger, _ := newProcessor()
	directory.failing = true

	err := p.Process(context.Background(), checkoutEvent(t, "pi_400", 5000, "a@example.org", "Ada Lovelace", "payment"))
	require.NoError(t, err, "a directory outage must not lose the donation")

	records := ledger.all()
	require.Len(t, records, 1)
	assert.Nil(t, records[0].DonorID, "gift is recorded anonymously when the directory is down")
}

func TestSameEmailResolvesToOneDonor(t *testing.T) {
	p, directory, ledger, _ := newProcessor()

	require.NoError(t, p.Process(context.Background(), checkoutEvent(t, "pi_500", 5000, "b@example.org", "Bea Arthur", "payment")))

	recorder := NewManualRecorder(directory, ledger)
	_, err := recorder.Record(context.Background(), ManualEntry{
		Amount:     75,
		Channel:    models.ChannelZelle,
		Email:      "b@example.org",
		FirstName:  "Bea",
		OperatorID: primitive.NewObjectID(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, directory.created, "webhook and manual gifts from one email share a donor")

	records := ledger.all()
	require.Len(t, records, 2)
	assert.Equal(t, *records[0].DonorID, *records[1].DonorID)
}

func TestReceiptEmailSentAfterCheckout(t *testing.T) {
	p, _, _, m := newProcessor()

	require.NoError(t, p.Process(context.Background(), checkoutEvent(t, "pi_600", 5000, "a@example.org", "Ada Lovelace", "payment")))

	select {
	case email := <-m.sent:
		assert.Equal(t, "a@example.org", email.to)
		assert.Contains(t, email.subject, "Open Hearts Foundation")
		assert.Contains(t, email.body, "$50.00")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a receipt email")
	}
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	p, _, ledger, _ := newProcessor()

	err := p.Process(context.Background(), stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventType("customer.created"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "cus_1"}`)},
	})
	require.NoError(t, err)
	assert.Empty(t, ledger.all())
}
