package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openhearts/donations-go/models"
)

// ManualEntry is an offline gift an operator registers by hand (a Zelle
// transfer or a Venmo payment).
type ManualEntry struct {
	Amount       float64
	Channel      models.Channel
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	Notes        string
	ReceiptURL   string
	DonationDate time.Time
	OperatorID   primitive.ObjectID
}

// ManualRecorder registers offline gifts, resolving the donor synchronously.
type ManualRecorder struct {
	directory DonorDirectory
	ledger    DonationLedger
}

func NewManualRecorder(directory DonorDirectory, ledger DonationLedger) *ManualRecorder {
	return &ManualRecorder{directory: directory, ledger: ledger}
}

// Record validates and writes a manual entry. Manual records are created
// already completed and carry the operator who entered them. A donor is
// resolved/created only when an email is given; a directory failure is
// logged and the gift is recorded anonymously rather than dropped.
func (r *ManualRecorder) Record(ctx context.Context, entry ManualEntry) (*models.Donation, error) {
	if entry.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !entry.Channel.Manual() {
		return nil, ErrInvalidChannel
	}
	if entry.Email != "" {
		if err := validateEmail(entry.Email); err != nil {
			return nil, err
		}
	}

	var donorID *primitive.ObjectID
	if entry.Email != "" {
		id, err := r.directory.ResolveOrCreate(ctx, entry.Email, entry.FirstName, entry.LastName, entry.Phone, "")
		if err != nil {
			log.WithError(err).WithField("email", entry.Email).
				Error("Donor directory unavailable, recording manual donation without donor")
		} else {
			donorID = &id
		}
	}

	now := time.Now()
	donationDate := entry.DonationDate
	if donationDate.IsZero() {
		donationDate = now
	}

	donation := models.Donation{
		DonorID:      donorID,
		Amount:       entry.Amount,
		Channel:      entry.Channel,
		Status:       models.StatusCompleted,
		Notes:        entry.Notes,
		ReceiptURL:   entry.ReceiptURL,
		RecordedBy:   &entry.OperatorID,
		DonationDate: donationDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := r.ledger.Record(ctx, donation)
	if err != nil {
		return nil, err
	}
	donation.ID = id

	log.WithFields(log.Fields{
		"donation_id": id.Hex(),
		"channel":     entry.Channel,
		"amount":      entry.Amount,
		"recorded_by": entry.OperatorID.Hex(),
	}).Info("Recorded manual donation")

	return &donation, nil
}
