package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel is the payment method category of a gift.
type Channel string

const (
	ChannelStripe Channel = "stripe" // card payments via Stripe Checkout
	ChannelZelle  Channel = "zelle"
	ChannelVenmo  Channel = "venmo"
)

func (ch Channel) Valid() bool {
	switch ch {
	case ChannelStripe, ChannelZelle, ChannelVenmo:
		return true
	}
	return false
}

// Manual returns true for channels an operator records by hand.
func (ch Channel) Manual() bool {
	return ch == ChannelZelle || ch == ChannelVenmo
}

// Label is the human-facing channel name used in exports and dashboards.
func (ch Channel) Label() string {
	switch ch {
	case ChannelStripe:
		return "Card"
	case ChannelZelle:
		return "Zelle"
	case ChannelVenmo:
		return "Venmo"
	}
	return string(ch)
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusFailed:
		return true
	}
	return false
}

type Donation struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	DonorID        *primitive.ObjectID `bson:"donor_id,omitempty" json:"donor_id,omitempty"`
	Amount         float64             `bson:"amount" json:"amount"`
	Channel        Channel             `bson:"channel" json:"channel"`
	Status         Status              `bson:"status" json:"status"`
	ProviderTxnRef string              `bson:"provider_txn_ref,omitempty" json:"provider_txn_ref,omitempty"`
	Recurring      bool                `bson:"recurring,omitempty" json:"recurring,omitempty"`
	Notes          string              `bson:"notes,omitempty" json:"notes,omitempty"`
	ReceiptURL     string              `bson:"receipt_url,omitempty" json:"receipt_url,omitempty"`
	RecordedBy     *primitive.ObjectID `bson:"recorded_by,omitempty" json:"recorded_by,omitempty"`
	DonationDate   time.Time           `bson:"donation_date" json:"donation_date"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// DonationWithDonor is a ledger row with its donor joined in for responses
// and exports. Donor is nil for anonymous gifts.
type DonationWithDonor struct {
	Donation
	Donor *Donor `json:"donor,omitempty"`
}

// DonationTotals is the read-side aggregation over completed gifts.
type DonationTotals struct {
	Total     float64             `json:"total"`
	Count     int64               `json:"count"`
	ByChannel map[Channel]float64 `json:"by_channel"`
}
