package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Donor struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName        string             `bson:"first_name" json:"first_name"`
	LastName         string             `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Email            string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Notes            string             `bson:"notes,omitempty" json:"notes,omitempty"`
	StripeCustomerID string             `bson:"stripe_customer_id,omitempty" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// FullName joins first and last name, tolerating a missing last name.
func (d *Donor) FullName() string {
	if d.LastName == "" {
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}
