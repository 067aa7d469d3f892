package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/openhearts/donations-go/models"
)

// DonorStore is the donor directory: one record per supporter, deduplicated
// by email.
type DonorStore struct {
	col *mongo.Collection
}

func NewDonorStore(client *mongo.Client, dbName string) *DonorStore {
	return &DonorStore{col: client.Database(dbName).Collection("donors")}
}

// NormalizeEmail lowercases and trims an address. All directory lookups go
// through this so "A@x.com" and "a@x.com" resolve to the same donor.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveOrCreate returns the id of the donor with the given email, creating
// the record if this is the first gift from that address. Existing donors are
// returned as-is; their fields are not updated. Email must be non-empty,
// since anonymous gifts never reach the directory.
func (s *DonorStore) ResolveOrCreate(ctx context.Context, email, firstName, lastName, phone, stripeCustomerID string) (primitive.ObjectID, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return primitive.NilObjectID, fmt.Errorf("donor email is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var existing models.Donor
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	if err == nil {
		return existing.ID, nil
	}
	if err != mongo.ErrNoDocuments {
		return primitive.NilObjectID, fmt.Errorf("lookup donor: %w", err)
	}

	now := time.Now()
	donor := models.Donor{
		ID:               primitive.NewObjectID(),
		FirstName:        firstName,
		LastName:         lastName,
		Email:            email,
		Phone:            phone,
		StripeCustomerID: stripeCustomerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.col.InsertOne(ctx, donor); err != nil {
		// Another writer created the same email between our lookup and
		// insert; the unique index caught it, so use their record.
		if mongo.IsDuplicateKeyError(err) {
			if ferr := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&existing); ferr == nil {
				return existing.ID, nil
			}
		}
		return primitive.NilObjectID, fmt.Errorf("insert donor: %w", err)
	}

	log.WithFields(log.Fields{
		"donor_id": donor.ID.Hex(),
		"email":    email,
	}).Info("Created new donor record")

	return donor.ID, nil
}

// AttachStripeCustomer stores the provider's customer reference on a donor.
// Best-effort: the ledger does not depend on it.
func (s *DonorStore) AttachStripeCustomer(ctx context.Context, donorID primitive.ObjectID, customerID string) error {
	if customerID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.col.UpdateOne(ctx, bson.M{"_id": donorID}, bson.M{"$set": bson.M{
		"stripe_customer_id": customerID,
		"updated_at":         time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("attach stripe customer: %w", err)
	}
	return nil
}

// FindByStripeCustomer returns the donor holding the given provider customer
// reference, or nil if none does.
func (s *DonorStore) FindByStripeCustomer(ctx context.Context, customerID string) (*models.Donor, error) {
	if customerID == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var donor models.Donor
	err := s.col.FindOne(ctx, bson.M{"stripe_customer_id": customerID}).Decode(&donor)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup donor by stripe customer: %w", err)
	}
	return &donor, nil
}

// FindByIDs bulk-fetches donors for joining into donation listings.
func (s *DonorStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Donor, error) {
	donors := make(map[primitive.ObjectID]models.Donor, len(ids))
	if len(ids) == 0 {
		return donors, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("fetch donors: %w", err)
	}

	var results []models.Donor
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode donors: %w", err)
	}
	for _, d := range results {
		donors[d.ID] = d
	}
	return donors, nil
}
