package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openhearts/donations-go/models"
)

var (
	ErrInvalidAmount  = errors.New("donation amount must be greater than 0")
	ErrInvalidChannel = errors.New("unrecognized donation channel")
)

// DonationStore is the ledger: the append-mostly record of individual gifts.
type DonationStore struct {
	col *mongo.Collection
}

func NewDonationStore(client *mongo.Client, dbName string) *DonationStore {
	return &DonationStore{col: client.Database(dbName).Collection("donations")}
}

// ListFilter narrows a listing or export. Limit <= 0 means no pagination.
type ListFilter struct {
	Channel models.Channel
	Status  models.Status
	From    time.Time
	To      time.Time
	Page    int64
	Limit   int64
}

func buildListFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.Channel != "" {
		filter["channel"] = f.Channel
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	dateRange := bson.M{}
	if !f.From.IsZero() {
		dateRange["$gte"] = f.From
	}
	if !f.To.IsZero() {
		dateRange["$lte"] = f.To
	}
	if len(dateRange) > 0 {
		filter["donation_date"] = dateRange
	}
	return filter
}

// Record inserts a gift. When the donation carries a provider transaction
// reference, recording is idempotent: if a record with that reference already
// exists (including one racing in between the lookup and the insert, caught
// by the unique index), the existing record's id is returned and nothing is
// written.
func (s *DonationStore) Record(ctx context.Context, d models.Donation) (primitive.ObjectID, error) {
	if d.Amount <= 0 {
		return primitive.NilObjectID, ErrInvalidAmount
	}
	if !d.Channel.Valid() {
		return primitive.NilObjectID, ErrInvalidChannel
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if d.ProviderTxnRef != "" {
		if existing, err := s.findByRef(ctx, d.ProviderTxnRef); err != nil {
			return primitive.NilObjectID, err
		} else if existing != nil {
			log.WithFields(log.Fields{
				"provider_txn_ref": d.ProviderTxnRef,
				"donation_id":      existing.ID.Hex(),
			}).Info("Donation already recorded for this provider reference, skipping")
			return existing.ID, nil
		}
	}

	now := time.Now()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.DonationDate.IsZero() {
		d.DonationDate = now
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}

	if _, err := s.col.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) && d.ProviderTxnRef != "" {
			if existing, ferr := s.findByRef(ctx, d.ProviderTxnRef); ferr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return primitive.NilObjectID, fmt.Errorf("insert donation: %w", err)
	}

	return d.ID, nil
}

func (s *DonationStore) findByRef(ctx context.Context, ref string) (*models.Donation, error) {
	var existing models.Donation
	err := s.col.FindOne(ctx, bson.M{"provider_txn_ref": ref}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup donation by provider reference: %w", err)
	}
	return &existing, nil
}

// MarkStatus updates the status of the record holding the given provider
// transaction reference. Returns false when no such record exists; the
// caller decides whether that matters.
func (s *DonationStore) MarkStatus(ctx context.Context, providerRef string, status models.Status) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.UpdateOne(ctx,
		bson.M{"provider_txn_ref": providerRef},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("update donation status: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *DonationStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var d models.Donation
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup donation: %w", err)
	}
	return &d, nil
}

// Delete removes a record (operator administrative action). Returns false
// when the id matched nothing.
func (s *DonationStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete donation: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// List returns donations newest-first with the total match count.
func (s *DonationStore) List(ctx context.Context, f ListFilter) ([]models.Donation, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := buildListFilter(f)

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count donations: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "donation_date", Value: -1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip((page - 1) * f.Limit).SetLimit(f.Limit)
	}

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch donations: %w", err)
	}

	var donations []models.Donation
	if err := cursor.All(ctx, &donations); err != nil {
		return nil, 0, fmt.Errorf("decode donations: %w", err)
	}
	return donations, total, nil
}

// Totals sums completed gifts in the given window (zero times mean
// unbounded), overall and per channel. Pending and failed records never
// count.
func (s *DonationStore) Totals(ctx context.Context, from, to time.Time) (*models.DonationTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	match := buildListFilter(ListFilter{Status: models.StatusCompleted, From: from, To: to})

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$channel",
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate totals: %w", err)
	}

	var rows []struct {
		Channel models.Channel `bson:"_id"`
		Total   float64        `bson:"total"`
		Count   int64          `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode totals: %w", err)
	}

	totals := &models.DonationTotals{ByChannel: make(map[models.Channel]float64)}
	for _, row := range rows {
		totals.Total += row.Total
		totals.Count += row.Count
		totals.ByChannel[row.Channel] = row.Total
	}
	return totals, nil
}
