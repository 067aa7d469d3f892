package config

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	Port   string
	DBName string

	JWTSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	ZeptoAPIURL   string
	ZeptoAPIKey   string
	EmailFrom     string
	EmailFromName string
	OrgName       string

	MongoClient *mongo.Client

	mongoURI string
}

// Load reads configuration from the environment. Required variables are
// validated here so the process fails fast at startup rather than on the
// first request.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBName:              getEnv("DB_NAME", "donations"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "https://openheartsfoundation.org/donate/thanks"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "https://openheartsfoundation.org/donate"),
		ZeptoAPIURL:         os.Getenv("ZEPTO_API_URL"),
		ZeptoAPIKey:         os.Getenv("ZEPTO_API_KEY"),
		EmailFrom:           os.Getenv("EMAIL_FROM"),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "Open Hearts Foundation"),
		OrgName:             getEnv("ORG_NAME", "Open Hearts Foundation"),
		mongoURI:            os.Getenv("MONGODB_URI"),
	}

	if cfg.mongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	if cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set")
	}
	if cfg.ZeptoAPIURL == "" || cfg.ZeptoAPIKey == "" || cfg.EmailFrom == "" {
		log.Warn("ZeptoMail is not configured; receipt emails will be skipped")
	}

	return cfg, nil
}

// ConnectMongo dials the database and verifies the connection with a ping.
func (cfg *Config) ConnectMongo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.mongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	cfg.MongoClient = client
	return nil
}

// EnsureIndexes creates the indexes the write paths rely on:
//   - donors.email unique (non-empty values only) so the same supporter is
//     never created twice
//   - donations.provider_txn_ref unique (non-empty values only) so a
//     redelivered webhook cannot record the same gift twice
func (cfg *Config) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := cfg.MongoClient.Database(cfg.DBName)

	_, err := db.Collection("donors").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"email": bson.M{"$exists": true, "$gt": ""}}),
	})
	if err != nil {
		return fmt.Errorf("create donors email index: %w", err)
	}

	_, err = db.Collection("donations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "provider_txn_ref", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"provider_txn_ref": bson.M{"$exists": true, "$gt": ""}}),
	})
	if err != nil {
		return fmt.Errorf("create donations provider ref index: %w", err)
	}

	_, err = db.Collection("donations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "donation_date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create donations date index: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
