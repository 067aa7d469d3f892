package main

import (
	"context"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82/client"

	config "github.com/openhearts/donations-go/config"
	"github.com/openhearts/donations-go/mailer"
	routes "github.com/openhearts/donations-go/routes"
	services "github.com/openhearts/donations-go/services"
	store "github.com/openhearts/donations-go/store"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.Info("Starting donations service...")

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()
	if err := cfg.ConnectMongo(ctx); err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer cfg.MongoClient.Disconnect(ctx)

	if err := cfg.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("Could not create database indexes")
	}
	log.Info("Database indexes in place")

	stripeClient := &client.API{}
	stripeClient.Init(cfg.StripeSecretKey, nil)

	var m mailer.Mailer
	if cfg.ZeptoAPIURL != "" && cfg.ZeptoAPIKey != "" && cfg.EmailFrom != "" {
		m = mailer.NewZeptoMailer(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	}

	donors := store.NewDonorStore(cfg.MongoClient, cfg.DBName)
	donations := store.NewDonationStore(cfg.MongoClient, cfg.DBName)

	deps := &routes.Deps{
		Processor: services.NewPaymentProcessor(donors, donations, m, cfg.OrgName),
		Checkout:  services.NewCheckoutService(stripeClient, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, cfg.OrgName),
		Recorder:  services.NewManualRecorder(donors, donations),
		Donations: donations,
		Donors:    donors,
	}

	r := gin.Default()
	r.Use(cors.Default())
	routes.SetupRoutes(r, cfg, deps)

	log.WithField("port", cfg.Port).Info("Listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
