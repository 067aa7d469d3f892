package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/openhearts/donations-go/config"
	controllers "github.com/openhearts/donations-go/controllers"
	middleware "github.com/openhearts/donations-go/middleware"
	services "github.com/openhearts/donations-go/services"
	store "github.com/openhearts/donations-go/store"
)

// Deps are the constructed services and stores the handlers close over.
type Deps struct {
	Processor controllers.EventProcessor
	Checkout  *services.CheckoutService
	Recorder  *services.ManualRecorder
	Donations *store.DonationStore
	Donors    *store.DonorStore
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, deps *Deps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/webhooks/stripe", controllers.StripeWebhook(cfg, deps.Processor))
	r.POST("/donate/checkout", controllers.CreateCheckoutSession(deps.Checkout))

	// protected
	auth := middleware.AuthMiddleware(cfg)

	donations := r.Group("/donations")
	donations.Use(auth)
	{
		donations.POST("", controllers.CreateDonation(cfg, deps.Recorder, deps.Donors))
		donations.GET("", controllers.ListDonations(cfg, deps.Donations, deps.Donors))
		donations.GET("/export", controllers.ExportDonations(cfg, deps.Donations, deps.Donors))
		donations.GET("/:id", controllers.GetDonation(cfg, deps.Donations, deps.Donors))
		donations.DELETE("/:id", controllers.DeleteDonation(cfg, deps.Donations))
	}

	reports := r.Group("/reports")
	reports.Use(auth)
	{
		reports.GET("/summary", controllers.DonationSummary(cfg, deps.Donations))
	}
}
