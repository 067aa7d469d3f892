package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	services "github.com/openhearts/donations-go/services"
)

// CreateCheckoutSession starts a hosted Stripe Checkout for a card gift and
// returns the redirect URL. Public endpoint: this is the donate button.
func CreateCheckoutSession(checkout *services.CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CheckoutRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		url, err := checkout.CreateSession(c.Request.Context(), input)
		if err != nil {
			if errors.Is(err, services.ErrInvalidAmount) || errors.Is(err, services.ErrInvalidEmail) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.WithError(err).Error("Could not create Stripe checkout session")
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not start checkout"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
