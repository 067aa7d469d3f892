package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/openhearts/donations-go/config"
	store "github.com/openhearts/donations-go/store"
)

// DonationSummary is the dashboard aggregate: all-time and month-to-date
// totals over completed gifts, split by channel. Always computed fresh from
// the ledger.
func DonationSummary(cfg *config.Config, donations *store.DonationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		allTime, err := donations.Totals(ctx, time.Time{}, time.Time{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute totals"})
			return
		}

		now := time.Now()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		monthToDate, err := donations.Totals(ctx, monthStart, time.Time{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute totals"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"total_raised":    allTime.Total,
			"completed_count": allTime.Count,
			"by_channel":      allTime.ByChannel,
			"month_to_date":   monthToDate.Total,
		})
	}
}
