package controllers

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/openhearts/donations-go/config"
	models "github.com/openhearts/donations-go/models"
	services "github.com/openhearts/donations-go/services"
	store "github.com/openhearts/donations-go/store"
	utils "github.com/openhearts/donations-go/utils"
)

const defaultPageSize = 25

// ---------------- CREATE (manual entry) ----------------
func CreateDonation(cfg *config.Config, recorder *services.ManualRecorder, donors *store.DonorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Authenticated operator ---
		uid := c.GetString("user_id")
		operatorID, err := primitive.ObjectIDFromHex(uid)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		// --- Bind form fields ---
		var input struct {
			Amount       float64 `form:"amount" binding:"required"`
			Channel      string  `form:"channel" binding:"required"`
			Email        string  `form:"email"`
			FirstName    string  `form:"first_name"`
			LastName     string  `form:"last_name"`
			Phone        string  `form:"phone"`
			Notes        string  `form:"notes"`
			DonationDate *string `form:"donation_date"` // string for binding, convert later
		}

		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// --- Parse donation date if provided ---
		var donationDate time.Time
		if input.DonationDate != nil && *input.DonationDate != "" {
			parsed, err := time.Parse(time.RFC3339, *input.DonationDate)
			if err != nil {
				layouts := []string{"2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}
				for _, layout := range layouts {
					if t, e := time.Parse(layout, *input.DonationDate); e == nil {
						parsed = t
						err = nil
						break
					}
				}
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donation_date format, use RFC3339 or YYYY-MM-DD"})
					return
				}
			}
			donationDate = parsed
		}

		// --- Optional receipt scan upload ---
		var receiptURL string
		if fileHeader, err := c.FormFile("receipt"); err == nil {
			file, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
				return
			}

			url, err := utils.UploadReceiptToCloudinary(file, fileHeader)
			file.Close()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "receipt upload failed",
					"details": err.Error(),
					"file":    fileHeader.Filename,
				})
				return
			}
			receiptURL = url
		}

		// --- Record the gift ---
		donation, err := recorder.Record(c.Request.Context(), services.ManualEntry{
			Amount:       input.Amount,
			Channel:      models.Channel(input.Channel),
			Email:        input.Email,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			Phone:        input.Phone,
			Notes:        input.Notes,
			ReceiptURL:   receiptURL,
			DonationDate: donationDate,
			OperatorID:   operatorID,
		})
		if err != nil {
			if errors.Is(err, services.ErrInvalidAmount) ||
				errors.Is(err, services.ErrInvalidChannel) ||
				errors.Is(err, services.ErrInvalidEmail) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record donation"})
			return
		}

		c.JSON(http.StatusCreated, joinDonor(c.Request.Context(), donors, *donation))
	}
}

// ---------------- LIST ----------------
func ListDonations(cfg *config.Config, donations *store.DonationStore, donors *store.DonorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseListFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if filter.Limit <= 0 {
			filter.Limit = defaultPageSize
		}

		records, total, err := donations.List(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donations"})
			return
		}

		joined, err := joinDonors(c.Request.Context(), donors, records)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donors"})
			return
		}

		if len(records) > 0 {
			// --- Pick the most recently updated donation ---
			latest := records[0]
			for _, d := range records {
				if d.UpdatedAt.After(latest.UpdatedAt) {
					latest = d
				}
			}

			etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
			if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
				c.Status(http.StatusNotModified)
				return
			}
			c.Header("ETag", etag)
			c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))
		}

		c.JSON(http.StatusOK, gin.H{
			"donations": joined,
			"total":     total,
			"page":      filter.Page,
			"limit":     filter.Limit,
		})
	}
}

// ---------------- GET ----------------
func GetDonation(cfg *config.Config, donations *store.DonationStore, donors *store.DonorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donation id"})
			return
		}

		donation, err := donations.FindByID(c.Request.Context(), oid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donation"})
			return
		}
		if donation == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "donation not found"})
			return
		}

		etag := utils.GenerateETag(donation.ID, donation.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, joinDonor(c.Request.Context(), donors, *donation))
	}
}

// ---------------- DELETE ----------------
func DeleteDonation(cfg *config.Config, donations *store.DonationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donation id"})
			return
		}

		donation, err := donations.FindByID(c.Request.Context(), oid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donation"})
			return
		}
		if donation == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "donation not found"})
			return
		}

		deleted, err := donations.Delete(c.Request.Context(), oid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete donation"})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "donation not found"})
			return
		}

		// Best-effort cleanup of the attached receipt scan.
		if donation.ReceiptURL != "" {
			go func(url string) {
				if err := utils.DeleteFromCloudinary(url); err != nil {
					log.WithError(err).WithField("receipt_url", url).Warn("Could not delete receipt image")
				}
			}(donation.ReceiptURL)
		}

		c.JSON(http.StatusOK, gin.H{"message": "donation deleted", "id": oid.Hex()})
	}
}

// ---------------- EXPORT ----------------
func ExportDonations(cfg *config.Config, donations *store.DonationStore, donors *store.DonorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseListFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Limit = 0 // exports are never paginated

		records, _, err := donations.List(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donations"})
			return
		}

		joined, err := joinDonors(c.Request.Context(), donors, records)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donors"})
			return
		}

		filename := "donations-" + time.Now().Format("2006-01-02") + ".csv"
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

		w := csv.NewWriter(c.Writer)
		if err := w.WriteAll(services.ExportRows(joined)); err != nil {
			log.WithError(err).Error("Failed to write donations CSV")
		}
	}
}

// ---------------- helpers ----------------

func parseListFilter(c *gin.Context) (store.ListFilter, error) {
	var filter store.ListFilter

	if channel := c.Query("channel"); channel != "" {
		ch := models.Channel(channel)
		if !ch.Valid() {
			return filter, errors.New("unrecognized channel filter")
		}
		filter.Channel = ch
	}
	if status := c.Query("status"); status != "" {
		st := models.Status(status)
		if !st.Valid() {
			return filter, errors.New("unrecognized status filter")
		}
		filter.Status = st
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, errors.New("invalid from date, use YYYY-MM-DD")
		}
		filter.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, errors.New("invalid to date, use YYYY-MM-DD")
		}
		// Make the upper bound inclusive of the whole day.
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	var pagination struct {
		Page  int64 `form:"page"`
		Limit int64 `form:"limit"`
	}
	if err := c.ShouldBindQuery(&pagination); err != nil {
		return filter, errors.New("invalid pagination parameters")
	}
	filter.Page = pagination.Page
	filter.Limit = pagination.Limit

	return filter, nil
}

func joinDonors(ctx context.Context, donors *store.DonorStore, records []models.Donation) ([]models.DonationWithDonor, error) {
	ids := make([]primitive.ObjectID, 0, len(records))
	seen := make(map[primitive.ObjectID]bool)
	for _, d := range records {
		if d.DonorID != nil && !seen[*d.DonorID] {
			seen[*d.DonorID] = true
			ids = append(ids, *d.DonorID)
		}
	}

	byID, err := donors.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	joined := make([]models.DonationWithDonor, 0, len(records))
	for _, d := range records {
		row := models.DonationWithDonor{Donation: d}
		if d.DonorID != nil {
			if donor, ok := byID[*d.DonorID]; ok {
				row.Donor = &donor
			}
		}
		joined = append(joined, row)
	}
	return joined, nil
}

func joinDonor(ctx context.Context, donors *store.DonorStore, d models.Donation) models.DonationWithDonor {
	rows, err := joinDonors(ctx, donors, []models.Donation{d})
	if err != nil || len(rows) == 0 {
		// The donation itself was written; a join failure only degrades
		// the response.
		log.WithError(err).Warn("Could not join donor into donation response")
		return models.DonationWithDonor{Donation: d}
	}
	return rows[0]
}
