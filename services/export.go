package services

import (
	"fmt"

	"github.com/openhearts/donations-go/models"
)

// ExportHeader is the fixed column order of the donations CSV export.
var ExportHeader = []string{
	"Date", "First Name", "Last Name", "Email", "Phone",
	"Amount", "Channel", "Status", "Reference", "Notes",
}

// ExportRows flattens donations (with their donors joined in) into CSV rows,
// header included. Donor columns are blank for anonymous gifts.
func ExportRows(records []models.DonationWithDonor) [][]string {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, ExportHeader)

	for _, rec := range records {
		var firstName, lastName, email, phone string
		if rec.Donor != nil {
			firstName = rec.Donor.FirstName
			lastName = rec.Donor.LastName
			email = rec.Donor.Email
			phone = rec.Donor.Phone
		}

		rows = append(rows, []string{
			rec.DonationDate.Format("2006-01-02"),
			firstName,
			lastName,
			email,
			phone,
			fmt.Sprintf("%.2f", rec.Amount),
			rec.Channel.Label(),
			string(rec.Status),
			rec.ProviderTxnRef,
			rec.Notes,
		})
	}

	return rows
}
