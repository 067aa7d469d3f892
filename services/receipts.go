package services

import (
	"fmt"
	"strings"
)

// ReceiptEmail builds the subject and HTML body for a donation receipt.
// Delivery is the mailer's problem; this only constructs content.
func ReceiptEmail(orgName, donorName string, amount float64, recurring bool) (subject, html string) {
	greeting := "Dear friend"
	if strings.TrimSpace(donorName) != "" {
		greeting = "Dear " + strings.TrimSpace(donorName)
	}

	kind := "donation"
	if recurring {
		kind = "monthly donation"
	}

	subject = fmt.Sprintf("Thank you for your gift to %s", orgName)
	html = fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <p>%s,</p>
  <p>Thank you for your %s of <strong>$%.2f</strong> to %s.</p>
  <p>Your generosity directly supports our programs. Please keep this email
  as your receipt for tax purposes. No goods or services were provided in
  exchange for this contribution.</p>
  <p>With gratitude,<br>The %s team</p>
</body>
</html>`, greeting, kind, amount, orgName, orgName)

	return subject, html
}
